package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/chat-client/internal/config"
	"github.com/weiawesome/wes-io-live/chat-client/internal/handler"
	"github.com/weiawesome/wes-io-live/chat-client/internal/hub"
	"github.com/weiawesome/wes-io-live/chat-client/internal/service"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/chat-client/pkg/log"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.LoadDevServer("./config")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closer, err := pkglog.Init(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer closer.Close()
	logger := pkglog.L()

	tokens, err := jwt.NewManager(cfg.Auth.Secret, cfg.Auth.TokenDuration, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize pub/sub
	bus, err := pubsub.NewPubSub(ctx, cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create pubsub")
	}
	defer bus.Close()

	// Initialize Hub
	h := hub.NewHub(hub.WithBus(bus))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, service.NewUserService(0), tokens, cfg.WebSocket, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("chat-devserver listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down chat-devserver")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("chat-devserver stopped with error")
		return
	}
	logger.Info().Msg("chat-devserver stopped")
}
