package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/chat-client/internal/channel"
	"github.com/weiawesome/wes-io-live/chat-client/internal/config"
	"github.com/weiawesome/wes-io-live/chat-client/internal/identity"
	"github.com/weiawesome/wes-io-live/chat-client/internal/members"
	"github.com/weiawesome/wes-io-live/chat-client/internal/session"
	"github.com/weiawesome/wes-io-live/chat-client/internal/ui"
	pkglog "github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

var rootCmd = &cobra.Command{
	Use:          "chat-client",
	Short:        "Terminal client for a chat room",
	SilenceUsage: true,
	RunE:         runChat,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the configured access token on the server",
	RunE:  runLogout,
}

var flagConfigPath string

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"server-url": "server_url",
	"room":       "room_id",
	"token":      "identity.token",
	"jwt-secret": "identity.secret",
	"user-id":    "identity.id",
	"username":   "identity.username",
	"log-level":  "log.level",
	"log-file":   "log.file",
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigPath, "config", "./config", "directory holding chat-client.yaml")
	flags.String("server-url", "", "chat server base URL (env CHAT_SERVER_URL)")
	flags.String("room", "", "room to join (env CHAT_ROOM_ID)")
	flags.String("token", "", "access token identifying the user (env CHAT_TOKEN)")
	flags.String("jwt-secret", "", "verify the token signature with this secret (env CHAT_JWT_SECRET)")
	flags.String("user-id", "", "static user id when no token is given (env CHAT_USER_ID)")
	flags.String("username", "", "static username when no token is given (env CHAT_USERNAME)")
	flags.String("log-level", "", "log level (env CHAT_LOG_LEVEL)")
	flags.String("log-file", "", "log file; the terminal is owned by the UI (env CHAT_LOG_FILE)")

	rootCmd.AddCommand(logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Client, error) {
	v, err := config.NewClientViper(flagConfigPath)
	if err != nil {
		return nil, err
	}
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	return config.ClientFromViper(v)
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closer, err := pkglog.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := pkglog.L()

	provider, err := identity.New(cfg.Identity, cfg.ServerURL)
	if err != nil {
		return err
	}
	me := provider.Current()

	fetcher, err := members.NewClient(cfg.ServerURL, cfg.Members.Timeout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(me, fetcher, session.WithLogger(logger))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sess.Run(gctx)
		return nil
	})
	defer sess.Close()

	conn, dialErr := dial(ctx, cfg, provider)
	var handle session.Handle
	if conn != nil {
		handle = conn
		defer conn.Close()
	}
	if err := sess.Attach(ctx, handle); err != nil {
		return err
	}

	program := tea.NewProgram(ui.NewModel(sess, me), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()

	sess.Close()
	if waitErr := g.Wait(); waitErr != nil {
		logger.Error().Err(waitErr).Msg("session stopped with error")
	}

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	if model, ok := final.(ui.Model); ok && model.ExitReason() != "" {
		if dialErr != nil {
			return fmt.Errorf("%s: %w", model.ExitReason(), dialErr)
		}
		return errors.New(model.ExitReason())
	}
	return nil
}

// dial opens the room channel. No room or a failed dial yields no
// channel, which the session turns into a redirect.
func dial(ctx context.Context, cfg *config.Client, provider *identity.Provider) (*channel.Conn, error) {
	logger := pkglog.L()
	if cfg.RoomID == "" {
		logger.Info().Msg("no room configured")
		return nil, errors.New("no room configured")
	}

	me := provider.Current()
	url, err := channel.JoinURL(cfg.ServerURL, cfg.RoomID, me.ID, me.Username)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token := provider.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, err := channel.Dial(ctx, url, header, cfg.WebSocket)
	if err != nil {
		logger.Error().Err(err).Str(pkglog.FieldRoomID, cfg.RoomID).Msg("failed to join room")
		return nil, err
	}
	logger.Info().Str(pkglog.FieldRoomID, cfg.RoomID).Str(pkglog.FieldUserID, me.ID).Msg("joined room")
	return conn, nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closer, err := pkglog.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	provider, err := identity.New(cfg.Identity, cfg.ServerURL)
	if err != nil {
		return err
	}
	if err := provider.Revoke(cmd.Context()); err != nil {
		if errors.Is(err, identity.ErrNotRevocable) {
			fmt.Fprintln(cmd.OutOrStdout(), "static identity, nothing to revoke")
			return nil
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "logged out")
	return nil
}
