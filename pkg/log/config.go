package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Pretty      bool   `mapstructure:"pretty"`
	ServiceName string `mapstructure:"service_name"`
	// File redirects output to a file. The terminal client needs this
	// because stdout is owned by the UI.
	File string `mapstructure:"file"`
}

var (
	global zerolog.Logger
	once   sync.Once
)

func init() {
	// Safe default before Init() is called.
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// New creates a configured zerolog.Logger writing to w.
func New(cfg Config, w io.Writer) zerolog.Logger {
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	lvl := parseLevel(cfg.Level)
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()

	if cfg.ServiceName != "" {
		logger = logger.With().Str(FieldService, cfg.ServiceName).Logger()
	}

	return logger
}

// Init initialises the global logger. Call once at startup.
// It also bridges stdlib log to zerolog so stray log.Printf calls
// produce structured output. The returned closer releases the log
// file, if any.
func Init(cfg Config) (io.Closer, error) {
	var (
		closer io.Closer = nopCloser{}
		err    error
	)
	once.Do(func() {
		var w io.Writer = os.Stdout
		if cfg.File != "" {
			f, openErr := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if openErr != nil {
				err = fmt.Errorf("open log file: %w", openErr)
				return
			}
			w, closer = f, f
		}
		global = New(cfg, w)

		// Bridge stdlib log → zerolog.
		stdlog.SetFlags(0)
		stdlog.SetOutput(global.With().Str("source", "stdlog").Logger())
	})
	return closer, err
}

// L returns the global logger.
func L() zerolog.Logger {
	return global
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
