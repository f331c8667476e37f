package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide logger.
type Config struct {
	Level   string    // "debug", "info", ... (defaults to info)
	Output  io.Writer // defaults to os.Stdout
	Service string
	Pretty  bool // human readable console output for local runs
}

var (
	once sync.Once
	mu   sync.RWMutex
	base = zerolog.Nop()
)

// Configure installs the base logger. Only the first call has effect.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		var w io.Writer = os.Stdout
		if cfg.Output != nil {
			w = cfg.Output
		}
		if cfg.Pretty {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		}
		service := cfg.Service
		if service == "" {
			service = "hotel-reservation"
		}

		mu.Lock()
		base = zerolog.New(w).With().Timestamp().Str("service", service).Logger()
		mu.Unlock()
	})
}

// Base returns the configured logger, a no-op logger before Configure.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}
