// Package logger builds the logrus loggers used across the module: a
// colored console logger by default, optionally duplicated into a logfile.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Option adjusts logger construction.
type Option func(*config) error

type config struct {
	file   string
	app    string
	colors bool
}

// WithFile duplicates output into the given logfile, creating it when
// missing and appending otherwise.
func WithFile(path string) Option {
	return func(c *config) error {
		if path == "" {
			return fmt.Errorf("logger: empty logfile path")
		}
		c.file = path
		return nil
	}
}

// WithApp stamps every entry with an app field.
func WithApp(name string) Option {
	return func(c *config) error {
		c.app = name
		return nil
	}
}

// WithColors forces colored console output even when stdout is not a
// terminal.
func WithColors() Option {
	return func(c *config) error {
		c.colors = true
		return nil
	}
}

// ParseLevel maps a level name to a logrus level. Unknown names fall back
// to info.
func ParseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "critical":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// New builds a logger at the given level.
func New(level string, opts ...Option) (*logrus.Logger, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	log := logrus.New()
	log.SetLevel(ParseLevel(level))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   cfg.colors,
	})

	if cfg.file != "" {
		f, err := os.OpenFile(cfg.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logger: opening logfile: %w", err)
		}
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if cfg.app != "" {
		log.AddHook(appHook{name: cfg.app})
	}
	return log, nil
}

// Nop returns a logger that discards everything. Useful as the silent
// default for library callers.
func Nop() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// appHook stamps entries with a fixed app name.
type appHook struct {
	name string
}

func (h appHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h appHook) Fire(entry *logrus.Entry) error {
	entry.Data["app"] = h.name
	return nil
}
