// Package logging configures the zerolog global logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// Console switches to human-friendly output on stderr.
	Console bool
	// File enables a rotating log file next to the terminal output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup replaces log.Logger and returns a closer for the file writer, if any.
func Setup(o Options) (io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var term io.Writer = os.Stderr
	if o.Console {
		term = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	var closer io.Closer = nopCloser{}
	out := term
	if o.File != "" {
		if err := os.MkdirAll(filepath.Dir(o.File), 0o755); err != nil {
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(term, lj)
		closer = lj
	}

	zerolog.SetGlobalLevel(ParseLevel(o.Level))
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
