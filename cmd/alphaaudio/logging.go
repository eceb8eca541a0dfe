package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vampirenirmal/alphaaudio/internal/config"
)

// setupLogger builds the process logger. Output goes to stderr and, when a
// log file is configured, to a rotating file as well.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	logger, closer := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	return logger, closer
}

func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	format := cfg.Format
	if logFormat != "" {
		format = logFormat
	}

	out := stderr
	var closer io.Closer = nopCloser{}
	var fileErr error
	if cfg.File != "" {
		if fileErr = os.MkdirAll(filepath.Dir(cfg.File), 0755); fileErr == nil {
			file := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB, // megabytes
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays, // days
				Compress:   true,
			}
			out = io.MultiWriter(stderr, file)
			closer = file
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if fileErr != nil {
		logger.Warn("file logging disabled", "path", cfg.File, "error", fileErr)
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
