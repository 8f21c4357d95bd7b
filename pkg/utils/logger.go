package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerOptions struct {
	Level  string
	Format string
	File   string
}

// NewLogger builds a charmbracelet logger writing to w, or to stderr plus a
// rotating file when opts.File is set.
func NewLogger(w io.Writer, opts LoggerOptions) *log.Logger {
	if w == nil {
		w = os.Stderr
		if opts.File != "" {
			w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     14,
				Compress:   true,
			})
		}
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "multipost",
	})

	level, err := log.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger
}

// SetupLogging installs the logger as the slog default so package code can keep
// calling slog directly.
func SetupLogging(opts LoggerOptions) *log.Logger {
	logger := NewLogger(nil, opts)
	slog.SetDefault(slog.New(logger))
	return logger
}
