package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Options configures the process logger.
type Options struct {
	Level       string
	ConsoleOut  io.Writer // defaults to stderr
	File        io.Writer // optional log file
	GraylogAddr string    // optional GELF sink, "" disables
}

// New builds a zerolog.Logger writing a console stream plus the optional
// file and Graylog sinks. An unreachable Graylog endpoint is reported, not
// fatal; logging must never take the tool down.
func New(opts Options) (zerolog.Logger, error) {
	console := opts.ConsoleOut
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}}
	if opts.File != nil {
		writers = append(writers, opts.File)
	}

	var gelfErr error
	if opts.GraylogAddr != "" {
		gw, err := gelf.NewWriter(opts.GraylogAddr)
		if err != nil {
			gelfErr = fmt.Errorf("connecting to graylog at %s: %v", opts.GraylogAddr, err)
		} else {
			writers = append(writers, gw)
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()

	if gelfErr != nil {
		logger.Warn().Msg(gelfErr.Error())
	}
	return logger, nil
}

// ParseLevel converts a config log level string to a zerolog level,
// defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, toolName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", toolName, sessionStart.Format("20060102_150405")),
	)
}
