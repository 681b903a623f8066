package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/lunarloc/lacreplay/internal/config"
	"github.com/lunarloc/lacreplay/internal/logging"
)

// version info - BuildDate can be set at build time via ldflags
var (
	ToolVersion string = "0.1.0"
	BuildDate   string = "unknown"
)

var (
	// Logger is the process-wide logger, configured in setup()
	Logger zerolog.Logger

	sessionStart time.Time = time.Now()
)

func usage() {
	fmt.Fprintf(os.Stderr, `lacreplay %s (built %s)

Usage:
  lacreplay info <archive>      summarize an archive's contents
  lacreplay replay <archive>    step through an archive, publishing telemetry
  lacreplay export <archive>    export an archive's telemetry to the database

<archive> is an extracted session directory or a packed .tar.gz.
Configuration is read from lacreplay.cfg.json in the working directory.
`, ToolVersion, BuildDate)
}

// setup loads tool configuration and builds the logger. Returns a cleanup
// func closing the log file.
func setup() func() {
	if err := config.LoadTool("."); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logs dir %s: %v\n", logsDir, err)
		os.Exit(1)
	}

	logPath := logging.LogFilePath(logsDir, "lacreplay", sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", logPath, err)
		os.Exit(1)
	}

	opts := logging.Options{
		Level: viper.GetString("logLevel"),
		File:  logFile,
	}
	if viper.GetBool("graylog.enabled") {
		opts.GraylogAddr = viper.GetString("graylog.address")
	}

	Logger, err = logging.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	return func() { logFile.Close() }
}

func main() {
	args := os.Args[1:]
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	cleanup := setup()
	defer cleanup()

	command := strings.ToLower(args[0])
	archivePath := args[1]

	var err error
	switch command {
	case "info":
		err = runInfo(archivePath)
	case "replay":
		err = runReplay(archivePath)
	case "export":
		err = runExport(archivePath)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		Logger.Fatal().Err(err).Str("command", command).Msg("command failed")
	}
}
