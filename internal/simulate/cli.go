package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/duelist/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging sends log records to stdout and, when logFile is set, to
// that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWithWriter(w); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file",
			logger.String("logFile", logFile),
			logger.String("started", time.Now().Format(time.RFC3339)))
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Duelist Simulator
=================

Drives concurrent duels, including racing result events, against an
in-process engine and verifies scores and history afterwards.

Usage:
  go run ./cmd/duelsim [options]

Options:
  -participants int   Size of the participant pool (default 50)
  -duels int          Number of duels to attempt (default 2000)
  -workers int        Concurrent duel drivers; 1 enables exact replay (default 8)
  -racers int         Concurrent events per duel (default 3)
  -refuse float       Share of refusal events (default 0.2)
  -cancel float       Share of cancel events (default 0.1)
  -seed uint          Random seed (default 1)
  -output string      Write the history log as JSON to this file
  -log string         Also write logs to this file
  -verbose            Log every resolution
  -help               Show this help message

Examples:
  go run ./cmd/duelsim -duels 10000 -workers 16
  go run ./cmd/duelsim -workers 1 -output history.json
`)
}
