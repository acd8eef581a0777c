package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// setupLog parses env and logs to a file if requested. ANKIVOX_DEBUG
// lowers the level to debug; ANKIVOX_LOGFILE redirects output. The
// returned closer flushes the log file, if any.
func setupLog() (func() error, error) {
	log.SetReportTimestamp(false)
	if os.Getenv("ANKIVOX_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	logFile := os.Getenv("ANKIVOX_LOGFILE")
	if logFile == "" {
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetLevel(log.DebugLevel)
	return f.Close, nil
}
