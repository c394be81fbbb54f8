package main

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

func getLogFilePath() (string, error) {
	dir, err := gap.NewScope(gap.User, "prisma").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prisma.log"), nil
}

// setupLog sends the log to a file so it cannot tear the TUI. It returns a
// function that closes the file.
func setupLog() (func() error, error) {
	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetLevel(log.InfoLevel)
	return f.Close, nil
}

// useStderrLog moves the log to stderr for headless runs. Only warnings and
// errors show unless --debug is set, since the transcript goes to stdout.
func useStderrLog() {
	log.SetOutput(os.Stderr)
	if !debug {
		log.SetLevel(log.WarnLevel)
	}
}
