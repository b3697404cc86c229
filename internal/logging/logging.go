// Package logging sets up the service's slog logger, its OTel and Graylog
// sinks, and the zerolog logger used by the database layer and the event
// dispatcher.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath names a log file after the app and the run's start time.
func LogFilePath(logsDir, name string, start time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", name, start.Format("20060102_150405")))
}

// OpenLogFile creates logsDir if needed and opens the run's log file for
// appending. A file already at that path is moved aside to .old first.
func OpenLogFile(logsDir, name string, start time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating logs dir: %w", err)
	}
	path := LogFilePath(logsDir, name, start)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, "", fmt.Errorf("rotating %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, "", fmt.Errorf("opening log file: %w", err)
	}
	return f, path, nil
}
