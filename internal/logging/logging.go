// Package logging routes docscout diagnostics through the standard logger.
// The TUI owns the terminal, so interactive sessions log to a file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

const prefix = "docscout"

var (
	mu      sync.RWMutex
	verbose bool
	logFile *os.File
)

// InitTUI sends log output to path while a bubbletea program holds the
// terminal. An empty path discards log output.
func InitTUI(path string) error {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()

	if path == "" {
		log.SetOutput(io.Discard)
		return nil
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := tea.LogToFile(path, prefix)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logFile = file
	return nil
}

// Init configures logging for headless commands. Output goes to stderr when
// verbose is set and is appended to path when one is given.
func Init(path string, v bool) error {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	verbose = v

	var writers []io.Writer
	if v {
		writers = append(writers, os.Stderr)
	}
	if path != "" {
		if err := ensureDir(path); err != nil {
			return err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = file
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(io.MultiWriter(writers...))
	return nil
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeLocked()
}

func closeLocked() error {
	if logFile == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logFile.Close()
	logFile = nil
	return err
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// SetVerbose toggles Debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether Debug output is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Debug logs only in verbose mode.
func Debug(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

func Info(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

func Warn(format string, args ...any) {
	log.Printf("[WARN] "+format, args...)
}

// LogRequest records one backend exchange.
func LogRequest(direction, method, url string, status int) {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	if dir == "" {
		dir = "HTTP"
	}
	parts := []string{fmt.Sprintf("[%s]", dir), "method=" + method, "url=" + url}
	if status > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", status))
	}
	log.Println(strings.Join(parts, " "))
}
