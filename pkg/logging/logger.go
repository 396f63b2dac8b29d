package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger writes structured debug output for nbq components. Every component
// logger in one process appends to the same per-run file under
// <data-dir>/logs/, so a single log file tells the whole story of one
// invocation.
//
// All log methods write unconditionally; there is no level filtering.
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

var (
	// runID identifies the current process invocation
	runID     string
	runIDOnce sync.Once

	// logDir is where run log files are written; settable before first use
	logDir     string
	logDirOnce sync.Once
	logDirErr  error
)

func currentRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// SetDirectory overrides the log directory. Must be called before the first
// logger is constructed to have any effect.
func SetDirectory(dir string) {
	logDir = dir
}

func ensureLogDir() error {
	logDirOnce.Do(func() {
		if logDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				logDirErr = fmt.Errorf("resolve home directory: %w", err)
				return
			}
			logDir = filepath.Join(home, ".nbq", "logs")
		}
		if err := os.MkdirAll(logDir, 0o750); err != nil {
			logDirErr = fmt.Errorf("create log directory: %w", err)
		}
	})
	return logDirErr
}

// NewLogger creates a logger for a named component, writing to
// <log-dir>/<run-id>.log. If the file cannot be opened the returned logger
// falls back to stderr and the error is returned alongside it so callers can
// note degraded mode.
func NewLogger(component string) (*Logger, error) {
	if err := ensureLogDir(); err != nil {
		return newStderrLogger(component, err), err
	}

	id := currentRunID()
	logPath := filepath.Join(logDir, id+".log")

	// Append mode: every component in the run shares one file.
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		wrapped := fmt.Errorf("open log file: %w", err)
		return newStderrLogger(component, wrapped), wrapped
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		logger:    log.New(file, "", 0),
		logPath:   logPath,
	}, nil
}

func newStderrLogger(component string, err error) *Logger {
	fallback := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	fallback.Printf("file logging unavailable, using stderr: %v", err)

	return &Logger{
		runID:     currentRunID(),
		component: component,
		logger:    fallback,
	}
}

func (l *Logger) write(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.logger.Printf("[%s] [%s] [%s] %s", ts, l.component, level, fmt.Sprintf(format, v...))
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) { l.write("DEBUG", format, v...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.write("INFO", format, v...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.write("WARN", format, v...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.write("ERROR", format, v...) }

// Writer exposes the underlying sink, for handing to subprocess output.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return os.Stderr
}

// RunID returns the identifier shared by all loggers in this process.
func (l *Logger) RunID() string { return l.runID }

// LogPath returns the path of the log file, or "" in stderr fallback mode.
func (l *Logger) LogPath() string { return l.logPath }

// Close closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// Directory returns the resolved log directory.
func Directory() (string, error) {
	if err := ensureLogDir(); err != nil {
		return "", err
	}
	return logDir, nil
}
