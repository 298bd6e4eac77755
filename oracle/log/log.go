package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	customLog = newLogger()
	mu        sync.RWMutex
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// InitLogger resets the process logger to stderr with the given level.
// Stdout is left to command output.
// An unknown level falls back to info.
func InitLogger(level string, json bool) {
	l := newLogger()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	mu.Lock()
	customLog = l
	mu.Unlock()
}

// ResetLogger redirects all output to <home>/logs/<process>.<pid>.log.
func ResetLogger(home string) error {
	if home == "" {
		osHome, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		home = filepath.Join(osHome, ".flightsurety")
	}

	dir := filepath.Join(home, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s.%d.log", filepath.Base(os.Args[0]), os.Getpid())
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	Infof("From now on, all logs will be written to %s", path)

	mu.Lock()
	customLog.SetOutput(file)
	mu.Unlock()

	return nil
}

// Logger exposes the underlying logger for components that want fields.
func Logger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return customLog
}

func WithField(key string, value any) *logrus.Entry {
	return Logger().WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger().WithFields(fields)
}

func Debug(v ...any) {
	Logger().Debug(v...)
}

func Debugf(format string, v ...any) {
	Logger().Debugf(format, v...)
}

func Info(v ...any) {
	Logger().Info(v...)
}

func Infof(format string, v ...any) {
	Logger().Infof(format, v...)
}

func Warnf(format string, v ...any) {
	Logger().Warnf(format, v...)
}

func Error(v ...any) {
	Logger().Error(v...)
}

func Errorf(format string, v ...any) {
	Logger().Errorf(format, v...)
}

func Fatal(v ...any) {
	Logger().Fatal(v...)
}

func Fatalf(format string, v ...any) {
	Logger().Fatalf(format, v...)
}
