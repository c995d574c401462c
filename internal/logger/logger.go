// Package logger provides tagged console/file logging on top of logrus.
//
// Every call carries a short component tag ("ESI", "CACHE", "REFRESH"...) that
// ends up in the "component" field of the structured entry.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias for logrus.Fields.
type Fields = logrus.Fields

var (
	mu  sync.RWMutex
	std = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	return l
}

// L returns the underlying logrus logger.
func L() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Configure sets level, format ("text" or "json") and output ("stdout", "stderr"
// or a file path). File output is rotated when maxAgeDays > 0.
func Configure(level, format, output string, maxAgeDays int) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	l := logrus.New()
	l.SetLevel(lvl)

	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch strings.ToLower(format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	switch output {
	case "stdout", "":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		if maxAgeDays > 0 {
			l.SetOutput(&lumberjack.Logger{
				Filename:   output,
				MaxAge:     maxAgeDays,
				MaxSize:    50,
				MaxBackups: 5,
				Compress:   true,
			})
		} else {
			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file %q: %w", output, err)
			}
			l.SetOutput(f)
		}
	}

	mu.Lock()
	std = l
	mu.Unlock()
	return nil
}

// With returns an entry tagged with the component and extra fields.
func With(tag string, fields Fields) *logrus.Entry {
	return L().WithField("component", tag).WithFields(fields)
}

// Debug logs a debug message for the given component tag.
func Debug(tag, msg string) {
	L().WithField("component", tag).Debug(msg)
}

// Info logs an informational message for the given component tag.
func Info(tag, msg string) {
	L().WithField("component", tag).Info(msg)
}

// Success logs a completed operation.
func Success(tag, msg string) {
	L().WithFields(Fields{"component": tag, "status": "ok"}).Info(msg)
}

// Warn logs a recoverable problem.
func Warn(tag, msg string) {
	L().WithField("component", tag).Warn(msg)
}

// Error logs a failure. It never exits the process.
func Error(tag, msg string) {
	L().WithField("component", tag).Error(msg)
}

// Banner prints the startup banner.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	L().WithField("version", version).Info("eve-hubcompare starting")
}

// Section marks the start of a logical phase in the log.
func Section(title string) {
	L().Info("── " + title + " ──")
}

// Stats logs a single key/value statistic.
func Stats(key string, value interface{}) {
	L().WithFields(Fields{"stat": key, "value": value}).Info("stat")
}
