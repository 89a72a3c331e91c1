package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level   LogLevel
	Output  io.Writer
	Format  string // "text" or "json"
	LogFile string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	logger.SetLevel(logrusLevel(config.Level))

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stderr, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Format: "text",
	})
	return logger
}

func logrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelQuiet:
		return logrus.ErrorLevel
	case LogLevelVerbose:
		return logrus.DebugLevel
	case LogLevelDebug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// WithFields returns a logger entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// LogBackup logs the outcome of a backup operation
func (l *Logger) LogBackup(environment, scope, path string, size int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "backup",
		"environment": environment,
		"scope":       scope,
		"path":        path,
		"size":        size,
		"duration":    duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Backup failed")
		return
	}
	l.logger.WithFields(fields).Info("Backup completed")
}

// LogRestore logs the outcome of a restore operation
func (l *Logger) LogRestore(environment, path string, drop bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "restore",
		"environment": environment,
		"path":        path,
		"drop":        drop,
		"duration":    duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Restore failed")
		return
	}
	l.logger.WithFields(fields).Info("Restore completed")
}

// LogMigration logs a migration step
func (l *Logger) LogMigration(environment, direction, revision string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":   "migration",
		"environment": environment,
		"direction":   direction,
		"revision":    revision,
		"duration":    duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Migration failed")
		return
	}
	l.logger.WithFields(fields).Info("Migration completed")
}

// LogComparison logs a schema comparison
func (l *Logger) LogComparison(sourceEnv, targetEnv string, changesFound int, duration time.Duration) {
	fields := logrus.Fields{
		"operation":     "schema_comparison",
		"source":        sourceEnv,
		"target":        targetEnv,
		"changes_found": changesFound,
		"duration":      duration.String(),
	}
	if changesFound > 0 {
		l.logger.WithFields(fields).Info("Schema differences detected")
	} else {
		l.logger.WithFields(fields).Info("No schema differences found")
	}
}

// LogOperationStart logs the start of an operation and returns a function to
// log completion.
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{"operation": operation}
	for k, v := range fields {
		logFields[k] = v
	}

	l.logger.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["duration"] = time.Since(startTime).String()
		if err != nil {
			logFields["error"] = err.Error()
			l.logger.WithFields(logFields).Error("Operation failed")
		} else {
			l.logger.WithFields(logFields).Info("Operation completed")
		}
	}
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.logger.SetLevel(logrusLevel(level))
}
