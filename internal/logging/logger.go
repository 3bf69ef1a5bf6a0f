package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except critical errors
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
	Level      LogLevel
	Output     io.Writer
	Format     string // "text", "json" or "plain"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	// Set output
	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	// Set format
	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "plain":
		logger.SetFormatter(&easy.Formatter{
			TimestampFormat: "2006-01-02 15:04:05",
			LogFormat:       "[%lvl%]: %time% - %msg%\n",
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   false,
		})
	}

	// Set log level based on our custom levels
	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	// Enable caller reporting if requested
	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	// Set up file logging if specified
	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}

		// Use multi-writer to write to both file and stdout
		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
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
	config := Config{
		Level:      LogLevelNormal,
		Output:     os.Stdout,
		Format:     "text",
		ShowCaller: false,
	}

	logger, _ := NewLogger(config)
	return logger
}

// WithContext returns a logger with context fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)

	// Add run ID if available in context
	if runID := ctx.Value("run_id"); runID != nil {
		entry = entry.WithField("run_id", runID)
	}

	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// Backup operation logging methods

// LogDatabaseConnection logs database connection attempts
func (l *Logger) LogDatabaseConnection(host string, database string, success bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "database_connection",
		"host":      host,
		"database":  database,
		"duration":  duration.String(),
		"success":   success,
	}

	if success {
		l.logger.WithFields(fields).Info("Database connection established")
	} else {
		if err != nil {
			fields["error"] = err.Error()
		}
		l.logger.WithFields(fields).Error("Database connection failed")
	}
}

// LogDump logs a mysqldump invocation for one database
func (l *Logger) LogDump(host, database string, size int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "dump",
		"host":      host,
		"database":  database,
		"size":      size,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Dump failed")
	} else {
		l.logger.WithFields(fields).Info("Dump completed")
	}
}

// LogChangeDetection logs the outcome of comparing a dump with the previous artifact
func (l *Logger) LogChangeDetection(database string, changed bool, previous string, duration time.Duration) {
	fields := logrus.Fields{
		"operation": "change_detection",
		"database":  database,
		"changed":   changed,
		"duration":  duration.String(),
	}
	if previous != "" {
		fields["previous"] = previous
	}

	if changed {
		l.logger.WithFields(fields).Info("Database changed since previous backup")
	} else {
		l.logger.WithFields(fields).Info("Database unchanged, skipping")
	}
}

// LogCompression logs a compression operation
func (l *Logger) LogCompression(database, algorithm string, originalSize, compressedSize int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation":       "compression",
		"database":        database,
		"algorithm":       algorithm,
		"original_size":   originalSize,
		"compressed_size": compressedSize,
		"duration":        duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Compression failed")
	} else {
		if l.level == LogLevelVerbose || l.level == LogLevelDebug {
			l.logger.WithFields(fields).Debug("Compression completed")
		}
	}
}

// LogUpload logs an artifact upload to a storage backend
func (l *Logger) LogUpload(backend, artifact string, size int64, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "upload",
		"backend":   backend,
		"artifact":  artifact,
		"size":      size,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Upload failed")
	} else {
		l.logger.WithFields(fields).Info("Upload completed")
	}
}

// LogRetention logs a retention cleanup pass
func (l *Logger) LogRetention(scope string, removed int, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "retention",
		"scope":     scope,
		"removed":   removed,
		"duration":  duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Retention cleanup failed")
	} else {
		l.logger.WithFields(fields).Info("Retention cleanup completed")
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

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.logger.Fatal(msg)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	switch level {
	case LogLevelQuiet:
		l.logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		l.logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		l.logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		l.logger.SetLevel(logrus.TraceLevel)
	}
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet:
		return l.logger.IsLevelEnabled(logrus.ErrorLevel)
	case LogLevelNormal:
		return l.logger.IsLevelEnabled(logrus.InfoLevel)
	case LogLevelVerbose:
		return l.logger.IsLevelEnabled(logrus.DebugLevel)
	case LogLevelDebug:
		return l.logger.IsLevelEnabled(logrus.TraceLevel)
	default:
		return false
	}
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}

	// Add additional fields
	for k, v := range fields {
		logFields[k] = v
	}

	l.logger.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		duration := time.Since(startTime)
		logFields["status"] = "completed"
		logFields["duration"] = duration.String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["success"] = false
			l.logger.WithFields(logFields).Error("Operation failed")
		} else {
			logFields["success"] = true
			l.logger.WithFields(logFields).Info("Operation completed")
		}
	}
}

// CreateContextWithRunID creates a context carrying the backup run ID for tracing
func CreateContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, "run_id", runID)
}

// GetRunIDFromContext extracts the backup run ID from context
func GetRunIDFromContext(ctx context.Context) string {
	if runID := ctx.Value("run_id"); runID != nil {
		if id, ok := runID.(string); ok {
			return id
		}
	}
	return ""
}

// SanitizeDSN masks the password portion of a MySQL DSN for logging
func SanitizeDSN(dsn string) string {
	// user:password@tcp(host:port)/db
	at := strings.Index(dsn, "@")
	if at == -1 {
		return dsn
	}

	colon := strings.Index(dsn[:at], ":")
	if colon == -1 {
		return dsn
	}

	return dsn[:colon+1] + "***" + dsn[at:]
}
