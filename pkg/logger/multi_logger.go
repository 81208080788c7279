package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryProvisioning LogCategory = "provisioning" // Tool check/install events (JSON)
	CategoryQueue        LogCategory = "queue"        // Download queue lifecycle events (JSON)
	CategoryError        LogCategory = "error"        // Application errors (JSON)
	CategoryDownload     LogCategory = "download"     // Raw yt-dlp output, written by the downloader
)

// Categories lists every category that can be read back
var Categories = []LogCategory{CategoryProvisioning, CategoryQueue, CategoryError, CategoryDownload}

// ParseCategory validates a category name
func ParseCategory(name string) (LogCategory, error) {
	for _, c := range Categories {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown log category %q", name)
}

// MultiLogger provides categorized logging with separate output files.
// Raw download output is written by the downloader directly, not through
// this logger.
type MultiLogger struct {
	loggers map[LogCategory]*zap.Logger
	files   []*os.File
	config  MultiLoggerConfig
	mu      sync.RWMutex
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	ml := &MultiLogger{
		loggers: make(map[LogCategory]*zap.Logger),
		config:  config,
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	levels := map[LogCategory]zapcore.Level{
		CategoryProvisioning: level,
		CategoryQueue:        level,
		CategoryError:        zapcore.ErrorLevel,
	}
	for category, lvl := range levels {
		l, err := ml.createStructuredLogger(category, lvl)
		if err != nil {
			ml.Close()
			return nil, fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		ml.loggers[category] = l
	}

	return ml, nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	file, err := os.OpenFile(ml.getCategoryLogPath(category), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	ml.files = append(ml.files, file)

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)
	return zap.New(core).With(zap.String("category", string(category))), nil
}

// getCategoryLogPath generates a log file path for a category with current date
func (ml *MultiLogger) getCategoryLogPath(category LogCategory) string {
	return CategoryLogPath(ml.config.LogsDir, category, time.Now())
}

// CategoryLogPath returns <dir>/<category>-YYYYMMDD.log
func CategoryLogPath(dir string, category LogCategory, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.log", category, date.Format("20060102")))
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	return ml.loggers[CategoryError]
}

// Provisioning returns the provisioning logger (JSON format)
func (ml *MultiLogger) Provisioning() *zap.Logger {
	return ml.GetLogger(CategoryProvisioning)
}

// Queue returns the queue logger (JSON format)
func (ml *MultiLogger) Queue() *zap.Logger {
	return ml.GetLogger(CategoryQueue)
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogQueueEvent logs a queue lifecycle event with structured data
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	ml.Queue().Info(event, fields...)
}

// LogProvisioningEvent logs a tool state transition
func (ml *MultiLogger) LogProvisioningEvent(event string, fields ...zap.Field) {
	ml.Provisioning().Info(event, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes all loggers and closes their files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	for _, f := range ml.files {
		if err := f.Close(); err != nil {
			lastErr = err
		}
	}
	ml.files = nil
	return lastErr
}
