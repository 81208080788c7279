package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerAdapter hands out per-category loggers. With a MultiLogger each
// category also goes to its own file; otherwise everything goes to the
// general logger.
type LoggerAdapter struct {
	general     *zap.Logger
	multiLogger *MultiLogger
}

// NewLoggerAdapter creates a new logger adapter. multiLogger may be nil.
func NewLoggerAdapter(general *zap.Logger, multiLogger *MultiLogger) *LoggerAdapter {
	if general == nil {
		general = zap.NewNop()
	}
	return &LoggerAdapter{
		general:     general,
		multiLogger: multiLogger,
	}
}

// NewSingleLoggerAdapter creates an adapter for a single logger
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return NewLoggerAdapter(logger, nil)
}

// General returns the general logger
func (la *LoggerAdapter) General() *zap.Logger {
	return la.general
}

// Provisioning returns a logger writing to the console and the provisioning file
func (la *LoggerAdapter) Provisioning() *zap.Logger {
	return la.category(CategoryProvisioning)
}

// Queue returns a logger writing to the console and the queue file
func (la *LoggerAdapter) Queue() *zap.Logger {
	return la.category(CategoryQueue)
}

// Error returns a logger writing to the console and the error file
func (la *LoggerAdapter) Error() *zap.Logger {
	return la.category(CategoryError)
}

func (la *LoggerAdapter) category(c LogCategory) *zap.Logger {
	if la.multiLogger == nil {
		return la.general.Named(string(c))
	}
	file := la.multiLogger.GetLogger(c)
	return zap.New(zapcore.NewTee(la.general.Core(), file.Core())).Named(string(c))
}

// LogError logs an error to the category logger and the error log
func (la *LoggerAdapter) LogError(category LogCategory, msg string, fields ...zap.Field) {
	la.category(category).Error(msg, fields...)
	if la.multiLogger != nil && category != CategoryError {
		la.multiLogger.LogAppError(msg, append(fields, zap.String("source", string(category)))...)
	}
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	err := la.general.Sync()
	if la.multiLogger != nil {
		if mErr := la.multiLogger.Sync(); mErr != nil {
			err = mErr
		}
	}
	return err
}

// GetMultiLogger returns the underlying multi-logger (may be nil)
func (la *LoggerAdapter) GetMultiLogger() *MultiLogger {
	return la.multiLogger
}
