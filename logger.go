package main

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global sugared logger. Set once by initLogger; the no-op default keeps
// tests and early startup code safe to call.
var (
	logMu  sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// initLogger builds the process-wide zap logger from config.
func initLogger(cfg LoggingConfig) error {
	zc := zap.NewProductionConfig()
	if !cfg.JSON {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zc.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}
	l, err := zc.Build()
	if err != nil {
		return err
	}
	logMu.Lock()
	logger = l.Sugar()
	logMu.Unlock()
	return nil
}

// syncLogger flushes buffered log entries. Called on shutdown.
// Sync on a terminal returns an error on some platforms; nothing to do about it.
func syncLogger() {
	_ = getLogger().Sync()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// logDebug, logInfo, logWarn, logError log a message with alternating
// key/value fields, e.g. logInfo("reminder fired", "id", id).
func logDebug(msg string, fields ...any) { getLogger().Debugw(msg, fields...) }
func logInfo(msg string, fields ...any)  { getLogger().Infow(msg, fields...) }
func logWarn(msg string, fields ...any)  { getLogger().Warnw(msg, fields...) }
func logError(msg string, fields ...any) { getLogger().Errorw(msg, fields...) }

func getLogger() *zap.SugaredLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}
