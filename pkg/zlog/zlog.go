package zlog

import (
	"os"
	"path/filepath"
	"sync"

	"Mano/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger   *zap.Logger
	initOnce sync.Once
)

// getLogger 惰性初始化全局logger（控制台 + lumberjack文件轮转）
func getLogger() *zap.Logger {
	initOnce.Do(func() {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		cores := []zapcore.Core{
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encoderCfg),
				zapcore.AddSync(os.Stdout),
				zapcore.InfoLevel,
			),
		}

		logPath := config.GetConfig().LogConfig.LogPath
		if logPath != "" {
			writer := &lumberjack.Logger{
				Filename:   filepath.Join(logPath, "mano.log"),
				MaxSize:    100, // MB
				MaxBackups: 7,
				MaxAge:     30, // 天
				Compress:   true,
			}
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(encoderCfg),
				zapcore.AddSync(writer),
				zapcore.InfoLevel,
			))
		}

		logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	})
	return logger
}

func Debug(msg string, fields ...zap.Field) {
	getLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	getLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	getLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	getLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	getLogger().Fatal(msg, fields...)
}

// Sync 刷新缓冲日志（进程退出前调用）
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
