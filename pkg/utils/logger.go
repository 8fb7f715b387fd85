package utils

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logger.go - настройка структурированного логирования (zap)
//
// Вывод: консоль, файл (с ротацией через lumberjack) или оба.
// Уровень и формат берутся из конфигурации при старте процесса.

var (
	sugaredLogger *zap.SugaredLogger
	loggerOnce    sync.Once
)

// LoggerConfig - настройки логирования
type LoggerConfig struct {
	Level      string // debug, info, warn, error
	Output     string // console, file, both
	File       string // путь к лог-файлу
	MaxSizeMB  int    // размер файла до ротации
	MaxBackups int    // количество старых файлов
	MaxAgeDays int    // срок хранения в днях
}

// InitLogger инициализирует глобальный zap logger
//
// Вызывается один раз из main до старта компонентов.
func InitLogger(cfg LoggerConfig) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	consoleEncoderConfig := zap.NewProductionEncoderConfig()
	consoleEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleEncoderConfig)

	var cores []zapcore.Core

	output := strings.ToLower(cfg.Output)
	if output == "file" || output == "both" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(jsonEncoder, fileWriter, logLevel))
	}

	if output == "console" || output == "both" || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), logLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	sugaredLogger = logger.Sugar()
}

// L возвращает глобальный sugared logger
//
// Если InitLogger не вызывался (тесты), создает дефолтный
// console logger уровня info.
func L() *zap.SugaredLogger {
	if sugaredLogger == nil {
		loggerOnce.Do(func() {
			if sugaredLogger == nil {
				logger, _ := zap.NewProduction()
				sugaredLogger = logger.Sugar()
			}
		})
	}
	return sugaredLogger
}

// Sync сбрасывает буферы логгера (вызывать при shutdown)
func Sync() {
	if sugaredLogger != nil {
		_ = sugaredLogger.Sync()
	}
}
