package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options настройки логгера
type Options struct {
	Level    string
	File     string // читаемый лог, пусто - не писать
	JSONFile string // JSON лог, пусто - не писать
	Console  bool
	Truncate bool // очищать файлы при старте
}

// Глобальный экземпляр логгера
var (
	globalLogger *zap.Logger
	mu           sync.RWMutex
)

// Init инициализирует глобальный логгер
func Init(opts Options) error {
	l, err := newLogger(opts)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger подменяет глобальный логгер (используется в тестах)
func SetLogger(l *zap.Logger) {
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// GetLogger возвращает глобальный экземпляр логгера
func GetLogger() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		// До Init пишем только в консоль
		globalLogger, _ = newLogger(Options{Level: "info", Console: true})
	}
	return globalLogger
}

// Sync сбрасывает буферы
func Sync() {
	_ = GetLogger().Sync()
}

// Вспомогательные функции для удобства использования
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

func newLogger(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", opts.Level, err)
		}
	}

	// Конфигурация энкодера
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("02.01.2006 - 15:04:05.000000000Z07:00")
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	// Цвета только для человекочитаемых выводов
	readableConfig := encoderConfig
	readableConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	var cores []zapcore.Core

	if opts.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(readableConfig), zapcore.AddSync(os.Stdout), level))
	}

	if opts.File != "" {
		f, err := openLogFile(opts.File, opts.Truncate)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(readableConfig), zapcore.AddSync(f), level))
	}

	if opts.JSONFile != "" {
		f, err := openLogFile(opts.JSONFile, opts.Truncate)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func openLogFile(path string, truncate bool) (*os.File, error) {
	flags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла логов %s: %w", path, err)
	}
	return f, nil
}
