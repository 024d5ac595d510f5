// Package logger настраивает структурированное логирование через zap.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap оборачивает zap.Logger, чтобы пакеты не зависели от zap напрямую.
type Zap struct {
	*zap.Logger
}

// New создает логгер для окружения (dev/prod) с указанным уровнем.
func New(env, level string) (*Zap, error) {
	var cfg zap.Config
	if env == "prod" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Zap{Logger: log}, nil
}

// Named возвращает логгер с префиксом (обычно имя пакета или окна).
func (z *Zap) Named(name string) *Zap {
	return &Zap{Logger: z.Logger.Named(name)}
}

// With добавляет поля ко всем последующим записям.
func (z *Zap) With(fields ...zap.Field) *Zap {
	return &Zap{Logger: z.Logger.With(fields...)}
}
