package config

import (
	"fmt"

	"go.uber.org/zap"
)

type LogConfig struct {
	Level string `yaml:"level"`
	// Development switches to the console encoder.
	Development bool `yaml:"development"`
}

func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if c.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
