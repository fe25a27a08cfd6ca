// Package config handles driver configuration loading.
package config

import (
	"go.uber.org/zap"

	bridge "github.com/flywave/go-anari-bridge"
	"github.com/flywave/go-anari-bridge/internal/logger"
)

// Config holds all driver settings.
type Config struct {
	Bridge  BridgeConfig  `yaml:"bridge"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// BridgeConfig tunes the scene conversion.
type BridgeConfig struct {
	MaxIndex        uint64 `yaml:"max_index"` // used when the device reports no limit
	StrictClearcoat bool   `yaml:"strict_clearcoat"`
}

// ExportConfig controls the optional mst snapshot of the committed world.
type ExportConfig struct {
	MstPath string `yaml:"mst_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string            `yaml:"level"`
	File  logger.FileConfig `yaml:"file"`
}

// Default returns a Config with the values the driver runs with when
// nothing else is given.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			MaxIndex: bridge.DefaultIndexLimit,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  logger.DefaultFileConfig(""),
		},
	}
}

// BridgeOptions maps the configuration onto bridge options.
func (c *Config) BridgeOptions(log *zap.Logger) *bridge.Options {
	return &bridge.Options{
		DefaultIndexLimit: c.Bridge.MaxIndex,
		StrictClearcoat:   c.Bridge.StrictClearcoat,
		Logger:            log,
	}
}
