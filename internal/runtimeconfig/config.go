// Package runtimeconfig loads the bootstrap configuration for an ECS world:
// its default size, entity-recycling threshold, serializer defaults, and log
// level. It never carries gameplay data -- that is explicitly out of scope.
package runtimeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the top-level bootstrap document.
type Config struct {
	World      WorldConfig      `toml:"world" yaml:"world"`
	Serializer SerializerConfig `toml:"serializer" yaml:"serializer"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
}

// WorldConfig controls entity pool sizing and recycling.
type WorldConfig struct {
	// DefaultSize is the entity capacity cmd/ecsruntimed passes to NewWorld.
	DefaultSize int `toml:"default_size" yaml:"default_size"`

	// RecycleFraction is the `fraction` in |removed| > round(size * fraction)
	// for entity id reuse. 0.01 by default. ecs.NewWorld does not read it:
	// every world uses a fraction of 0.01.
	RecycleFraction float64 `toml:"recycle_fraction" yaml:"recycle_fraction"`
}

// SerializerConfig controls serializer defaults.
type SerializerConfig struct {
	// DefaultMode is one of "json", "binary", "base64".
	DefaultMode string `toml:"default_mode" yaml:"default_mode"`
}

// LoggingConfig controls the zap logger built for a world.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Load reads and parses a config file, filling in defaults for any field the
// file omits. The format is chosen by extension: ".yaml"/".yml" is parsed
// with gopkg.in/yaml.v3, anything else with the TOML parser.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Defaults returns the configuration used when no file is supplied.
func Defaults() *Config {
	return &Config{
		World: WorldConfig{
			DefaultSize:     4096,
			RecycleFraction: 0.01,
		},
		Serializer: SerializerConfig{
			DefaultMode: "binary",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
