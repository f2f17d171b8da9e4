package internal

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"learn.throttle/config"
)

// ConfigFile represents the top-level structure of the configuration file:
// a list of named throttle policies under the 'throttles' key.
type ConfigFile struct {
	Throttles []config.ThrottleConfig `yaml:"throttles"`
}

// LoadConfig reads and unmarshals the YAML config.
func LoadConfig(path string) (*ConfigFile, error) {
	log.Debug().Str("config_path", path).Msg("Loading configuration")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var cfg ConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config file %s: %w", path, err)
	}
	log.Debug().Str("config_path", path).Int("throttles", len(cfg.Throttles)).Msg("Configuration loaded")
	return &cfg, nil
}
