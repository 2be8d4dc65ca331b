package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ConfigFileName is the config file looked up in the working directory
// when no explicit path is given.
const ConfigFileName = "planforge.yaml"

// Load resolves the effective configuration. An explicit path must exist
// and parse; with no path, ConfigFileName in the working directory is used
// when present and defaults apply when it is not. The result is validated.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var config *Config
	switch {
	case path != "":
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded config", slog.String("path", path))
		config = loaded

	default:
		implicit := filepath.Join(".", ConfigFileName)
		loaded, err := LoadFromFile(implicit)
		switch {
		case err == nil:
			logger.Debug("Loaded config", slog.String("path", implicit))
			config = loaded
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("No config file found, using defaults")
			config = DefaultConfig()
		default:
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
