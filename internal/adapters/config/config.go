package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds CLI configuration from config.toml.
type Config struct {
	Broker    string            `toml:"broker"`
	APIKey    string            `toml:"api_key"`
	Identity  string            `toml:"identity"`
	TopicBase string            `toml:"topic_base"`
	Aliases   map[string]string `toml:"aliases"`
	Defaults  Defaults          `toml:"defaults"`
}

// Defaults defines default selector values.
type Defaults struct {
	Player   string `toml:"player"`
	Library  string `toml:"library"`
	Playlist string `toml:"playlist"`
}

// Load loads config.toml if present, then applies WAVELENGTH_BROKER and
// WAVELENGTH_API_KEY overrides. Missing file returns an empty config.
func Load() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, err
	case info.IsDir():
		return Config{}, errors.New("config path is a directory")
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if v := os.Getenv("WAVELENGTH_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := os.Getenv("WAVELENGTH_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}
	return cfg, nil
}

func configPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "wave", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "wave", "config.toml"), nil
}
