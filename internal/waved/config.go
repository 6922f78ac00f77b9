package waved

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for waved.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string `toml:"broker"`
	Identity  string `toml:"identity"`
	APIKey    string `toml:"api_key"`
	TopicBase string `toml:"topic_base"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogOutput string `toml:"log_output"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	MediaStore   MediaStoreConfig   `toml:"mediastore"`
	Playlist     PlaylistConfig     `toml:"playlist"`
	Podcast      PodcastConfig      `toml:"podcast"`
	Player       PlayerConfig       `toml:"player"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// MediaStoreConfig configures the media store module.
type MediaStoreConfig struct {
	Enabled    bool   `toml:"enabled"`
	NodeID     string `toml:"node_id"`
	Name       string `toml:"name"`
	Root       string `toml:"root"`
	HTTPListen string `toml:"http_listen"`
}

// PlaylistConfig configures the playlist server module.
type PlaylistConfig struct {
	Enabled bool   `toml:"enabled"`
	NodeID  string `toml:"node_id"`
	Name    string `toml:"name"`
	Root    string `toml:"root"`
}

// PodcastConfig configures the podcast feed module.
type PodcastConfig struct {
	Enabled           bool   `toml:"enabled"`
	NodeID            string `toml:"node_id"`
	Name              string `toml:"name"`
	Root              string `toml:"root"`
	RefreshIntervalMS int64  `toml:"refresh_interval_ms"`
	TimeoutMS         int64  `toml:"timeout_ms"`
}

// PlayerConfig configures the player module.
type PlayerConfig struct {
	Enabled     bool    `toml:"enabled"`
	NodeID      string  `toml:"node_id"`
	Name        string  `toml:"name"`
	Pipeline    string  `toml:"pipeline"`
	Device      string  `toml:"device"`
	CrossfadeMS int64   `toml:"crossfade_ms"`
	Volume      float64 `toml:"volume"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment overrides onto the config.
func ApplyEnv(cfg Config) Config {
	if broker := os.Getenv("WAVELENGTH_BROKER"); broker != "" {
		cfg.Server.Broker = broker
	}
	if key := os.Getenv("WAVELENGTH_API_KEY"); key != "" {
		cfg.Server.APIKey = key
	}
	return cfg
}

// ValidateServer enforces the required connection parameters. A missing
// broker or API key is fatal at startup, never papered over with defaults.
func ValidateServer(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Broker) == "" {
		return errors.New("broker required (config, or WAVELENGTH_BROKER)")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return errors.New("api_key required (config, or WAVELENGTH_API_KEY)")
	}
	return nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "wavelength", "waved.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "wavelength", "waved.toml"), nil
}
