package waved

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "waved.toml")
	data := []byte("" +
		"[server]\n" +
		"broker = \"mqtt://localhost\"\n" +
		"identity = \"waved-test\"\n" +
		"api_key = \"secret\"\n" +
		"\n" +
		"[modules.mediastore]\n" +
		"enabled = true\n" +
		"node_id = \"wl:library:main\"\n" +
		"root = \"/tmp/wavelength\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Broker != "mqtt://localhost" {
		t.Fatalf("expected broker")
	}
	if !cfg.Modules.MediaStore.Enabled {
		t.Fatalf("expected mediastore enabled")
	}
}

func TestValidateServerRequiresBrokerAndKey(t *testing.T) {
	if err := ValidateServer(ServerConfig{APIKey: "k"}); err == nil {
		t.Fatalf("expected broker error")
	}
	if err := ValidateServer(ServerConfig{Broker: "mqtt://localhost"}); err == nil {
		t.Fatalf("expected api_key error")
	}
	if err := ValidateServer(ServerConfig{Broker: "mqtt://localhost", APIKey: "k"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("WAVELENGTH_BROKER", "mqtt://env-broker")
	t.Setenv("WAVELENGTH_API_KEY", "env-key")

	cfg := ApplyEnv(Config{Server: ServerConfig{Broker: "mqtt://file", APIKey: "file-key"}})
	if cfg.Server.Broker != "mqtt://env-broker" {
		t.Fatalf("broker = %s", cfg.Server.Broker)
	}
	if cfg.Server.APIKey != "env-key" {
		t.Fatalf("api_key = %s", cfg.Server.APIKey)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("default config path: %v", err)
	}
	if path == "" {
		t.Fatalf("expected path")
	}
}
