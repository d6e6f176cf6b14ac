package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestApplyEnvOverrides_FillsInDefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("server port = %d, want default 8080", cfg.ServerConfig.Port)
	}
	if cfg.ServerConfig.Host != "0.0.0.0" {
		t.Errorf("server host = %q, want default 0.0.0.0", cfg.ServerConfig.Host)
	}
	if cfg.DatabaseConfig.Database != "dcasim" {
		t.Errorf("database name = %q, want default dcasim", cfg.DatabaseConfig.Database)
	}
	if cfg.LoggingConfig.Level != "INFO" {
		t.Errorf("log level = %q, want default INFO", cfg.LoggingConfig.Level)
	}
	if cfg.SimulationConfig.DefaultLotSizeUsd != 1000 {
		t.Errorf("default lot size = %v, want 1000", cfg.SimulationConfig.DefaultLotSizeUsd)
	}
}

func TestApplyEnvOverrides_EnvironmentAlwaysWins(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_NAME", "otherdb")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := &Config{ServerConfig: ServerConfig{Port: 1234}, DatabaseConfig: DatabaseConfig{Database: "filedb"}}
	applyEnvOverrides(cfg)

	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("server port = %d, want env override 9090", cfg.ServerConfig.Port)
	}
	if cfg.DatabaseConfig.Database != "otherdb" {
		t.Errorf("database name = %q, want env override otherdb", cfg.DatabaseConfig.Database)
	}
	if cfg.LoggingConfig.Level != "debug" {
		t.Errorf("log level = %q, want env override debug", cfg.LoggingConfig.Level)
	}
}

func TestLoad_FallsBackToDefaultsWhenNoFilePresent(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil even without a config file", err)
	}
	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("server port = %d, want default 8080", cfg.ServerConfig.Port)
	}
}

func TestLoad_FileValuesSurviveWhenNoEnvOverrideIsSet(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	fileCfg := Config{DatabaseConfig: DatabaseConfig{Host: "db.internal", Port: 6543}}
	data, err := json.Marshal(fileCfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatalf("writing config.json: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseConfig.Host != "db.internal" || cfg.DatabaseConfig.Port != 6543 {
		t.Errorf("database config = %+v, want the file's values carried through", cfg.DatabaseConfig)
	}
}

func TestGenerateSampleConfig_ProducesValidRoundTrippableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	if err := GenerateSampleConfig(path); err != nil {
		t.Fatalf("GenerateSampleConfig error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading sample config: %v", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config is not valid JSON: %v", err)
	}
	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("sample server port = %d, want 8080", cfg.ServerConfig.Port)
	}
	if cfg.SimulationConfig.DefaultMaxLots != 10 {
		t.Errorf("sample default max lots = %d, want 10", cfg.SimulationConfig.DefaultMaxLots)
	}
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	return func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatalf("restoring cwd: %v", err)
		}
	}
}
