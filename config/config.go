// Package config holds the service's struct-of-structs configuration, in
// the project's existing style: JSON file as the base, environment
// variables layered on top and always taking precedence. The boolean
// fields redis.enabled, logging.json_format and logging.include_file are
// the exception: they come only from REDIS_ENABLED (default true), LOG_JSON
// (default true) and LOG_INCLUDE_FILE (default false), and their values in
// config.json are not read.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the top-level, JSON-serializable configuration for dcasimd.
type Config struct {
	ServerConfig     ServerConfig     `json:"server"`
	DatabaseConfig   DatabaseConfig   `json:"database"`
	RedisConfig      RedisConfig      `json:"redis"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	SimulationConfig SimulationConfig `json:"simulation"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`     // seconds
	WriteTimeout    int    `json:"write_timeout"`    // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

// DatabaseConfig holds the Postgres bar-repository connection.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds the market-data read-through cache connection.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or a file path
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// SimulationConfig holds defaults for runs that don't specify every
// parameter explicitly.
type SimulationConfig struct {
	DefaultLotSizeUsd    float64 `json:"default_lot_size_usd"`
	DefaultMaxLots       int     `json:"default_max_lots"`
	DefaultBetaCoefficient float64 `json:"default_beta_coefficient"`
	MaxBatchWorkers      int     `json:"max_batch_workers"` // 0 = GOMAXPROCS(0)
}

// Load reads config.json if present, then applies environment variable
// overrides (which always win). The three boolean fields named in the
// package comment are taken from the environment only.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", orDefault(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", orDefaultStr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", orDefaultStr(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", orDefault(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", orDefault(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", orDefault(cfg.ServerConfig.ShutdownTimeout, 10))

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", orDefaultStr(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", orDefault(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", orDefaultStr(cfg.DatabaseConfig.Database, "dcasim"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", orDefaultStr(cfg.DatabaseConfig.SSLMode, "disable"))

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "true") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", orDefaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", orDefault(cfg.RedisConfig.PoolSize, 10))

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", orDefaultStr(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", orDefaultStr(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	cfg.SimulationConfig.DefaultLotSizeUsd = getEnvFloatOrDefault("SIM_DEFAULT_LOT_SIZE_USD", orDefaultFloat(cfg.SimulationConfig.DefaultLotSizeUsd, 1000))
	cfg.SimulationConfig.DefaultMaxLots = getEnvIntOrDefault("SIM_DEFAULT_MAX_LOTS", orDefault(cfg.SimulationConfig.DefaultMaxLots, 10))
	cfg.SimulationConfig.DefaultBetaCoefficient = getEnvFloatOrDefault("SIM_DEFAULT_BETA_COEFFICIENT", orDefaultFloat(cfg.SimulationConfig.DefaultBetaCoefficient, 0.1))
	cfg.SimulationConfig.MaxBatchWorkers = getEnvIntOrDefault("SIM_MAX_BATCH_WORKERS", cfg.SimulationConfig.MaxBatchWorkers)
}

func orDefault(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultFloat(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultStr(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a sample configuration file to filename.
func GenerateSampleConfig(filename string) error {
	cfg := Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "dcasim",
			Database: "dcasim",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Enabled:  true,
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:      "INFO",
			Output:     "stdout",
			JSONFormat: true,
		},
		SimulationConfig: SimulationConfig{
			DefaultLotSizeUsd:      1000,
			DefaultMaxLots:         10,
			DefaultBetaCoefficient: 0.1,
		},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
