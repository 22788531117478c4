package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"StockLedger/app/security"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	System   SystemConfig   `json:"system"`
	FirstRun bool           `json:"first_run"`
}

// DatabaseConfig holds database connection settings. Driver is "sqlite"
// (default, Path used) or "postgres" (host settings used).
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
}

// ServerConfig holds the event/REST server settings
type ServerConfig struct {
	Port string `json:"port"`
}

// SystemConfig holds system settings
type SystemConfig struct {
	Environment       string `json:"environment"` // "development" or "production"
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	dir := os.Getenv("STOCKLEDGER_DATA_DIR")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".stockledger")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}

	return filepath.Join(dir, "config.json"), nil
}

// DefaultConfig returns the configuration used on first run
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "./data/stockledger.db",
		},
		Server: ServerConfig{Port: "8080"},
		System: SystemConfig{
			Environment:       "development",
			LowStockThreshold: 5,
		},
		FirstRun: true,
	}
}

// LoadConfig loads configuration from config.json, decrypts sensitive
// fields, and applies environment overrides. A missing file yields the
// defaults (and FirstRun = true).
func LoadConfig() (*AppConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file: %w", err)
		}
		cfg.FirstRun = false

		if cfg.Database.Password != "" {
			password, err := security.Decrypt(cfg.Database.Password)
			if err != nil {
				return nil, fmt.Errorf("could not decrypt database password: %w", err)
			}
			cfg.Database.Password = password
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// SaveConfig saves configuration to config.json after encrypting sensitive fields
func SaveConfig(cfg *AppConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	out := *cfg
	if out.Database.Password != "" {
		encrypted, err := security.Encrypt(out.Database.Password)
		if err != nil {
			return fmt.Errorf("could not encrypt database password: %w", err)
		}
		out.Database.Password = encrypted
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	return nil
}

// applyEnvOverrides lets deployment environment variables win over the file.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
		cfg.Database.Driver = "postgres"
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.System.Environment = v
	}
}

// PostgresDSN builds the postgres connection string.
// DATABASE_URL takes priority over individual settings.
func (c *DatabaseConfig) PostgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, c.Username, c.Password, c.Database, sslmode)
}
