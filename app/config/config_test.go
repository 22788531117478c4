package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigFirstRun(t *testing.T) {
	t.Setenv("STOCKLEDGER_DATA_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.FirstRun {
		t.Fatal("missing file should report first run")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("default driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("default port = %q, want 8080", cfg.Server.Port)
	}
}

func TestSaveAndLoadEncryptsPassword(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STOCKLEDGER_DATA_DIR", dir)

	cfg := DefaultConfig()
	cfg.Database.Driver = "postgres"
	cfg.Database.Host = "db.internal"
	cfg.Database.Password = "hunter2"
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("read config file: %v", err)
	}
	if strings.Contains(string(raw), "hunter2") {
		t.Fatal("password stored in plaintext")
	}
	var onDisk AppConfig
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("parse config file: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.FirstRun {
		t.Fatal("existing file reported as first run")
	}
	if loaded.Database.Password != "hunter2" {
		t.Fatalf("decrypted password = %q", loaded.Database.Password)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STOCKLEDGER_DATA_DIR", t.TempDir())
	t.Setenv("DB_HOST", "pg.example.com")
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("DB_HOST should switch driver to postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.Host != "pg.example.com" {
		t.Fatalf("host = %q", cfg.Database.Host)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
}

func TestPostgresDSN(t *testing.T) {
	c := &DatabaseConfig{Username: "app", Password: "pw", Database: "stock"}
	dsn := c.PostgresDSN()
	for _, want := range []string{"host=localhost", "port=5432", "dbname=stock", "sslmode=disable"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %q", dsn, want)
		}
	}

	t.Setenv("DATABASE_URL", "postgres://u:p@h/db")
	if got := c.PostgresDSN(); got != "postgres://u:p@h/db" {
		t.Fatalf("DATABASE_URL not honored: %q", got)
	}
}
