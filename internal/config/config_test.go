package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected server addr ':8080', got '%s'", cfg.Server.Addr)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Expected sqlite backend, got '%s'", cfg.Storage.Backend)
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("Expected bcrypt cost 12, got %d", cfg.Auth.BcryptCost)
	}
	if cfg.Auth.SessionTTL != 30*24*time.Hour {
		t.Errorf("Expected 30 day session TTL, got %v", cfg.Auth.SessionTTL)
	}
	if cfg.Backup.MaxBackups != 50 {
		t.Errorf("Expected 50 max backups, got %d", cfg.Backup.MaxBackups)
	}
	if cfg.Backup.MaxSize != 100*1024*1024 {
		t.Errorf("Expected 100MB max backup size, got %d", cfg.Backup.MaxSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codesnip.yaml")

	content := `server:
  addr: ":9090"
  base_url: "https://snippets.example.com"
storage:
  backend: memory
auth:
  bcrypt_cost: 4
  session_ttl: 2h
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Expected addr ':9090', got '%s'", cfg.Server.Addr)
	}
	if cfg.Server.BaseURL != "https://snippets.example.com" {
		t.Errorf("Unexpected base url '%s'", cfg.Server.BaseURL)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Expected memory backend, got '%s'", cfg.Storage.Backend)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("Expected 2h session TTL, got %v", cfg.Auth.SessionTTL)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected json log format, got '%s'", cfg.Log.Format)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Backup.MaxBackups != 50 {
		t.Errorf("Expected default max backups, got %d", cfg.Backup.MaxBackups)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codesnip.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: sqlite\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("CODESNIP_STORAGE_BACKEND", "bolt")
	t.Setenv("CODESNIP_ADMIN_TOKEN", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Backend != "bolt" {
		t.Errorf("Expected env to override backend, got '%s'", cfg.Storage.Backend)
	}
	if cfg.Admin.Token != "s3cret" {
		t.Errorf("Expected admin token from env, got '%s'", cfg.Admin.Token)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 1 }},
		{"zero session ttl", func(c *Config) { c.Auth.SessionTTL = 0 }},
		{"zero sweep interval", func(c *Config) { c.Auth.SweepInterval = 0 }},
		{"negative sweep interval", func(c *Config) { c.Auth.SweepInterval = -time.Minute }},
		{"zero rate burst", func(c *Config) { c.Auth.RateBurst = 0 }},
		{"zero max backups", func(c *Config) { c.Backup.MaxBackups = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
