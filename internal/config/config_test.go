package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "staysync"
  environment: "test"
database:
  path: "test.db"
vendor:
  base_url: "https://vendor.example"
  token_url: "https://vendor.example/oauth/token"
  client_id: "cid"
  client_secret: "${TEST_VENDOR_SECRET}"
  rate_limit_rps: 4
worker:
  max_retries: 7
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("TEST_VENDOR_SECRET", "expanded-secret")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.App.Name != "staysync" {
		t.Errorf("expected app name staysync, got %s", cfg.App.Name)
	}
	if cfg.Vendor.ClientSecret != "expanded-secret" {
		t.Errorf("expected env expansion, got %s", cfg.Vendor.ClientSecret)
	}
	if cfg.Worker.MaxRetries != 7 {
		t.Errorf("expected max_retries 7, got %d", cfg.Worker.MaxRetries)
	}

	// Defaults fill the gaps.
	if cfg.Vendor.ListingsPath != "/v1/listings" {
		t.Errorf("expected default listings path, got %s", cfg.Vendor.ListingsPath)
	}
	if cfg.Vendor.PageLimit != 50 {
		t.Errorf("expected default page limit, got %d", cfg.Vendor.PageLimit)
	}
	if cfg.Vendor.MaxPages != 200 {
		t.Errorf("expected default max pages, got %d", cfg.Vendor.MaxPages)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default http port, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Exports.Path != "exports" {
		t.Errorf("expected default exports path, got %s", cfg.Exports.Path)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := Config{
		Database: DatabaseConfig{Path: "db.sqlite"},
		Vendor: VendorConfig{
			BaseURL:      "https://vendor.example",
			TokenURL:     "https://vendor.example/token",
			ClientID:     "cid",
			ClientSecret: "secret",
		},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"missing base url", func(c *Config) { c.Vendor.BaseURL = "" }, true},
		{"missing token url", func(c *Config) { c.Vendor.TokenURL = "" }, true},
		{"missing client secret", func(c *Config) { c.Vendor.ClientSecret = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("45s", time.Minute); got != 45*time.Second {
		t.Errorf("expected 45s, got %v", got)
	}
	if got := Duration("", time.Minute); got != time.Minute {
		t.Errorf("expected fallback, got %v", got)
	}
	if got := Duration("garbage", 2*time.Second); got != 2*time.Second {
		t.Errorf("expected fallback on parse error, got %v", got)
	}
}
