package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cesargomez89/songpipe/internal/constants"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != constants.DefaultDBPath {
		t.Errorf("Expected DBPath to be %s, got %s", constants.DefaultDBPath, cfg.DBPath)
	}

	if cfg.BatchLimit != constants.DefaultBatchLimit {
		t.Errorf("Expected BatchLimit to be %d, got %d", constants.DefaultBatchLimit, cfg.BatchLimit)
	}

	if len(cfg.TargetLanguages) != 3 {
		t.Errorf("Expected 3 default target languages, got %v", cfg.TargetLanguages)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("BATCH_LIMIT", "7")
	t.Setenv("TARGET_LANGUAGES", "ES, ja ,ko,")
	t.Setenv("S3_USE_SSL", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("Expected DBPath to be /tmp/test.db, got %s", cfg.DBPath)
	}
	if cfg.BatchLimit != 7 {
		t.Errorf("Expected BatchLimit to be 7, got %d", cfg.BatchLimit)
	}
	if strings.Join(cfg.TargetLanguages, ",") != "es,ja,ko" {
		t.Errorf("Expected es,ja,ko, got %v", cfg.TargetLanguages)
	}
	if !cfg.S3UseSSL {
		t.Error("Expected S3UseSSL to be true")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songpipe.toml")
	contents := `
db_path = "/data/from-file.db"
batch_limit = 50
cycle_delay_seconds = 30
target_languages = ["it", "pt", "nl"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("BATCH_LIMIT", "10")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBPath != "/data/from-file.db" {
		t.Errorf("Expected DBPath from file, got %s", cfg.DBPath)
	}
	if cfg.BatchLimit != 10 {
		t.Errorf("Expected env to override file, got %d", cfg.BatchLimit)
	}
	if cfg.CycleDelay().Seconds() != 30 {
		t.Errorf("Expected 30s cycle delay, got %v", cfg.CycleDelay())
	}
	if cfg.TargetLanguages[0] != "it" {
		t.Errorf("Expected target languages from file, got %v", cfg.TargetLanguages)
	}
}

func TestLoadNormalizesFileLanguages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songpipe.toml")
	contents := `
source_language = " EN "
target_languages = ["ES", "FR", " es ", "DE", "fr"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SourceLanguage != "en" {
		t.Errorf("Expected source language en, got %q", cfg.SourceLanguage)
	}
	if got := strings.Join(cfg.TargetLanguages, ","); got != "es,fr,de" {
		t.Errorf("Expected es,fr,de, got %s", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.DBDriver = "mysql" },
			wantErr: "DB_DRIVER must be one of",
		},
		{
			name:    "postgres without url",
			mutate:  func(c *Config) { c.DBDriver = "postgres" },
			wantErr: "DATABASE_URL cannot be empty",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "LOG_LEVEL must be one of",
		},
		{
			name:    "too few languages",
			mutate:  func(c *Config) { c.TargetLanguages = []string{"es"} },
			wantErr: "TARGET_LANGUAGES must list at least 3",
		},
		{
			name:    "source language listed as target",
			mutate:  func(c *Config) { c.SourceLanguage = "en"; c.TargetLanguages = []string{"EN", "es", "fr"} },
			wantErr: "got: 2",
		},
		{
			name:    "duplicate targets",
			mutate:  func(c *Config) { c.TargetLanguages = []string{"es", "ES", " es", "fr"} },
			wantErr: "got: 2",
		},
		{
			name:    "bad provider url",
			mutate:  func(c *Config) { c.MLCURL = "not a url" },
			wantErr: "MLC_URL is not a valid URL",
		},
		{
			name:    "s3 without credentials",
			mutate:  func(c *Config) { c.S3Endpoint = "localhost:9000" },
			wantErr: "S3_ACCESS_KEY and S3_SECRET_KEY are required",
		},
		{
			name:    "non-positive batch",
			mutate:  func(c *Config) { c.BatchLimit = 0 },
			wantErr: "BATCH_LIMIT must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
