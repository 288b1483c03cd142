//go:build !integration

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"saas-billing-backend/internal/config"
)

func TestLoadConfig(t *testing.T) {
	t.Run("should apply defaults with no file and no env", func(t *testing.T) {
		cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false)
		if err != nil {
			t.Fatalf("expected no error for a missing file, got: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
		}
		if cfg.Database.Name != "saas" {
			t.Errorf("expected default db name, got %q", cfg.Database.Name)
		}
		if cfg.RateLimit.Webhook.Limit != 60 || cfg.RateLimit.Webhook.Window != time.Minute {
			t.Errorf("unexpected webhook rate default: %+v", cfg.RateLimit.Webhook)
		}
		if cfg.Sweeper.Interval != 5*time.Minute {
			t.Errorf("unexpected sweeper interval default: %v", cfg.Sweeper.Interval)
		}
	})

	t.Run("should read the yaml file and let the environment win", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		body := []byte("server:\n  port: 9090\ndatabase:\n  uri: mongodb://file-host:27017\n  name: filedb\n")
		if err := os.WriteFile(path, body, 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("MONGODB_URI", "mongodb://env-host:27017")

		cfg, err := config.LoadConfig(path, true)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if cfg.Server.Port != 9090 {
			t.Errorf("expected port from file, got %d", cfg.Server.Port)
		}
		if cfg.Database.URI != "mongodb://env-host:27017" {
			t.Errorf("expected env to override file, got %q", cfg.Database.URI)
		}
		if cfg.Database.Name != "filedb" {
			t.Errorf("expected name from file, got %q", cfg.Database.Name)
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev mode flag carried through")
		}
	})

	t.Run("should reject malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("server:\n\tport: 1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := config.LoadConfig(path, false); err == nil {
			t.Fatal("expected a parse error")
		}
	})
}
