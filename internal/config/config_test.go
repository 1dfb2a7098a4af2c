package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tracker")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("BAG_COUNT_TOLERANCE", "")
	t.Setenv("RECONCILE_INTERVAL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.ServerPort)
	}
	if cfg.BagCountTolerance != 5 {
		t.Errorf("expected default tolerance 5, got %d", cfg.BagCountTolerance)
	}
	if cfg.ReconcileInterval != 15*time.Minute {
		t.Errorf("expected default interval 15m, got %s", cfg.ReconcileInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tracker")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BAG_COUNT_TOLERANCE", "12")
	t.Setenv("RECONCILE_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerPort != "9090" || cfg.BagCountTolerance != 12 || cfg.ReconcileInterval != 0 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{"DATABASE_URL": "", "JWT_SECRET": "s"}},
		{"missing jwt secret", map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "", "SERVER_PORT": "8080"}},
		{"non-numeric port", map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "s", "SERVER_PORT": "http"}},
		{"negative tolerance", map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "s", "SERVER_PORT": "8080", "BAG_COUNT_TOLERANCE": "-1"}},
		{"bad interval", map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "s", "SERVER_PORT": "8080", "BAG_COUNT_TOLERANCE": "", "RECONCILE_INTERVAL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
