package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:                 "8000",
		Env:                  "production",
		DatabaseURL:          "postgres://localhost/carewatch",
		AuthIssuer:           "https://auth.example.com",
		PendingWindowMs:      1800000,
		SweepIntervalSeconds: 60,
		SweepBatchSize:       50,
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/carewatch")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %q", cfg.Port)
	}
	if cfg.PendingWindow() != 30*time.Minute {
		t.Errorf("expected default pending window 30m, got %v", cfg.PendingWindow())
	}
	if cfg.SweepInterval() != time.Minute {
		t.Errorf("expected default sweep interval 1m, got %v", cfg.SweepInterval())
	}
	if cfg.SweepBatchSize != 50 {
		t.Errorf("expected default batch size 50, got %d", cfg.SweepBatchSize)
	}
	if !cfg.IsDev() {
		t.Error("expected development mode by default")
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ProductionWithoutAuth(t *testing.T) {
	cfg := validConfig()
	cfg.AuthIssuer = ""
	cfg.AuthJWKSURL = ""
	cfg.JWTSigningKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for production config without auth")
	}
}

func TestValidate_DevWithoutAuth(t *testing.T) {
	cfg := validConfig()
	cfg.Env = "development"
	cfg.AuthIssuer = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("development mode should not require auth config: %v", err)
	}
}

func TestValidate_BadSweepSettings(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.PendingWindowMs = 0 },
		func(c *Config) { c.SweepIntervalSeconds = -1 },
		func(c *Config) { c.SweepBatchSize = 0 },
	}
	for i, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
