package main

import (
	"testing"
)

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://from-env/db")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("EXAMHUB_JWT_SECRET", "prefixed-secret")

	cmd := tokenCmd()
	rootCmd().AddCommand(cmd)
	if err := cmd.ParseFlags([]string{"--redis-url", "redis://flag:6379/1"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := loadConfig(viperForCmd(cmd))
	if cfg.DatabaseURL != "postgres://from-env/db" {
		t.Errorf("DatabaseURL = %q, want value from config.Load", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "prefixed-secret" {
		t.Errorf("JWTSecret = %q, want EXAMHUB_ override", cfg.JWTSecret)
	}
	if cfg.RedisURL != "redis://flag:6379/1" {
		t.Errorf("RedisURL = %q, want flag override", cfg.RedisURL)
	}
}

func TestCommandsRegistered(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"seed", "create-user", "token", "sweep"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}
}
