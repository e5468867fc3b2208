package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty allows all", "", nil},
		{"single", "https://exams.example.com", []string{"https://exams.example.com"}},
		{"trims and skips blanks", " http://a.test , ,http://b.test ", []string{"http://a.test", "http://b.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOrigins(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "2")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := Load()

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.SweepInterval != 2*time.Second {
		t.Errorf("SweepInterval = %v, want 2s", cfg.SweepInterval)
	}
	if cfg.MaxDBConns != 20 {
		t.Errorf("MaxDBConns = %d, want fallback 20", cfg.MaxDBConns)
	}
	if cfg.PaperCacheTTL != 30*time.Minute {
		t.Errorf("PaperCacheTTL = %v, want 30m", cfg.PaperCacheTTL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:     "postgres://localhost/examhub",
			JWTSecret:       "secret",
			SweepInterval:   time.Second,
			SweepBatchSize:  10,
			AnswerRateLimit: 60,
			PaperCacheTTL:   time.Minute,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	broken := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no database", func(c *Config) { c.DatabaseURL = "" }},
		{"no secret", func(c *Config) { c.JWTSecret = "" }},
		{"zero interval", func(c *Config) { c.SweepInterval = 0 }},
		{"zero batch", func(c *Config) { c.SweepBatchSize = 0 }},
		{"zero rate", func(c *Config) { c.AnswerRateLimit = 0 }},
		{"zero ttl", func(c *Config) { c.PaperCacheTTL = 0 }},
	}
	for _, tt := range broken {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ExamPaperKey("abc"); got != "exam:abc:paper" {
		t.Errorf("ExamPaperKey = %q", got)
	}
	if got := CacheKey.ExamEventsChannel("abc"); got != "exam:abc:events" {
		t.Errorf("ExamEventsChannel = %q", got)
	}
}
