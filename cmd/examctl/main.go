// Command examctl is the operator CLI: fixtures, accounts, development
// tokens and one-off timeout sweeps.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Operator tooling for examhub",
		SilenceUsage: true,
	}

	f := root.PersistentFlags()
	f.String("database-url", "", "PostgreSQL URL (overrides DATABASE_URL)")
	f.String("redis-url", "", "Redis URL (overrides REDIS_URL)")
	f.String("jwt-secret", "", "HS256 signing secret (overrides JWT_SECRET)")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (json, pretty)")

	root.AddCommand(seedCmd(), createUserCmd(), tokenCmd(), sweepCmd())
	return root
}

// viperForCmd binds a command's flags and EXAMHUB_* environment to a fresh
// viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig starts from the server configuration and applies any CLI or
// EXAMHUB_* overrides on top.
func loadConfig(v *viper.Viper) *config.Config {
	cfg := config.Load()
	overrides := map[string]*string{
		"database-url": &cfg.DatabaseURL,
		"redis-url":    &cfg.RedisURL,
		"jwt-secret":   &cfg.JWTSecret,
		"log-level":    &cfg.LogLevel,
		"log-format":   &cfg.LogFormat,
	}
	for key, dst := range overrides {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	return cfg
}

// setup resolves configuration and a stderr logger so stdout stays clean for
// command output such as tokens.
func setup(cmd *cobra.Command) (*viper.Viper, *config.Config, zerolog.Logger) {
	v := viperForCmd(cmd)
	cfg := loadConfig(v)
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr).
		With().Str("component", "examctl").Str("command", cmd.Name()).Logger()
	return v, cfg, log
}

func requireDatabase(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("database URL is required (--database-url or DATABASE_URL)")
	}
	return nil
}
