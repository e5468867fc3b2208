package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/marcinucieklak/examhub/internal/app"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/handler"
	"github.com/marcinucieklak/examhub/internal/i18n"
	"github.com/marcinucieklak/examhub/internal/logger"
	"github.com/marcinucieklak/examhub/internal/middleware"
	"github.com/marcinucieklak/examhub/internal/router"
	"github.com/marcinucieklak/examhub/internal/validator"
	"github.com/marcinucieklak/examhub/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting examhub")

	// ─── Initialize Validator & Translations ──────────────────────────
	validator.Setup()
	if err := i18n.Init(cfg.DefaultLanguage); err != nil {
		log.Fatal().Err(err).Msg("Failed to load translations")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect Backends & Build Services ────────────────────────────
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize backends")
	}
	defer a.Close()

	// ─── Rebuild Deadline Index ───────────────────────────────────────
	// Redis may have lost the index; the database is the source of truth.
	if n, err := a.Sessions.RebuildDeadlines(ctx); err != nil {
		log.Warn().Err(err).Msg("Deadline index rebuild failed")
	} else {
		log.Info().Int("sessions", n).Msg("Deadline index rebuilt")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": a.Pool.Ping,
			"redis":    func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		}),
		Exam:          handler.NewExamHandler(a.Exams, a.Results, log),
		StudentPortal: handler.NewStudentPortalHandler(a.Sessions, log),
		Monitor:       handler.NewMonitorHandler(a.Results, a.Events, log),
		WS:            handler.NewWSHandler(a.Sessions, log, cfg.AllowedOrigins),
	}

	answerLimiter := middleware.NewRateLimiter(cfg.AnswerRateLimit, time.Minute)
	defer answerLimiter.Stop()

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	timeoutWorker := worker.NewTimeoutWorker(a.Deadlines, a.Sessions, cfg.SweepInterval, cfg.SweepBatchSize, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		timeoutWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(a.Auth, handlers, &router.Limiters{Answers: answerLimiter}, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the current tick to finish.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
