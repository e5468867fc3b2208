// Package app wires the stores, caches and services shared by the server
// and the operator CLI.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcinucieklak/examhub/internal/cache"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/database"
	"github.com/marcinucieklak/examhub/internal/repository"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the connected backends and the services built on them.
type App struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client

	Users     *repository.UserRepository
	Deadlines *cache.DeadlineIndex
	Events    *cache.EventBus

	Auth     *service.AuthService
	Exams    *service.ExamService
	Sessions *service.ExamSessionService
	Results  *service.ResultService
}

// New connects to PostgreSQL and Redis and builds every service.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	answerRepo := repository.NewExamAnswerRepository(pool)

	// ─── Initialize Redis Channels ─────────────────────────────────────
	papers := cache.NewPaperCache(rdb, cfg.PaperCacheTTL)
	deadlines := cache.NewDeadlineIndex(rdb, log)
	events := cache.NewEventBus(rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	a := &App{
		Pool:      pool,
		Redis:     rdb,
		Users:     userRepo,
		Deadlines: deadlines,
		Events:    events,
		Auth:      service.NewAuthService(cfg),
		Exams:     service.NewExamService(examRepo, questionRepo, groupRepo, sessionRepo, papers, log),
		Sessions: service.NewExamSessionService(service.SessionDeps{
			Exams:     examRepo,
			Questions: questionRepo,
			Sessions:  sessionRepo,
			Answers:   answerRepo,
			Papers:    papers,
			Deadlines: deadlines,
			Events:    events,
		}, log),
		Results: service.NewResultService(examRepo, questionRepo, sessionRepo, answerRepo, userRepo, log),
	}
	return a, nil
}

// Close releases the Redis client and the database pool.
func (a *App) Close() {
	_ = a.Redis.Close()
	a.Pool.Close()
}
