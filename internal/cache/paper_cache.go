// Package cache holds the Redis-backed side channels of the exam service:
// the student paper cache, the session deadline index and live events.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/model"
	"github.com/redis/go-redis/v9"
)

// PaperCache stores the student-facing question set of each exam as JSON.
type PaperCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPaperCache creates a PaperCache whose entries live for ttl.
func NewPaperCache(rdb *redis.Client, ttl time.Duration) *PaperCache {
	return &PaperCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached paper, or nil on a miss.
func (c *PaperCache) Get(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ExamPaperKey(examID.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var paper model.ExamPaper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return nil, fmt.Errorf("decode cached paper: %w", err)
	}
	return &paper, nil
}

// Set caches paper under its exam ID.
func (c *PaperCache) Set(ctx context.Context, paper *model.ExamPaper) error {
	raw, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("encode paper: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.ExamPaperKey(paper.ExamID.String()), raw, c.ttl).Err()
}

// Invalidate drops the cached paper of an exam.
func (c *PaperCache) Invalidate(ctx context.Context, examID uuid.UUID) error {
	return c.rdb.Del(ctx, config.CacheKey.ExamPaperKey(examID.String())).Err()
}
