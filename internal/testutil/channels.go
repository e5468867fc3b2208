package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcinucieklak/examhub/internal/model"
)

// Papers implements service.PaperCache. Err, when set, fails every call.
type Papers struct {
	mu     sync.Mutex
	papers map[uuid.UUID]model.ExamPaper
	Err    error
	Hits   int
	Misses int
}

// NewPapers returns an empty paper cache.
func NewPapers() *Papers { return &Papers{papers: map[uuid.UUID]model.ExamPaper{}} }

func (c *Papers) Get(_ context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	p, ok := c.papers[examID]
	if !ok {
		c.Misses++
		return nil, nil
	}
	c.Hits++
	return &p, nil
}

func (c *Papers) Set(_ context.Context, paper *model.ExamPaper) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.papers[paper.ExamID] = *paper
	return nil
}

func (c *Papers) Invalidate(_ context.Context, examID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	delete(c.papers, examID)
	return nil
}

// Cached reports whether a paper is cached for examID.
func (c *Papers) Cached(examID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.papers[examID]
	return ok
}

// Deadlines is an in-memory deadline index.
type Deadlines struct {
	mu  sync.Mutex
	at  map[uuid.UUID]time.Time
	Err error
}

// NewDeadlines returns an empty index.
func NewDeadlines() *Deadlines { return &Deadlines{at: map[uuid.UUID]time.Time{}} }

func (d *Deadlines) Schedule(_ context.Context, id uuid.UUID, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.at[id] = at
	return nil
}

func (d *Deadlines) Cancel(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	delete(d.at, id)
	return nil
}

// Due returns up to limit sessions whose deadline is at or before now,
// earliest first.
func (d *Deadlines) Due(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var due []uuid.UUID
	for id, at := range d.at {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return d.at[due[i]].Before(d.at[due[j]]) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// At returns the scheduled deadline of a session.
func (d *Deadlines) At(id uuid.UUID) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.at[id]
	return at, ok
}

// Len returns the number of scheduled deadlines.
func (d *Deadlines) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.at)
}

// Events records published session events.
type Events struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (e *Events) Publish(_ context.Context, ev model.SessionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

// Types returns the published event types in order.
func (e *Events) Types() []model.SessionEventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.SessionEventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

// All returns a copy of the published events.
func (e *Events) All() []model.SessionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.SessionEvent(nil), e.events...)
}
