package web

import (
	"context"
	"sync"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type memJobRepo struct {
	mu    sync.Mutex
	store map[string]*model.GenerationJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.GenerationJob)}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, id string) (*model.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) FetchAndMarkProcessing(ctx context.Context) (*model.GenerationJob, error) {
	return nil, domain.ErrNotFound
}

// fakeLimiter admits the first `limit` calls per key, ignoring the window.
type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: make(map[string]int)}
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key] <= limit, nil
}
