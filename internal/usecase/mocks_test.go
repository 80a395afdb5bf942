package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"
	"son1k-dispatch/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// newTestAccount builds an active account whose credential ref equals its ID
// so the fake worker can script outcomes per account.
func newTestAccount(id string, priority, maxDaily int) *model.Account {
	acc, err := model.NewAccount(id, id, priority, maxDaily)
	if err != nil {
		panic(err)
	}
	return acc
}

// memJobRepo is a small in-memory implementation used by unit tests.
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
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*model.GenerationJob
	for _, j := range m.store {
		if j.Status == model.JobStatusPending {
			pending = append(pending, j)
		}
	}
	if len(pending) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].PriorityScore != pending[j].PriorityScore {
			return pending[i].PriorityScore > pending[j].PriorityScore
		}
		return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
	})
	pending[0].Status = model.JobStatusProcessing
	cp := *pending[0]
	return &cp, nil
}

// memAccountRepo records write-throughs for assertions. The journal keeps
// every saved snapshot in arrival order.
type memAccountRepo struct {
	mu      sync.Mutex
	store   map[string]*model.Account
	journal []model.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{store: make(map[string]*model.Account)}
}

func (m *memAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	m.journal = append(m.journal, cp)
	return nil
}

func (m *memAccountRepo) journalFor(id string) []model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Account
	for _, a := range m.journal {
		if a.ID == id {
			out = append(out, a)
		}
	}
	return out
}

func (m *memAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) ListAll(ctx context.Context) ([]*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Account, 0, len(m.store))
	for _, a := range m.store {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// fakeWorker scripts outcomes per credential ref (== account ID in tests).
// When block is non-nil, Execute stalls until the channel closes or the
// context expires; started receives the credential ref as each call begins.
type fakeWorker struct {
	mu       sync.Mutex
	outcomes map[string]model.Outcome
	block    chan struct{}
	started  chan string
	calls    []string
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{outcomes: make(map[string]model.Outcome)}
}

func (w *fakeWorker) set(credRef string, outcome model.Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes[credRef] = outcome
}

func (w *fakeWorker) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func (w *fakeWorker) Execute(ctx context.Context, req adapter.GenerationRequest, credRef string) (adapter.GenerationResult, error) {
	w.mu.Lock()
	w.calls = append(w.calls, credRef)
	outcome, ok := w.outcomes[credRef]
	block := w.block
	started := w.started
	w.mu.Unlock()

	if started != nil {
		started <- credRef
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return adapter.GenerationResult{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return adapter.GenerationResult{}, err
	}
	if !ok {
		outcome = model.OutcomeSuccess
	}
	res := adapter.GenerationResult{Outcome: outcome, WorkerID: "worker-test"}
	if outcome == model.OutcomeSuccess {
		res.TrackURL = "https://cdn.example.com/" + req.JobID + ".mp3"
	} else {
		res.Detail = "scripted " + string(outcome)
	}
	return res, nil
}

// frozenClock pins a store's clock for cooldown tests.
type frozenClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFrozenClock(t time.Time) *frozenClock { return &frozenClock{t: t} }

func (c *frozenClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *frozenClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
