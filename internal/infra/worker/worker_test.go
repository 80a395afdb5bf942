package worker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/adapter"
	"son1k-dispatch/internal/domain/ports/repository"
	"son1k-dispatch/internal/usecase"

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

type okWorker struct{}

func (okWorker) Execute(ctx context.Context, req adapter.GenerationRequest, credentialRef string) (adapter.GenerationResult, error) {
	return adapter.GenerationResult{Outcome: model.OutcomeSuccess, WorkerID: "w", TrackURL: "noop://" + req.JobID}, nil
}

type fakeEnhancer struct{ lyrics string }

func (f fakeEnhancer) EnhanceLyrics(ctx context.Context, stylePrompt, title string) (string, error) {
	return f.lyrics, nil
}

func newTestDispatcher(accounts ...*model.Account) *usecase.DispatchUseCase {
	store := usecase.NewAccountStore(accounts, nil, usecase.DefaultCooldownPolicy(), nopLogger())
	return usecase.NewDispatchUseCase(store, okWorker{}, 3, time.Second, nil, nopLogger())
}

func mustAccount(id string) *model.Account {
	acc, err := model.NewAccount(id, id, 5, 50)
	if err != nil {
		panic(err)
	}
	return acc
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	t.Parallel()

	pool := NewPool(2, nopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	var ran int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		err := pool.Submit(func(ctx context.Context) error {
			if atomic.AddInt32(&ran, 1) == 5 {
				close(done)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("tasks did not run, got %d", atomic.LoadInt32(&ran))
	}
	pool.Stop()
}

func TestPool_RejectsNilTask(t *testing.T) {
	t.Parallel()

	pool := NewPool(1, nopLogger())
	if err := pool.Submit(nil); err == nil {
		t.Fatal("nil task must be rejected")
	}
}

func TestProcessOne_RunsJobToTerminalState(t *testing.T) {
	t.Parallel()

	repo := newMemJobRepo()
	job, err := model.NewGenerationJob("job-1", model.JobPayload{StylePrompt: "jazz", Instrumental: true}, model.PlanPro)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := repo.Save(context.Background(), nil, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	p := NewJobProcessor(repo, newTestDispatcher(mustAccount("a")), nil, 0, nopLogger())
	p.processOne(context.Background())

	got, err := repo.FindByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != model.JobStatusSubmitted {
		t.Fatalf("expected submitted, got %s", got.Status)
	}
	if got.TrackURL == "" || got.AssignedAccountID != "a" {
		t.Fatalf("terminal job missing result fields: %+v", got)
	}
}

func TestProcessOne_NoCapacityExhaustsJob(t *testing.T) {
	t.Parallel()

	repo := newMemJobRepo()
	job, _ := model.NewGenerationJob("job-2", model.JobPayload{StylePrompt: "jazz"}, model.PlanFree)
	_ = repo.Save(context.Background(), nil, job)

	p := NewJobProcessor(repo, newTestDispatcher(), nil, 0, nopLogger())
	p.processOne(context.Background())

	got, _ := repo.FindByID(context.Background(), "job-2")
	if got.Status != model.JobStatusExhausted {
		t.Fatalf("expected exhausted, got %s", got.Status)
	}
}

func TestProcessOne_RequeuesInterruptedClaim(t *testing.T) {
	t.Parallel()

	repo := newMemJobRepo()
	job, _ := model.NewGenerationJob("job-int", model.JobPayload{StylePrompt: "trance"}, model.PlanPro)
	_ = repo.Save(context.Background(), nil, job)

	store := usecase.NewAccountStore([]*model.Account{mustAccount("a")}, nil, usecase.DefaultCooldownPolicy(), nopLogger())
	dispatcher := usecase.NewDispatchUseCase(store, okWorker{}, 3, time.Second, nil, nopLogger())
	p := NewJobProcessor(repo, dispatcher, nil, 0, nopLogger())

	// cancellation lands between the claim and the first reservation
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.processOne(ctx)

	got, err := repo.FindByID(context.Background(), "job-int")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != model.JobStatusPending {
		t.Fatalf("interrupted job must return to pending, got %s", got.Status)
	}
	eligible := store.ListEligible(0)
	if len(eligible) != 1 || eligible[0].UsageToday != 0 {
		t.Fatalf("no quota may be spent on an interrupted claim: %+v", eligible)
	}

	// the next poll picks the job up again
	p.processOne(context.Background())
	got, _ = repo.FindByID(context.Background(), "job-int")
	if got.Status != model.JobStatusSubmitted {
		t.Fatalf("requeued job must be claimable, got %s", got.Status)
	}
}

func TestProcessOne_EnrichesMissingLyrics(t *testing.T) {
	t.Parallel()

	repo := newMemJobRepo()
	job, _ := model.NewGenerationJob("job-3", model.JobPayload{StylePrompt: "blues"}, model.PlanVIP)
	_ = repo.Save(context.Background(), nil, job)

	p := NewJobProcessor(repo, newTestDispatcher(mustAccount("a")), fakeEnhancer{lyrics: "verse one"}, 0, nopLogger())
	p.processOne(context.Background())

	got, _ := repo.FindByID(context.Background(), "job-3")
	if got.Payload.Lyrics != "verse one" {
		t.Fatalf("lyrics not enriched: %+v", got.Payload)
	}
}

func TestProcessOne_InstrumentalSkipsEnhancer(t *testing.T) {
	t.Parallel()

	repo := newMemJobRepo()
	job, _ := model.NewGenerationJob("job-4", model.JobPayload{StylePrompt: "ambient", Instrumental: true}, model.PlanFree)
	_ = repo.Save(context.Background(), nil, job)

	p := NewJobProcessor(repo, newTestDispatcher(mustAccount("a")), fakeEnhancer{lyrics: "should not appear"}, 0, nopLogger())
	p.processOne(context.Background())

	got, _ := repo.FindByID(context.Background(), "job-4")
	if got.Payload.Lyrics != "" {
		t.Fatalf("instrumental jobs must not get lyrics: %+v", got.Payload)
	}
}
