package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/repository"
	"son1k-dispatch/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// accountEntry wraps an account with dispatch-local state that is not part
// of the persisted record.
type accountEntry struct {
	acc *model.Account
	// reserved marks an in-flight attempt; a browser session drives one
	// generation at a time, so a reserved account takes no other work.
	reserved bool
	// rolling failure window for the cooldown threshold
	windowStart    time.Time
	windowFailures int
}

// AccountStore is the single source of truth for account state. It is
// authoritative in memory (one mutex serializes all mutations, so selection
// and the usage increment are linearizable) and writes through to the
// repository so counters survive a restart.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]*accountEntry
	repo     repository.AccountRepository // nil in tests
	policy   CooldownPolicy
	log      *zerolog.Logger
	now      func() time.Time
	// writes feeds the single write-through goroutine so snapshots land in
	// mutation order. Nil when no repository is attached.
	writes chan *model.Account
}

func NewAccountStore(accounts []*model.Account, repo repository.AccountRepository, policy CooldownPolicy, logger *zerolog.Logger) *AccountStore {
	storeLog := logger.With().Str("component", "AccountStore").Logger()
	s := &AccountStore{
		accounts: make(map[string]*accountEntry, len(accounts)),
		repo:     repo,
		policy:   policy,
		log:      &storeLog,
		now:      time.Now,
	}
	for _, a := range accounts {
		cp := *a
		s.accounts[a.ID] = &accountEntry{acc: &cp}
	}
	if repo != nil {
		s.writes = make(chan *model.Account, 256)
		go s.writeLoop()
	}
	s.publishGauges()
	return s
}

// LoadAccountStore boots the store from the persisted fleet configuration.
func LoadAccountStore(ctx context.Context, repo repository.AccountRepository, policy CooldownPolicy, logger *zerolog.Logger) (*AccountStore, error) {
	accounts, err := repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	s := NewAccountStore(accounts, repo, policy, logger)
	logger.Info().Int("accounts", len(accounts)).Msg("account store loaded")
	return s, nil
}

// ListEligible returns copies of all accounts that may take work right now,
// ordered by priority descending then least-recently-used. In-flight
// reservations are excluded.
func (s *AccountStore) ListEligible(minPriority int) []*model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.eligibleLocked(minPriority, nil)
	out := make([]*model.Account, 0, len(entries))
	for _, e := range entries {
		cp := *e.acc
		out = append(out, &cp)
	}
	return out
}

// Reserve picks the best eligible account (priority desc, then LRU),
// increments its daily usage and stamps last_used_at, and marks it in-flight
// until the outcome is recorded. The increment happens here, under the same
// lock as selection, so two dispatches can never both take the last quota
// slot. Returns a copy.
func (s *AccountStore) Reserve(minPriority int, exclude map[string]bool) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.eligibleLocked(minPriority, exclude)
	if len(entries) == 0 {
		return nil, domain.ErrNoCapacity
	}
	e := entries[0]
	e.reserved = true
	e.acc.UsageToday++
	e.acc.LastUsedAt = s.now()
	e.acc.UpdatedAt = e.acc.LastUsedAt
	s.persistLocked(e.acc)

	cp := *e.acc
	return &cp, nil
}

// RecordOutcome feeds an attempt result back into account health: updates
// the success/failure counters, consults the cooldown policy, and releases
// the in-flight reservation. Fails with ErrNotFound when the account no
// longer exists.
func (s *AccountStore) RecordOutcome(ctx context.Context, id string, outcome model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := s.now()
	e.reserved = false
	acc := e.acc

	if outcome == model.OutcomeSuccess {
		acc.SuccessCount++
	} else {
		acc.FailureCount++
	}

	failures := 0
	if outcome == model.OutcomeFailure {
		// rolling window: restart the count when the window has elapsed
		if e.windowStart.IsZero() || now.Sub(e.windowStart) > s.policy.FailureWindow {
			e.windowStart = now
			e.windowFailures = 0
		}
		e.windowFailures++
		failures = e.windowFailures
	}

	status, until := s.policy.NextState(failures, outcome, now)

	// Disabled is terminal: only ResetHealth leaves it.
	if acc.Status != model.AccountStatusDisabled || status == model.AccountStatusDisabled {
		if status != acc.Status || !until.Equal(acc.CooldownUntil) {
			s.log.Info().
				Str("account_id", acc.ID).
				Str("outcome", string(outcome)).
				Str("status", string(status)).
				Time("cooldown_until", until).
				Msg("account state transition")
		}
		acc.Status = status
		acc.CooldownUntil = until
	}
	if status == model.AccountStatusCoolingDown || status == model.AccountStatusDisabled {
		metrics.IncAccountCooldown(string(outcome))
		// the window served its purpose; start fresh after the cooldown
		e.windowStart = time.Time{}
		e.windowFailures = 0
	}

	acc.UpdatedAt = now
	s.persistLocked(acc)
	s.publishGaugesLocked()
	return nil
}

// ResetDailyUsage zeroes usage_today for every account. Invoked by the
// rollover scheduler; the store does not own wall-clock triggering.
func (s *AccountStore) ResetDailyUsage(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	now := s.now()
	for _, e := range s.accounts {
		if e.acc.UsageToday != 0 {
			e.acc.UsageToday = 0
			e.acc.UpdatedAt = now
			s.persistLocked(e.acc)
			n++
		}
	}
	s.log.Info().Int("accounts", n).Msg("daily usage reset")
	return n
}

// ResetHealth is the explicit operator action that clears counters and
// cooldown state and returns the account to Active. Idempotent.
func (s *AccountStore) ResetHealth(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.reserved = false
	e.windowStart = time.Time{}
	e.windowFailures = 0
	e.acc.SuccessCount = 0
	e.acc.FailureCount = 0
	e.acc.CooldownUntil = time.Time{}
	e.acc.Status = model.AccountStatusActive
	e.acc.UpdatedAt = s.now()
	s.persistLocked(e.acc)
	s.publishGaugesLocked()
	s.log.Info().Str("account_id", id).Msg("account health reset")
	return nil
}

// Totals returns (eligible, total) for capacity snapshots.
func (s *AccountStore) Totals() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.eligibleLocked(0, nil)), len(s.accounts)
}

// All returns copies of every account for operator reporting.
func (s *AccountStore) All() []*model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Account, 0, len(s.accounts))
	for _, e := range s.accounts {
		cp := *e.acc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// eligibleLocked expires cooldowns lazily, filters, and sorts by priority
// descending then last_used_at ascending. Caller holds s.mu.
func (s *AccountStore) eligibleLocked(minPriority int, exclude map[string]bool) []*accountEntry {
	now := s.now()
	var out []*accountEntry
	for _, e := range s.accounts {
		acc := e.acc
		// lazy cooldown expiry, checked at eligibility time rather than by
		// a background timer
		if acc.Status == model.AccountStatusCoolingDown && !now.Before(acc.CooldownUntil) {
			acc.Status = model.AccountStatusActive
			acc.CooldownUntil = time.Time{}
		}
		if e.reserved || exclude[acc.ID] {
			continue
		}
		if acc.Priority < minPriority {
			continue
		}
		if acc.Status != model.AccountStatusActive || acc.UsageToday >= acc.MaxDailyUsage {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].acc, out[j].acc
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.LastUsedAt.Before(b.LastUsedAt)
	})
	return out
}

// persistLocked enqueues a snapshot for the write-through goroutine.
// Persistence is best-effort: the in-memory state stays authoritative, a
// failed write only logs, and a full queue drops the snapshot (a later
// mutation re-enqueues the account anyway).
func (s *AccountStore) persistLocked(acc *model.Account) {
	if s.writes == nil {
		return
	}
	cp := *acc
	select {
	case s.writes <- &cp:
	default:
		s.log.Warn().Str("account_id", cp.ID).Msg("write-through queue full, snapshot dropped")
	}
}

// writeLoop is the single write-through worker. Enqueueing happens under the
// store mutex, so snapshots of the same account arrive and persist in
// mutation order and the stored row never goes backwards.
func (s *AccountStore) writeLoop() {
	for acc := range s.writes {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.repo.Save(ctx, nil, acc)
		cancel()
		if err != nil {
			s.log.Error().Err(err).Str("account_id", acc.ID).Msg("account write-through failed")
		}
	}
}

func (s *AccountStore) publishGauges() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishGaugesLocked()
}

func (s *AccountStore) publishGaugesLocked() {
	var active, cooling, disabled int
	for _, e := range s.accounts {
		switch e.acc.Status {
		case model.AccountStatusCoolingDown:
			cooling++
		case model.AccountStatusDisabled:
			disabled++
		default:
			active++
		}
	}
	metrics.SetAccountsByStatus(active, cooling, disabled)
}
