package model

import (
	"time"

	"son1k-dispatch/internal/domain"
)

type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusCoolingDown AccountStatus = "cooling_down"
	AccountStatusDisabled    AccountStatus = "disabled"
)

// Outcome is the typed result of a worker attempt. Callers branch on the
// kind instead of string-matching error text.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeRateLimited Outcome = "rate_limited"
	// OutcomeAuthFailure signals revoked or rejected session material.
	// It is permanent: the account is disabled until an operator resets it.
	OutcomeAuthFailure Outcome = "auth_failure"
)

// Account is one automation identity against the target site. Priority and
// the daily cap come from operator configuration; the rest is health state
// mutated only through the account store.
type Account struct {
	ID            string
	CredentialRef string // opaque pointer into the secret store, never the material itself
	Priority      int
	MaxDailyUsage int
	UsageToday    int
	LastUsedAt    time.Time
	SuccessCount  int
	FailureCount  int
	Status        AccountStatus
	CooldownUntil time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount validates and constructs an active account.
func NewAccount(id, credentialRef string, priority, maxDailyUsage int) (*Account, error) {
	if id == "" || credentialRef == "" || maxDailyUsage <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Account{
		ID:            id,
		CredentialRef: credentialRef,
		Priority:      priority,
		MaxDailyUsage: maxDailyUsage,
		Status:        AccountStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// EligibleAt reports whether the account may take work at `now`:
// active, under its daily cap, and past any cooldown.
func (a *Account) EligibleAt(now time.Time) bool {
	if a.Status == AccountStatusDisabled {
		return false
	}
	if a.Status == AccountStatusCoolingDown && now.Before(a.CooldownUntil) {
		return false
	}
	return a.UsageToday < a.MaxDailyUsage
}

func (a *Account) SuccessRate() float64 {
	total := a.SuccessCount + a.FailureCount
	if total == 0 {
		return 0
	}
	return float64(a.SuccessCount) / float64(total)
}

// CapacitySnapshot is derived on demand from the fleet, never cached.
type CapacitySnapshot struct {
	AvailableWorkers int `json:"available_workers"`
	TotalCapacity    int `json:"total_capacity"`
}

// DispatchResult is returned to the caller on a successful submission.
type DispatchResult struct {
	JobID     string
	AccountID string
	WorkerID  string
	TrackURL  string
	Attempts  []domain.Attempt
}
