package usecase

import (
	"time"

	"son1k-dispatch/internal/domain/model"
)

// CooldownPolicy decides an account's next health state after an attempt.
// It is pure state-transition logic: counters are incremented by the store
// before NextState is consulted.
type CooldownPolicy struct {
	// FailureThreshold is the number of failures within FailureWindow that
	// sends an account into cooldown.
	FailureThreshold int
	FailureWindow    time.Duration
	FailureCooldown  time.Duration
	// RateLimitCooldown must be >= FailureCooldown: a rate-limit signal is
	// a stronger detection hint than a generic error.
	RateLimitCooldown time.Duration
}

func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{
		FailureThreshold:  3,
		FailureWindow:     10 * time.Minute,
		FailureCooldown:   5 * time.Minute,
		RateLimitCooldown: 15 * time.Minute,
	}
}

// NextState maps (post-increment windowed failure count, outcome, now) to the
// account's next status and cooldown expiry. The zero time means no cooldown.
//
// Valid transitions: Active <-> CoolingDown, Active|CoolingDown -> Disabled.
// Leaving Disabled is an explicit operator action, never a NextState result;
// the store guards against upgrading a disabled account.
func (p CooldownPolicy) NextState(failureCount int, outcome model.Outcome, now time.Time) (model.AccountStatus, time.Time) {
	switch outcome {
	case model.OutcomeSuccess:
		return model.AccountStatusActive, time.Time{}
	case model.OutcomeRateLimited:
		return model.AccountStatusCoolingDown, now.Add(p.RateLimitCooldown)
	case model.OutcomeAuthFailure:
		return model.AccountStatusDisabled, time.Time{}
	default: // plain failure
		if failureCount >= p.FailureThreshold {
			return model.AccountStatusCoolingDown, now.Add(p.FailureCooldown)
		}
		return model.AccountStatusActive, time.Time{}
	}
}
