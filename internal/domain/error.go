package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoCapacity means no account was eligible at dispatch time.
	// The caller may retry later once cooldowns expire or usage resets.
	ErrNoCapacity = errors.New("no eligible account available")

	// ErrRateLimited is returned by the submission surface when a caller
	// exceeds its pacing window.
	ErrRateLimited = errors.New("rate limited")

	// ErrLockNotAcquired means a distributed lock is held by another process.
	ErrLockNotAcquired = errors.New("lock not acquired")

	ErrInvalidExecContext = errors.New("invalid query execution context")
)

// Attempt records one dispatch attempt against a single account.
type Attempt struct {
	AccountID string `json:"account_id"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
}

// ExhaustedError is the terminal dispatch failure: the retry budget was
// consumed without a successful submission. It carries every account tried
// and its outcome so operators can tell a sick fleet from a sick job.
type ExhaustedError struct {
	JobID    string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.AccountID+"="+a.Outcome)
	}
	return fmt.Sprintf("job %s exhausted after %d attempts (%s)", e.JobID, len(e.Attempts), strings.Join(parts, ", "))
}
