package model

import (
	"testing"
	"time"

	"son1k-dispatch/internal/domain"
)

func TestPlanPriorityScoreMonotonic(t *testing.T) {
	t.Parallel()

	order := []Plan{PlanFree, PlanPro, PlanVIP, PlanEnterprise}
	for i := 1; i < len(order); i++ {
		lo, hi := order[i-1], order[i]
		if hi.PriorityScore() < lo.PriorityScore() {
			t.Fatalf("expected score(%s) >= score(%s), got %d < %d", hi, lo, hi.PriorityScore(), lo.PriorityScore())
		}
	}
}

func TestParsePlan(t *testing.T) {
	t.Parallel()

	if p, err := ParsePlan("vip"); err != nil || p != PlanVIP {
		t.Fatalf("ParsePlan(vip) = %v, %v", p, err)
	}
	// empty defaults to free, matching the submission surface
	if p, err := ParsePlan(""); err != nil || p != PlanFree {
		t.Fatalf("ParsePlan(\"\") = %v, %v", p, err)
	}
	if _, err := ParsePlan("platinum"); err != domain.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAccountEligibleAt(t *testing.T) {
	t.Parallel()

	now := time.Now()
	acc, err := NewAccount("acc-1", "cred-1", 5, 2)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if !acc.EligibleAt(now) {
		t.Fatalf("fresh account should be eligible")
	}

	acc.UsageToday = 2
	if acc.EligibleAt(now) {
		t.Fatalf("account at daily cap must not be eligible")
	}

	acc.UsageToday = 0
	acc.Status = AccountStatusCoolingDown
	acc.CooldownUntil = now.Add(time.Minute)
	if acc.EligibleAt(now) {
		t.Fatalf("cooling account must not be eligible before cooldown_until")
	}
	if !acc.EligibleAt(now.Add(2 * time.Minute)) {
		t.Fatalf("cooling account becomes eligible once cooldown elapsed")
	}

	acc.Status = AccountStatusDisabled
	if acc.EligibleAt(now.Add(time.Hour)) {
		t.Fatalf("disabled account is never eligible")
	}
}

func TestNewAccountValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewAccount("", "cred", 1, 10); err != domain.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for empty id, got %v", err)
	}
	if _, err := NewAccount("a", "cred", 1, 0); err != domain.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for zero cap, got %v", err)
	}
}

func TestNewGenerationJob(t *testing.T) {
	t.Parallel()

	job, err := NewGenerationJob("job-1", JobPayload{StylePrompt: "synthwave ballad"}, PlanPro)
	if err != nil {
		t.Fatalf("NewGenerationJob: %v", err)
	}
	if job.Status != JobStatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}
	if job.PriorityScore != PlanPro.PriorityScore() {
		t.Fatalf("priority score not derived from plan")
	}

	if _, err := NewGenerationJob("job-2", JobPayload{}, PlanPro); err != domain.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for empty payload, got %v", err)
	}
	if _, err := NewGenerationJob("job-3", JobPayload{Lyrics: "la la"}, "platinum"); err != domain.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for unknown plan, got %v", err)
	}
}
