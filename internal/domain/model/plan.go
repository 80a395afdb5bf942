package model

import "son1k-dispatch/internal/domain"

// Plan is the closed set of subscriber tiers. Adding a tier means touching
// this file and the priority mapping below, nothing else.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanVIP        Plan = "vip"
	PlanEnterprise Plan = "enterprise"
)

// ParsePlan maps a wire-level tier name to a Plan.
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanFree, PlanPro, PlanVIP, PlanEnterprise:
		return Plan(s), nil
	case "":
		return PlanFree, nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

// PriorityScore is a pure total order over plans: higher tier, higher score.
// The score orders the job queue and feeds account preference.
func (p Plan) PriorityScore() int {
	switch p {
	case PlanEnterprise:
		return 40
	case PlanVIP:
		return 30
	case PlanPro:
		return 20
	default:
		return 10
	}
}

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanVIP, PlanEnterprise:
		return true
	}
	return false
}
