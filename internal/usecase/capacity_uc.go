package usecase

import "son1k-dispatch/internal/domain/model"

// CapacityUseCase aggregates fleet availability for external callers.
// Side-effect-free; every call recomputes from the account store.
type CapacityUseCase struct {
	store *AccountStore
}

func NewCapacityUseCase(store *AccountStore) *CapacityUseCase {
	return &CapacityUseCase{store: store}
}

// Snapshot returns eligible vs. configured accounts. An empty fleet yields
// zero capacity, not an error.
func (uc *CapacityUseCase) Snapshot() model.CapacitySnapshot {
	available, total := uc.store.Totals()
	return model.CapacitySnapshot{
		AvailableWorkers: available,
		TotalCapacity:    total,
	}
}
