package repository

import (
	"context"

	"son1k-dispatch/internal/domain/model"
)

// AccountRepository persists account configuration and health counters.
// The in-memory account store is authoritative at runtime; this repository
// supplies the injected initial state at boot and absorbs write-throughs.
type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, id string) (*model.Account, error)
	ListAll(ctx context.Context) ([]*model.Account, error)
}
