package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the transaction handle via `tx`. Repositories accept a nil tx for
// the non-transactional path; the concrete type is infra-defined (pgx.Tx).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
