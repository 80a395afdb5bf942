package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"son1k-dispatch/internal/domain"
	"son1k-dispatch/internal/domain/model"
	"son1k-dispatch/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.AccountRepository = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

const accountColumns = `id, credential_ref, priority, max_daily_usage, usage_today,
	last_used_at, success_count, failure_count, status, cooldown_until,
	created_at, updated_at`

func (r *PostgresAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	a.UpdatedAt = time.Now()

	const q = `
INSERT INTO accounts (id, credential_ref, priority, max_daily_usage, usage_today,
	last_used_at, success_count, failure_count, status, cooldown_until,
	created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
  credential_ref  = EXCLUDED.credential_ref,
  priority        = EXCLUDED.priority,
  max_daily_usage = EXCLUDED.max_daily_usage,
  usage_today     = EXCLUDED.usage_today,
  last_used_at    = EXCLUDED.last_used_at,
  success_count   = EXCLUDED.success_count,
  failure_count   = EXCLUDED.failure_count,
  status          = EXCLUDED.status,
  cooldown_until  = EXCLUDED.cooldown_until,
  updated_at      = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.CredentialRef, a.Priority, a.MaxDailyUsage, a.UsageToday,
		nullTime(a.LastUsedAt), a.SuccessCount, a.FailureCount, string(a.Status),
		nullTime(a.CooldownUntil), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		// credential_ref carries a unique constraint; two accounts must not
		// share a browser session
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1;`
	row := r.pool.QueryRow(ctx, q, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (r *PostgresAccountRepo) ListAll(ctx context.Context) ([]*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts ORDER BY priority DESC, id;`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var statusStr string
	var lastUsed, cooldown *time.Time
	err := row.Scan(
		&a.ID, &a.CredentialRef, &a.Priority, &a.MaxDailyUsage, &a.UsageToday,
		&lastUsed, &a.SuccessCount, &a.FailureCount, &statusStr, &cooldown,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = model.AccountStatus(statusStr)
	if lastUsed != nil {
		a.LastUsedAt = *lastUsed
	}
	if cooldown != nil {
		a.CooldownUntil = *cooldown
	}
	return &a, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
