package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// Repository persists quota counters on the owners table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a quota repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Usage reads the owner's current counters.
func (r *Repository) Usage(ctx context.Context, ownerID uuid.UUID) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var usage Usage
	err := r.pool.QueryRow(ctx,
		`SELECT storage_used, storage_limit FROM owners WHERE id = $1;`,
		ownerID,
	).Scan(&usage.UsedBytes, &usage.LimitBytes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usage{}, ErrOwnerNotFound
		}
		return Usage{}, fmt.Errorf("read quota usage: %w", err)
	}
	return usage, nil
}

// Commit applies a usage delta as a single atomic update. The counter is
// floored at zero at the storage layer so concurrent decrements cannot drive
// it negative.
func (r *Repository) Commit(ctx context.Context, ownerID uuid.UUID, deltaBytes int64) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
UPDATE owners
SET storage_used = GREATEST(storage_used + $2, 0),
    updated_at   = NOW()
WHERE id = $1;`,
		ownerID, deltaBytes)
	if err != nil {
		return fmt.Errorf("commit quota delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOwnerNotFound
	}
	return nil
}
