// Package identity validates tokens issued by the external identity provider
// and maps their subjects to internal owner ids. No credentials live here.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resolveTimeout = 5 * time.Second

// Resolver maps external subjects to internal owners, creating the owner row
// with the default storage limit the first time a subject is seen.
type Resolver struct {
	pool              *pgxpool.Pool
	defaultLimitBytes int64
}

// NewResolver constructs an identity resolver.
func NewResolver(pool *pgxpool.Pool, defaultLimitBytes int64) *Resolver {
	return &Resolver{pool: pool, defaultLimitBytes: defaultLimitBytes}
}

// Resolve returns the internal owner id for an external subject. The upsert
// makes first-sight creation safe under concurrent requests for the same
// subject.
func (r *Resolver) Resolve(ctx context.Context, subject string) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	query := `
INSERT INTO owners (id, external_subject, storage_used, storage_limit)
VALUES ($1, $2, 0, $3)
ON CONFLICT (external_subject) DO UPDATE SET updated_at = NOW()
RETURNING id;`

	var ownerID uuid.UUID
	if err := r.pool.QueryRow(ctx, query, uuid.New(), subject, r.defaultLimitBytes).Scan(&ownerID); err != nil {
		return uuid.Nil, fmt.Errorf("resolve owner: %w", err)
	}
	return ownerID, nil
}
