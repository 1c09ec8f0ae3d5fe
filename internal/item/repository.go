package item

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const itemColumns = `id, owner_id, parent_id, name, kind, size_bytes, mime_type, storage_key, is_deleted, deleted_at, created_at, updated_at`

// Repository provides access to item rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new item repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.OwnerID, &it.ParentID, &it.Name, &it.Kind, &it.SizeBytes,
		&it.MIMEType, &it.StorageKey, &it.IsDeleted, &it.DeletedAt, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Insert stores a new item. A sibling-name collision surfaces as ErrNameTaken
// via the partial unique index on (owner_id, parent_id, name).
func (r *Repository) Insert(ctx context.Context, it Item) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO items (id, owner_id, parent_id, name, kind, size_bytes, mime_type, storage_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + itemColumns + `;`

	stored, err := scanItem(r.pool.QueryRow(ctx, query,
		it.ID, it.OwnerID, it.ParentID, it.Name, it.Kind, it.SizeBytes, it.MIMEType, it.StorageKey))
	if err != nil {
		if isUniqueViolation(err) {
			return Item{}, ErrNameTaken
		}
		return Item{}, fmt.Errorf("insert item: %w", err)
	}
	return stored, nil
}

// Get fetches an item by id scoped to the owner, regardless of deletion state.
func (r *Repository) Get(ctx context.Context, ownerID, itemID uuid.UUID) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND owner_id = $2;`

	it, err := scanItem(r.pool.QueryRow(ctx, query, itemID, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// FindFolder looks up a live folder by name under the given parent. A nil
// parent means the owner's root level.
func (r *Repository) FindFolder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, name string) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + itemColumns + `
FROM items
WHERE owner_id = $1
  AND parent_id IS NOT DISTINCT FROM $2
  AND name = $3
  AND kind = 'folder'
  AND NOT is_deleted;`

	it, err := scanItem(r.pool.QueryRow(ctx, query, ownerID, parentID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("find folder: %w", err)
	}
	return it, nil
}

// List returns the items directly under a parent.
func (r *Repository) List(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, includeDeleted bool) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + itemColumns + `
FROM items
WHERE owner_id = $1
  AND parent_id IS NOT DISTINCT FROM $2
  AND ($3 OR NOT is_deleted)
ORDER BY kind DESC, name;`

	rows, err := r.pool.Query(ctx, query, ownerID, parentID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return collectItems(rows)
}

// Children returns the direct children of a folder, for subtree walks.
func (r *Repository) Children(ctx context.Context, ownerID, parentID uuid.UUID, includeDeleted bool) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT ` + itemColumns + `
FROM items
WHERE owner_id = $1
  AND parent_id = $2
  AND ($3 OR NOT is_deleted);`

	rows, err := r.pool.Query(ctx, query, ownerID, parentID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return collectItems(rows)
}

// UpdateName renames an item in place.
func (r *Repository) UpdateName(ctx context.Context, ownerID, itemID uuid.UUID, name string) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE items
SET name = $3, updated_at = NOW()
WHERE id = $1 AND owner_id = $2 AND NOT is_deleted
RETURNING ` + itemColumns + `;`

	it, err := scanItem(r.pool.QueryRow(ctx, query, itemID, ownerID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Item{}, ErrNameTaken
		}
		return Item{}, fmt.Errorf("rename item: %w", err)
	}
	return it, nil
}

// UpdateParent reparents an item. Cycle prevention happens in the service
// before this runs.
func (r *Repository) UpdateParent(ctx context.Context, ownerID, itemID uuid.UUID, parentID *uuid.UUID) (Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE items
SET parent_id = $3, updated_at = NOW()
WHERE id = $1 AND owner_id = $2 AND NOT is_deleted
RETURNING ` + itemColumns + `;`

	it, err := scanItem(r.pool.QueryRow(ctx, query, itemID, ownerID, parentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Item{}, ErrNameTaken
		}
		return Item{}, fmt.Errorf("move item: %w", err)
	}
	return it, nil
}

// MarkDeleted flips the soft-delete flag for a batch of items.
func (r *Repository) MarkDeleted(ctx context.Context, ownerID uuid.UUID, itemIDs []uuid.UUID, deleted bool) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE items
SET is_deleted = $3,
    deleted_at = CASE WHEN $3 THEN NOW() ELSE NULL END,
    updated_at = NOW()
WHERE owner_id = $1 AND id = ANY($2);`

	if _, err := r.pool.Exec(ctx, query, ownerID, itemIDs, deleted); err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("mark items deleted: %w", err)
	}
	return nil
}

// DeleteRows removes item rows permanently.
func (r *Repository) DeleteRows(ctx context.Context, ownerID uuid.UUID, itemIDs []uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx,
		`DELETE FROM items WHERE owner_id = $1 AND id = ANY($2);`,
		ownerID, itemIDs); err != nil {
		return fmt.Errorf("delete item rows: %w", err)
	}
	return nil
}

// Search finds live items whose name contains the query, case-insensitively.
func (r *Repository) Search(ctx context.Context, ownerID uuid.UUID, query string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	sql := `
SELECT ` + itemColumns + `
FROM items
WHERE owner_id = $1
  AND NOT is_deleted
  AND lower(name) LIKE '%' || lower($2) || '%'
ORDER BY name
LIMIT 200;`

	rows, err := r.pool.Query(ctx, sql, ownerID, query)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return collectItems(rows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
