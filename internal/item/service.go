package item

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type repository interface {
	Insert(ctx context.Context, it Item) (Item, error)
	Get(ctx context.Context, ownerID, itemID uuid.UUID) (Item, error)
	FindFolder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, name string) (Item, error)
	List(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, includeDeleted bool) ([]Item, error)
	Children(ctx context.Context, ownerID, parentID uuid.UUID, includeDeleted bool) ([]Item, error)
	UpdateName(ctx context.Context, ownerID, itemID uuid.UUID, name string) (Item, error)
	UpdateParent(ctx context.Context, ownerID, itemID uuid.UUID, parentID *uuid.UUID) (Item, error)
	MarkDeleted(ctx context.Context, ownerID uuid.UUID, itemIDs []uuid.UUID, deleted bool) error
	DeleteRows(ctx context.Context, ownerID uuid.UUID, itemIDs []uuid.UUID) error
	Search(ctx context.Context, ownerID uuid.UUID, query string) ([]Item, error)
}

type objectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ledger interface {
	Commit(ctx context.Context, ownerID uuid.UUID, deltaBytes int64) error
}

// maxTreeDepth bounds ancestor walks; a deeper chain means corrupted data.
const maxTreeDepth = 128

const defaultPresignTTL = 15 * time.Minute

// Service manages the per-user item tree.
type Service struct {
	repo       repository
	objects    objectStore
	ledger     ledger
	presignTTL time.Duration
	logg       *zap.Logger
}

// NewService constructs an item service. A non-positive presignTTL falls back
// to the default.
func NewService(repo repository, objects objectStore, ledger ledger, presignTTL time.Duration, logg *zap.Logger) *Service {
	if presignTTL <= 0 {
		presignTTL = defaultPresignTTL
	}
	if logg == nil {
		logg = zap.NewNop()
	}
	return &Service{repo: repo, objects: objects, ledger: ledger, presignTTL: presignTTL, logg: logg}
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") || name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}

// requireFolder verifies parentID references a live folder of the owner.
func (s *Service) requireFolder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID) error {
	if parentID == nil {
		return nil
	}
	parent, err := s.repo.Get(ctx, ownerID, *parentID)
	if err != nil {
		return err
	}
	if parent.IsDeleted {
		return ErrNotFound
	}
	if parent.Kind != KindFolder {
		return ErrNotAFolder
	}
	return nil
}

// ResolveHierarchy walks an ordered list of folder names below rootParentID,
// creating any missing segment, and returns the id of the deepest folder
// (nil when segments is empty and rootParentID is nil). Concurrent calls for
// the same or overlapping paths converge on one row per segment: creation is
// insert-then-reread on the sibling-name uniqueness constraint, never an
// application-level lock.
func (s *Service) ResolveHierarchy(ctx context.Context, ownerID uuid.UUID, rootParentID *uuid.UUID, segments []string) (*uuid.UUID, error) {
	if err := s.requireFolder(ctx, ownerID, rootParentID); err != nil {
		return nil, err
	}

	current := rootParentID
	for _, segment := range segments {
		if err := validateName(segment); err != nil {
			return nil, err
		}

		found, err := s.repo.FindFolder(ctx, ownerID, current, segment)
		if err == nil {
			id := found.ID
			current = &id
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		created, err := s.repo.Insert(ctx, Item{
			ID:       uuid.New(),
			OwnerID:  ownerID,
			ParentID: current,
			Name:     segment,
			Kind:     KindFolder,
		})
		if err == nil {
			id := created.ID
			current = &id
			continue
		}
		if !errors.Is(err, ErrNameTaken) {
			return nil, err
		}

		// Lost the creation race: a concurrent request inserted the segment
		// between our lookup and insert. Use the winning row.
		winner, err := s.repo.FindFolder(ctx, ownerID, current, segment)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// The conflicting sibling is a file, not a folder.
				return nil, ErrNameTaken
			}
			return nil, err
		}
		id := winner.ID
		current = &id
	}

	return current, nil
}

// CreateFolder creates a single folder under the given parent.
func (s *Service) CreateFolder(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, name string) (Item, error) {
	if err := validateName(name); err != nil {
		return Item{}, err
	}
	if err := s.requireFolder(ctx, ownerID, parentID); err != nil {
		return Item{}, err
	}

	return s.repo.Insert(ctx, Item{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     name,
		Kind:     KindFolder,
	})
}

// CreateFile records a file item. Callers are expected to have already placed
// the bytes under the storage key.
func (s *Service) CreateFile(ctx context.Context, it Item) (Item, error) {
	if err := validateName(it.Name); err != nil {
		return Item{}, err
	}
	if err := s.requireFolder(ctx, it.OwnerID, it.ParentID); err != nil {
		return Item{}, err
	}
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	it.Kind = KindFile
	return s.repo.Insert(ctx, it)
}

// Get returns a live item by id.
func (s *Service) Get(ctx context.Context, ownerID, itemID uuid.UUID) (Item, error) {
	it, err := s.repo.Get(ctx, ownerID, itemID)
	if err != nil {
		return Item{}, err
	}
	if it.IsDeleted {
		return Item{}, ErrNotFound
	}
	return it, nil
}

// List returns the items directly under parentID.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID, includeDeleted bool) ([]Item, error) {
	return s.repo.List(ctx, ownerID, parentID, includeDeleted)
}

// Search finds live items by name substring.
func (s *Service) Search(ctx context.Context, ownerID uuid.UUID, query string) ([]Item, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.repo.Search(ctx, ownerID, query)
}

// Download returns a file's metadata together with its content stream.
func (s *Service) Download(ctx context.Context, ownerID, itemID uuid.UUID) (Item, io.ReadCloser, error) {
	it, err := s.Get(ctx, ownerID, itemID)
	if err != nil {
		return Item{}, nil, err
	}
	if it.Kind != KindFile || it.StorageKey == nil {
		return Item{}, nil, ErrNotFound
	}

	reader, err := s.objects.Get(ctx, *it.StorageKey)
	if err != nil {
		return Item{}, nil, fmt.Errorf("fetch object: %w", err)
	}
	return it, reader, nil
}

// DownloadLink returns a short-lived presigned URL for fetching a file
// directly from the object store, bypassing the API for the byte transfer.
func (s *Service) DownloadLink(ctx context.Context, ownerID, itemID uuid.UUID) (string, time.Duration, error) {
	it, err := s.Get(ctx, ownerID, itemID)
	if err != nil {
		return "", 0, err
	}
	if it.Kind != KindFile || it.StorageKey == nil {
		return "", 0, ErrNotFound
	}

	url, err := s.objects.PresignGet(ctx, *it.StorageKey, s.presignTTL)
	if err != nil {
		return "", 0, fmt.Errorf("presign download: %w", err)
	}
	return url, s.presignTTL, nil
}

// Rename changes an item's name in place.
func (s *Service) Rename(ctx context.Context, ownerID, itemID uuid.UUID, name string) (Item, error) {
	if err := validateName(name); err != nil {
		return Item{}, err
	}
	return s.repo.UpdateName(ctx, ownerID, itemID, name)
}

// Move reparents an item. Moving a folder under itself or any of its
// descendants is rejected before touching storage.
func (s *Service) Move(ctx context.Context, ownerID, itemID uuid.UUID, newParentID *uuid.UUID) (Item, error) {
	it, err := s.Get(ctx, ownerID, itemID)
	if err != nil {
		return Item{}, err
	}
	if err := s.requireFolder(ctx, ownerID, newParentID); err != nil {
		return Item{}, err
	}

	// Walk up from the target parent; hitting the moved item means the move
	// would create a cycle.
	cursor := newParentID
	for depth := 0; cursor != nil; depth++ {
		if depth > maxTreeDepth {
			return Item{}, ErrCycle
		}
		if *cursor == it.ID {
			return Item{}, ErrCycle
		}
		ancestor, err := s.repo.Get(ctx, ownerID, *cursor)
		if err != nil {
			return Item{}, err
		}
		cursor = ancestor.ParentID
	}

	return s.repo.UpdateParent(ctx, ownerID, itemID, newParentID)
}

// ListDescendants returns the subtree rooted at itemID (the root included),
// walked iteratively with a worklist.
func (s *Service) ListDescendants(ctx context.Context, ownerID, itemID uuid.UUID) ([]Item, error) {
	root, err := s.repo.Get(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	return s.collectSubtree(ctx, ownerID, root, true)
}

func (s *Service) collectSubtree(ctx context.Context, ownerID uuid.UUID, root Item, includeDeleted bool) ([]Item, error) {
	items := []Item{root}
	if root.Kind != KindFolder {
		return items, nil
	}

	seen := map[uuid.UUID]bool{root.ID: true}
	queue := []uuid.UUID{root.ID}
	for len(queue) > 0 {
		folderID := queue[0]
		queue = queue[1:]

		children, err := s.repo.Children(ctx, ownerID, folderID, includeDeleted)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if seen[child.ID] {
				return nil, ErrCycle
			}
			seen[child.ID] = true
			items = append(items, child)
			if child.Kind == KindFolder {
				queue = append(queue, child.ID)
			}
		}
	}
	return items, nil
}

// Delete removes an item and, for folders, the whole subtree. Soft delete
// moves items to the trash; permanent delete removes rows and purges backing
// objects. Either way the freed file bytes are committed as a negative quota
// delta. The freed byte count is returned.
func (s *Service) Delete(ctx context.Context, ownerID, itemID uuid.UUID, permanent bool) (int64, error) {
	root, err := s.repo.Get(ctx, ownerID, itemID)
	if err != nil {
		return 0, err
	}
	if root.IsDeleted && !permanent {
		return 0, ErrNotFound
	}

	subtree, err := s.collectSubtree(ctx, ownerID, root, permanent)
	if err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, 0, len(subtree))
	var freedBytes int64
	for _, it := range subtree {
		ids = append(ids, it.ID)
		// Items already in the trash were accounted for when they were
		// soft-deleted; counting them again would double-free quota.
		if it.Kind == KindFile && !it.IsDeleted {
			freedBytes += it.SizeBytes
		}
	}

	if permanent {
		if err := s.repo.DeleteRows(ctx, ownerID, ids); err != nil {
			return 0, err
		}
		// Object purges are best-effort: an orphaned blob is a lesser failure
		// than a delete the user cannot complete.
		for _, it := range subtree {
			if it.Kind != KindFile || it.StorageKey == nil {
				continue
			}
			if err := s.objects.Delete(ctx, *it.StorageKey); err != nil {
				s.logg.Warn("failed to purge object for deleted item",
					zap.String("item_id", it.ID.String()),
					zap.String("storage_key", *it.StorageKey),
					zap.Error(err))
			}
		}
	} else {
		if err := s.repo.MarkDeleted(ctx, ownerID, ids, true); err != nil {
			return 0, err
		}
	}

	if freedBytes > 0 {
		if err := s.ledger.Commit(ctx, ownerID, -freedBytes); err != nil {
			return 0, fmt.Errorf("release quota: %w", err)
		}
	}
	return freedBytes, nil
}

// Restore brings a soft-deleted subtree back from the trash and re-commits
// its file bytes to the quota ledger.
func (s *Service) Restore(ctx context.Context, ownerID, itemID uuid.UUID) (Item, error) {
	root, err := s.repo.Get(ctx, ownerID, itemID)
	if err != nil {
		return Item{}, err
	}
	if !root.IsDeleted {
		return Item{}, ErrNotFound
	}

	subtree, err := s.collectSubtree(ctx, ownerID, root, true)
	if err != nil {
		return Item{}, err
	}

	ids := make([]uuid.UUID, 0, len(subtree))
	var restoredBytes int64
	for _, it := range subtree {
		if !it.IsDeleted {
			continue
		}
		ids = append(ids, it.ID)
		if it.Kind == KindFile {
			restoredBytes += it.SizeBytes
		}
	}

	if err := s.repo.MarkDeleted(ctx, ownerID, ids, false); err != nil {
		return Item{}, err
	}

	if restoredBytes > 0 {
		if err := s.ledger.Commit(ctx, ownerID, restoredBytes); err != nil {
			return Item{}, fmt.Errorf("recommit quota: %w", err)
		}
	}

	return s.repo.Get(ctx, ownerID, itemID)
}
