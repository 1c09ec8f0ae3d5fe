package upload

import (
	"math"
	"sync"
	"time"

	"github.com/adilet/vaultdrive/internal/item"
	"github.com/adilet/vaultdrive/internal/objectstore"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a chunked upload session.
type Status string

const (
	// StatusActive: the session exists but no part has arrived yet.
	StatusActive Status = "active"
	// StatusUploading: at least one part has been acknowledged.
	StatusUploading Status = "uploading"
	// StatusCompleting: the multipart object is being finalized.
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
)

// Session is the in-flight state of one chunked upload, keyed by the object
// store's multipart upload id. It lives only for the duration of the upload;
// the object store's own multipart bookkeeping is the durable record.
type Session struct {
	UploadID     string
	StorageKey   string
	OwnerID      uuid.UUID
	FileName     string
	DeclaredSize int64
	ParentID     *uuid.UUID
	CreatedAt    time.Time

	mu           sync.Mutex
	status       Status
	totalParts   int
	parts        map[int]objectstore.Part
	lastActivity time.Time
	completed    *item.Item
}

func newSession(uploadID, storageKey string, ownerID uuid.UUID, fileName string, declaredSize int64, parentID *uuid.UUID) *Session {
	now := time.Now()
	return &Session{
		UploadID:     uploadID,
		StorageKey:   storageKey,
		OwnerID:      ownerID,
		FileName:     fileName,
		DeclaredSize: declaredSize,
		ParentID:     parentID,
		CreatedAt:    now,
		status:       StatusActive,
		parts:        make(map[int]objectstore.Part),
		lastActivity: now,
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Progress reports received parts, the total, and a rounded percentage.
// Progress is monotonic: parts are only ever added or overwritten, never
// removed.
func (s *Session) Progress() (received, total, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	received = len(s.parts)
	total = s.totalParts
	if total > 0 {
		percent = int(math.Round(float64(received) / float64(total) * 100))
	}
	return received, total, percent
}

// recordPart stores an acknowledged part. A retried part index overwrites the
// previous etag rather than duplicating.
func (s *Session) recordPart(part objectstore.Part) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[part.Index] = part
	s.status = StatusUploading
	s.lastActivity = time.Now()
}

// beginPart checks the session can still accept parts and pins totalParts to
// the first value seen.
func (s *Session) beginPart(totalParts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusActive, StatusUploading:
	default:
		return ErrUploadNotActive
	}
	if s.totalParts == 0 {
		s.totalParts = totalParts
	} else if s.totalParts != totalParts {
		return ErrInvalidPart
	}
	s.lastActivity = time.Now()
	return nil
}

// beginComplete transitions uploading → completing when parts 0..total-1 are
// all acknowledged, returning them in index order. An already-completed
// session reports errAlreadyCompleted so the caller can return the recorded
// item idempotently.
func (s *Session) beginComplete(totalParts int) ([]objectstore.Part, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusCompleted:
		return nil, errAlreadyCompleted
	case StatusUploading:
	default:
		return nil, ErrUploadNotActive
	}
	if s.totalParts != 0 && s.totalParts != totalParts {
		return nil, ErrInvalidPart
	}

	for i := 0; i < totalParts; i++ {
		if _, ok := s.parts[i]; !ok {
			return nil, &IncompleteError{ReceivedParts: len(s.parts), TotalParts: totalParts}
		}
	}

	parts := make([]objectstore.Part, 0, totalParts)
	for i := 0; i < totalParts; i++ {
		parts = append(parts, s.parts[i])
	}
	s.status = StatusCompleting
	s.lastActivity = time.Now()
	return parts, nil
}

// setStatus forces a lifecycle state, used for aborts and completion
// rollbacks.
func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.lastActivity = time.Now()
}

// finishComplete records the created item and marks the session completed.
func (s *Session) finishComplete(it item.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = &it
	s.status = StatusCompleted
	s.lastActivity = time.Now()
}

// completedItem returns the item recorded by a successful completion.
func (s *Session) completedItem() (item.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed == nil {
		return item.Item{}, false
	}
	return *s.completed, true
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
