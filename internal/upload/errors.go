package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound covers both unknown upload ids and sessions owned by
	// someone else.
	ErrSessionNotFound = errors.New("upload session not found")
	// ErrUploadNotActive is returned when an operation needs a session that
	// can still accept parts.
	ErrUploadNotActive = errors.New("upload session is not active")
	// ErrInvalidPart rejects out-of-range part indexes, empty chunks, and
	// totalParts values that contradict earlier requests.
	ErrInvalidPart = errors.New("invalid part")
	// ErrInvalidUpload rejects malformed init parameters.
	ErrInvalidUpload = errors.New("invalid upload request")

	// errAlreadyCompleted signals an idempotent re-complete internally.
	errAlreadyCompleted = errors.New("upload already completed")
)

// PartError wraps an object-store failure for one specific part so the
// caller can retry exactly that part. The session stays alive.
type PartError struct {
	PartIndex int
	Err       error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("upload part %d failed: %v", e.PartIndex, e.Err)
}

func (e *PartError) Unwrap() error { return e.Err }

// IncompleteError reports a completion attempt before all parts arrived.
type IncompleteError struct {
	ReceivedParts int
	TotalParts    int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete upload: received %d/%d parts", e.ReceivedParts, e.TotalParts)
}
