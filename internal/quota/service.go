package quota

import (
	"context"

	"github.com/google/uuid"
)

type ledgerStore interface {
	Usage(ctx context.Context, ownerID uuid.UUID) (Usage, error)
	Commit(ctx context.Context, ownerID uuid.UUID, deltaBytes int64) error
}

// Ledger exposes admission checks and usage commits over the quota counters.
type Ledger struct {
	store ledgerStore
}

// NewLedger constructs a quota ledger.
func NewLedger(store ledgerStore) *Ledger {
	return &Ledger{store: store}
}

// Admit runs the pre-flight admission check: does requestedBytes fit in the
// owner's remaining headroom right now? It reserves nothing; a long-running
// chunked upload holds no capacity until Commit at completion. The check is
// exact at the boundary: requested == available admits, one byte more rejects.
func (l *Ledger) Admit(ctx context.Context, ownerID uuid.UUID, requestedBytes int64) error {
	usage, err := l.store.Usage(ctx, ownerID)
	if err != nil {
		return err
	}

	available := usage.Available()
	if requestedBytes > available {
		return &AdmissionError{RequiredBytes: requestedBytes, AvailableBytes: available}
	}
	return nil
}

// Commit atomically applies a usage delta: positive on upload completion,
// negative on deletion. The storage layer floors the counter at zero.
func (l *Ledger) Commit(ctx context.Context, ownerID uuid.UUID, deltaBytes int64) error {
	return l.store.Commit(ctx, ownerID, deltaBytes)
}

// Usage returns the owner's current counters.
func (l *Ledger) Usage(ctx context.Context, ownerID uuid.UUID) (Usage, error) {
	return l.store.Usage(ctx, ownerID)
}
