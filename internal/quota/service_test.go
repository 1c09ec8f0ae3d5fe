package quota

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type fakeLedgerStore struct {
	mu     sync.Mutex
	usage  map[uuid.UUID]Usage
	failed bool
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{usage: make(map[uuid.UUID]Usage)}
}

func (f *fakeLedgerStore) Usage(ctx context.Context, ownerID uuid.UUID) (Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usage[ownerID]
	if !ok {
		return Usage{}, ErrOwnerNotFound
	}
	return u, nil
}

func (f *fakeLedgerStore) Commit(ctx context.Context, ownerID uuid.UUID, deltaBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usage[ownerID]
	if !ok {
		return ErrOwnerNotFound
	}
	u.UsedBytes += deltaBytes
	if u.UsedBytes < 0 {
		u.UsedBytes = 0
	}
	f.usage[ownerID] = u
	return nil
}

func TestAdmitBoundaryIsExact(t *testing.T) {
	store := newFakeLedgerStore()
	owner := uuid.New()
	store.usage[owner] = Usage{UsedBytes: 700, LimitBytes: 1000}

	ledger := NewLedger(store)

	if err := ledger.Admit(context.Background(), owner, 300); err != nil {
		t.Fatalf("exact fit should be admitted: %v", err)
	}

	err := ledger.Admit(context.Background(), owner, 301)
	if !IsAdmissionRejected(err) {
		t.Fatalf("expected admission rejection, got %v", err)
	}

	var admission *AdmissionError
	if !errors.As(err, &admission) {
		t.Fatalf("expected *AdmissionError, got %T", err)
	}
	if admission.RequiredBytes != 301 || admission.AvailableBytes != 300 {
		t.Fatalf("unexpected counts: required=%d available=%d",
			admission.RequiredBytes, admission.AvailableBytes)
	}
}

func TestAdmitOverfullOwnerReportsZeroAvailable(t *testing.T) {
	store := newFakeLedgerStore()
	owner := uuid.New()
	store.usage[owner] = Usage{UsedBytes: 2000, LimitBytes: 1000}

	ledger := NewLedger(store)

	err := ledger.Admit(context.Background(), owner, 1)
	var admission *AdmissionError
	if !errors.As(err, &admission) {
		t.Fatalf("expected *AdmissionError, got %v", err)
	}
	if admission.AvailableBytes != 0 {
		t.Fatalf("expected zero available, got %d", admission.AvailableBytes)
	}
}

func TestCommitFloorsAtZero(t *testing.T) {
	store := newFakeLedgerStore()
	owner := uuid.New()
	store.usage[owner] = Usage{UsedBytes: 100, LimitBytes: 1000}

	ledger := NewLedger(store)

	for i := 0; i < 5; i++ {
		if err := ledger.Commit(context.Background(), owner, -250); err != nil {
			t.Fatalf("Commit returned error: %v", err)
		}
	}

	usage, err := ledger.Usage(context.Background(), owner)
	if err != nil {
		t.Fatalf("Usage returned error: %v", err)
	}
	if usage.UsedBytes != 0 {
		t.Fatalf("expected usage floored at 0, got %d", usage.UsedBytes)
	}
}

func TestConcurrentCommitsFloorAtZero(t *testing.T) {
	store := newFakeLedgerStore()
	owner := uuid.New()
	store.usage[owner] = Usage{UsedBytes: 500, LimitBytes: 10000}

	ledger := NewLedger(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.Commit(context.Background(), owner, -100)
		}()
	}
	wg.Wait()

	usage, _ := ledger.Usage(context.Background(), owner)
	if usage.UsedBytes != 0 {
		t.Fatalf("expected usage floored at 0, got %d", usage.UsedBytes)
	}
}

func TestAdmitUnknownOwner(t *testing.T) {
	ledger := NewLedger(newFakeLedgerStore())

	err := ledger.Admit(context.Background(), uuid.New(), 10)
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected ErrOwnerNotFound, got %v", err)
	}
}
