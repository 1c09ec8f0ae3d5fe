package upload

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/adilet/vaultdrive/internal/item"
	"github.com/adilet/vaultdrive/internal/metrics"
	"github.com/adilet/vaultdrive/internal/objectstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type itemCatalog interface {
	ResolveHierarchy(ctx context.Context, ownerID uuid.UUID, rootParentID *uuid.UUID, segments []string) (*uuid.UUID, error)
	CreateFile(ctx context.Context, it item.Item) (item.Item, error)
}

type quotaLedger interface {
	Admit(ctx context.Context, ownerID uuid.UUID, requestedBytes int64) error
	Commit(ctx context.Context, ownerID uuid.UUID, deltaBytes int64) error
}

type contentValidator interface {
	Validate(buf []byte, declaredMIME, declaredName string) error
}

// Options tunes the coordinator.
type Options struct {
	SessionExpiry   time.Duration
	JanitorInterval time.Duration
	SampleBytes     int64
}

func (o *Options) fill() {
	if o.SessionExpiry <= 0 {
		o.SessionExpiry = 24 * time.Hour
	}
	if o.JanitorInterval <= 0 {
		o.JanitorInterval = 15 * time.Minute
	}
	if o.SampleBytes <= 0 {
		o.SampleBytes = 64 * 1024
	}
}

// InitResult is what a client needs to start streaming parts.
type InitResult struct {
	UploadID   string `json:"upload_id"`
	StorageKey string `json:"storage_key"`
}

// Service coordinates the multi-request chunked upload lifecycle.
type Service struct {
	store     objectstore.Store
	items     itemCatalog
	ledger    quotaLedger
	validator contentValidator
	sessions  *SessionStore
	opts      Options
	logg      *zap.Logger
}

// NewService constructs an upload coordinator.
func NewService(store objectstore.Store, items itemCatalog, ledger quotaLedger, validator contentValidator, opts Options, logg *zap.Logger) *Service {
	opts.fill()
	if logg == nil {
		logg = zap.NewNop()
	}
	return &Service{
		store:     store,
		items:     items,
		ledger:    ledger,
		validator: validator,
		sessions:  NewSessionStore(),
		opts:      opts,
		logg:      logg,
	}
}

// allocateKey derives an unguessable storage key: a hashed owner prefix (the
// raw owner id never appears in keys), a crypto-random component, and the
// original extension. The raw filename never reaches the object store.
func allocateKey(ownerID uuid.UUID, fileName string) (string, error) {
	ownerHash := sha256.Sum256([]byte(ownerID.String()))

	randomPart := make([]byte, 16)
	if _, err := rand.Read(randomPart); err != nil {
		return "", fmt.Errorf("allocate storage key: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("%s/%s%s",
		hex.EncodeToString(ownerHash[:8]),
		hex.EncodeToString(randomPart),
		ext), nil
}

// pathSegments splits a relative path into folder segments, dropping the
// final component (the file name itself) and any empty segments.
func pathSegments(relativePath string) []string {
	parts := strings.Split(relativePath, "/")
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}
	var segments []string
	for _, p := range parts {
		if p != "" && p != "." {
			segments = append(segments, p)
		}
	}
	return segments
}

// Init validates the request, resolves the destination folder from the
// relative path, runs the quota admission check against the declared size,
// and opens a multipart upload. Concurrent inits for the same logical file
// each get an independent upload id and storage key; the random key
// component makes collisions impossible in practice.
func (s *Service) Init(ctx context.Context, ownerID uuid.UUID, fileName, relativePath string, declaredSize int64, parentID *uuid.UUID) (InitResult, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || strings.ContainsAny(fileName, "/\x00") {
		return InitResult{}, fmt.Errorf("%w: file name required", ErrInvalidUpload)
	}
	if declaredSize <= 0 {
		return InitResult{}, fmt.Errorf("%w: declared size must be positive", ErrInvalidUpload)
	}

	// Admission runs before folder resolution so a rejected init leaves the
	// item tree untouched.
	if err := s.ledger.Admit(ctx, ownerID, declaredSize); err != nil {
		metrics.RecordQuotaRejected()
		return InitResult{}, err
	}

	effectiveParent := parentID
	if segments := pathSegments(relativePath); len(segments) > 0 {
		resolved, err := s.items.ResolveHierarchy(ctx, ownerID, parentID, segments)
		if err != nil {
			return InitResult{}, err
		}
		effectiveParent = resolved
	}

	storageKey, err := allocateKey(ownerID, fileName)
	if err != nil {
		return InitResult{}, err
	}

	uploadID, err := s.store.CreateMultipart(ctx, storageKey, contentTypeForInit(fileName))
	if err != nil {
		return InitResult{}, fmt.Errorf("open multipart upload: %w", err)
	}

	s.sessions.Put(newSession(uploadID, storageKey, ownerID, fileName, declaredSize, effectiveParent))

	s.logg.Info("chunked upload initiated",
		zap.String("upload_id", uploadID),
		zap.String("storage_key", storageKey),
		zap.Int64("declared_size", declaredSize))

	return InitResult{UploadID: uploadID, StorageKey: storageKey}, nil
}

// UploadPart forwards one chunk to the object store and records its etag.
// Parts may arrive in any order and concurrently; a retried index overwrites
// the earlier etag. On store failure the error names the part and the
// session stays alive for a retry.
func (s *Service) UploadPart(ctx context.Context, ownerID uuid.UUID, uploadID, storageKey string, partIndex, totalParts int, chunk []byte) (int, error) {
	sess, ok := s.sessions.Get(uploadID, ownerID)
	if !ok || sess.StorageKey != storageKey {
		return 0, ErrSessionNotFound
	}

	if totalParts <= 0 || partIndex < 0 || partIndex >= totalParts {
		return 0, fmt.Errorf("%w: index %d of %d", ErrInvalidPart, partIndex, totalParts)
	}
	if len(chunk) == 0 {
		return 0, fmt.Errorf("%w: empty chunk", ErrInvalidPart)
	}

	if err := sess.beginPart(totalParts); err != nil {
		return 0, err
	}

	part, err := s.store.UploadPart(ctx, storageKey, uploadID, partIndex, bytes.NewReader(chunk), int64(len(chunk)))
	if err != nil {
		return 0, &PartError{PartIndex: partIndex, Err: err}
	}

	sess.recordPart(part)
	_, _, percent := sess.Progress()
	return percent, nil
}

// Complete finalizes the multipart object, validates its content, records
// the file item, and commits the declared size to the quota ledger. The
// ordering is deliberate: chunked content cannot be inspected until
// reassembled, so validation runs after finalization and a rejection purges
// the assembled object (the compensating action). Re-completing an
// already-completed session returns the recorded item without a second
// quota commit.
func (s *Service) Complete(ctx context.Context, ownerID uuid.UUID, uploadID, storageKey, fileName string, declaredSize int64, totalParts int, mimeType string) (item.Item, error) {
	sess, ok := s.sessions.Get(uploadID, ownerID)
	if !ok || sess.StorageKey != storageKey {
		return item.Item{}, ErrSessionNotFound
	}
	if totalParts <= 0 {
		return item.Item{}, fmt.Errorf("%w: total parts must be positive", ErrInvalidPart)
	}
	// The completion request re-states the metadata from init; a mismatch
	// means the client mixed up sessions.
	if fileName != "" && fileName != sess.FileName {
		return item.Item{}, fmt.Errorf("%w: file name does not match session", ErrInvalidUpload)
	}
	if declaredSize != 0 && declaredSize != sess.DeclaredSize {
		return item.Item{}, fmt.Errorf("%w: declared size does not match session", ErrInvalidUpload)
	}

	parts, err := sess.beginComplete(totalParts)
	if err != nil {
		if errors.Is(err, errAlreadyCompleted) {
			if it, ok := sess.completedItem(); ok {
				return it, nil
			}
			return item.Item{}, ErrUploadNotActive
		}
		return item.Item{}, err
	}

	if _, err := s.store.CompleteMultipart(ctx, storageKey, uploadID, parts); err != nil {
		// Finalization is retryable; give the session back to the client.
		sess.setStatus(StatusUploading)
		return item.Item{}, fmt.Errorf("finalize multipart upload: %w", err)
	}

	// Every classifier check inspects a bounded prefix, so a range read of
	// the assembled object suffices; no full re-download.
	sample, err := s.store.GetRange(ctx, storageKey, 0, s.opts.SampleBytes-1)
	if err != nil {
		s.compensate(ctx, sess, storageKey)
		return item.Item{}, fmt.Errorf("read assembled object: %w", err)
	}

	if err := s.validator.Validate(sample, mimeType, sess.FileName); err != nil {
		metrics.RecordContentRejected()
		s.compensate(ctx, sess, storageKey)
		return item.Item{}, err
	}

	var declaredMIME *string
	if mimeType != "" {
		declaredMIME = &mimeType
	}
	created, err := s.items.CreateFile(ctx, item.Item{
		OwnerID:    ownerID,
		ParentID:   sess.ParentID,
		Name:       sess.FileName,
		SizeBytes:  sess.DeclaredSize,
		MIMEType:   declaredMIME,
		StorageKey: &storageKey,
	})
	if err != nil {
		s.compensate(ctx, sess, storageKey)
		return item.Item{}, err
	}

	if err := s.ledger.Commit(ctx, ownerID, sess.DeclaredSize); err != nil {
		// The item exists and the bytes are durable, so the upload succeeded;
		// failing it here would only make the client re-complete a session
		// that can never retry the commit. Log the accounting gap instead.
		s.logg.Error("quota commit failed after completion",
			zap.String("upload_id", uploadID),
			zap.String("item_id", created.ID.String()),
			zap.Int64("uncommitted_bytes", sess.DeclaredSize),
			zap.Error(err))
	}

	sess.finishComplete(created)
	metrics.RecordUpload("completed")
	metrics.AddUploadBytes(sess.DeclaredSize)

	s.logg.Info("chunked upload completed",
		zap.String("upload_id", uploadID),
		zap.String("item_id", created.ID.String()),
		zap.Int64("size", created.SizeBytes))

	return created, nil
}

// compensate removes an assembled object after a post-finalization failure
// so no orphaned billable storage survives the error.
func (s *Service) compensate(ctx context.Context, sess *Session, storageKey string) {
	sess.setStatus(StatusAborted)
	if err := s.store.Delete(ctx, storageKey); err != nil {
		s.logg.Error("compensating object delete failed",
			zap.String("storage_key", storageKey), zap.Error(err))
	}
}

// Abort cancels a session that has not completed, releasing any parts held
// by the object store. No quota was committed, so there is nothing to
// release on the ledger.
func (s *Service) Abort(ctx context.Context, ownerID uuid.UUID, uploadID string) error {
	sess, ok := s.sessions.Get(uploadID, ownerID)
	if !ok {
		return ErrSessionNotFound
	}

	switch sess.Status() {
	case StatusActive, StatusUploading:
	default:
		return ErrUploadNotActive
	}

	if err := s.store.AbortMultipart(ctx, sess.StorageKey, uploadID); err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}

	sess.setStatus(StatusAborted)
	metrics.RecordUpload("aborted")
	s.logg.Info("chunked upload aborted", zap.String("upload_id", uploadID))
	return nil
}

// SessionProgress reports the state of an in-flight upload.
func (s *Service) SessionProgress(ownerID uuid.UUID, uploadID string) (Status, int, int, int, error) {
	sess, ok := s.sessions.Get(uploadID, ownerID)
	if !ok {
		return "", 0, 0, 0, ErrSessionNotFound
	}
	received, total, percent := sess.Progress()
	return sess.Status(), received, total, percent, nil
}

// StartJanitor launches the background loop that aborts sessions idle past
// the expiry. Incomplete multipart uploads hold billable parts on the store
// side, so cleanup is cost control, not just hygiene.
func (s *Service) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.opts.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reapIdleSessions(ctx)
			}
		}
	}()
}

func (s *Service) reapIdleSessions(ctx context.Context) {
	cutoff := time.Now().Add(-s.opts.SessionExpiry)
	for _, sess := range s.sessions.IdleBefore(cutoff) {
		switch sess.Status() {
		// A session idle in completing for this long was abandoned mid-flight
		// (a crashed finalization never resets the state); its parts are held
		// by the store just like an uploading session's.
		case StatusActive, StatusUploading, StatusCompleting:
			if err := s.store.AbortMultipart(ctx, sess.StorageKey, sess.UploadID); err != nil {
				s.logg.Warn("failed to abort expired upload",
					zap.String("upload_id", sess.UploadID), zap.Error(err))
				continue
			}
			sess.setStatus(StatusAborted)
			metrics.RecordUpload("expired")
			s.logg.Info("expired upload session reaped",
				zap.String("upload_id", sess.UploadID))
		case StatusCompleted, StatusAborted:
			s.sessions.Remove(sess.UploadID)
		}
	}
}

// contentTypeForInit picks the content type handed to the object store at
// multipart creation. It is a hint only; the authoritative classification
// happens at completion against the assembled bytes.
func contentTypeForInit(fileName string) string {
	if typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); typ != "" {
		return typ
	}
	return "application/octet-stream"
}
