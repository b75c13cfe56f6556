// Package syncer reconciles locally materialized documents against the
// remote document store using content-hash diffing. One generic algorithm
// serves every collection: a document is written only when its hash
// differs from the stored one, and remote documents absent from the source
// set are deleted, so running reconcile twice with unchanged input
// performs zero writes the second time.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
	"github.com/Lllllllleong/catalogdocumentflow/internal/store"
)

// Config bounds the engine's concurrency and retry behaviour.
type Config struct {
	MaxConcurrent  int
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig matches the remote store's request-rate tolerances.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  8,
		MaxRetries:     4,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// Engine reconciles batches of SyncableDocuments against a RemoteStore.
type Engine struct {
	store store.RemoteStore
	cfg   Config
	now   func() time.Time
}

// NewEngine builds an Engine. Zero config fields take their defaults.
func NewEngine(remote store.RemoteStore, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	return &Engine{store: remote, cfg: cfg, now: time.Now}
}

// Reconcile makes the remote collection's document set exactly equal the
// source set with the minimal writes and deletes. Per-document failures
// are retried with backoff and then reported in the result; they never
// abort the batch. The delete sweep runs only after every write
// comparison has completed, since it depends on the full source manifest.
func (e *Engine) Reconcile(ctx context.Context, collection string, docs []models.SyncableDocument) (*models.ReconcileResult, error) {
	logCtx := slog.With("collection", collection, "sourceDocuments", len(docs))
	logCtx.Info("Starting reconciliation.")

	result := &models.ReconcileResult{
		Collection: collection,
		Updated:    []string{},
		Skipped:    []string{},
		Deleted:    []string{},
	}
	var mu sync.Mutex

	// Duplicate IDs in the source set would make "exactly equals" ambiguous;
	// keep the first occurrence.
	manifest := map[string]bool{}
	unique := docs[:0:0]
	for _, doc := range docs {
		if manifest[doc.DocumentID] {
			logCtx.Warn("Duplicate document id in source set; keeping the first.", "documentId", doc.DocumentID)
			continue
		}
		manifest[doc.DocumentID] = true
		unique = append(unique, doc)
	}

	// --- 1. Hash-compare every source document, writing only on change ---
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.cfg.MaxConcurrent)
	for _, doc := range unique {
		eg.Go(func() error {
			outcome, err := e.reconcileOne(gctx, collection, doc)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed = append(result.Failed, models.FailedSyncItem{
					DocumentID: doc.DocumentID,
					Operation:  "set",
					Error:      err.Error(),
				})
			case outcome:
				result.Updated = append(result.Updated, doc.DocumentID)
			default:
				result.Skipped = append(result.Skipped, doc.DocumentID)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	// --- 2. Delete sweep: remove remote documents absent from the source set ---
	remoteIDs, err := e.store.ListIDs(ctx, collection)
	if err != nil {
		logCtx.Error("Failed to enumerate remote documents; skipping delete sweep.", "error", err)
		return result, fmt.Errorf("failed to list remote documents in %s: %w", collection, err)
	}
	for _, id := range remoteIDs {
		if manifest[id] {
			continue
		}
		if err := e.withRetry(ctx, "delete "+id, func() error {
			return e.store.Delete(ctx, collection, id)
		}); err != nil {
			result.Failed = append(result.Failed, models.FailedSyncItem{
				DocumentID: id,
				Operation:  "delete",
				Error:      err.Error(),
			})
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}

	sort.Strings(result.Updated)
	sort.Strings(result.Skipped)
	sort.Strings(result.Deleted)

	logCtx.Info("Reconciliation complete.",
		"updated", len(result.Updated),
		"skipped", len(result.Skipped),
		"deleted", len(result.Deleted),
		"failed", len(result.Failed),
	)
	return result, nil
}

// reconcileOne compares one document's hash against the stored one and
// writes when they differ or the document is absent. Returns true when a
// write happened.
func (e *Engine) reconcileOne(ctx context.Context, collection string, doc models.SyncableDocument) (bool, error) {
	hash := doc.ContentHash
	if hash == "" {
		var err error
		if hash, err = ContentHash(doc.Payload); err != nil {
			return false, err
		}
	}

	var existing *store.StoredDocument
	if err := e.withRetry(ctx, "get "+doc.DocumentID, func() error {
		var err error
		existing, err = e.store.Get(ctx, collection, doc.DocumentID)
		return err
	}); err != nil {
		return false, err
	}

	if existing != nil && existing.ContentHash == hash {
		return false, nil
	}

	stored := store.StoredDocument{
		Payload:     doc.Payload,
		ContentHash: hash,
		SyncedAt:    e.now().UTC(),
	}
	if err := e.withRetry(ctx, "set "+doc.DocumentID, func() error {
		return e.store.Set(ctx, collection, doc.DocumentID, stored)
	}); err != nil {
		return false, err
	}
	return true, nil
}

// withRetry runs op up to the configured retry bound with doubling
// backoff, honouring context cancellation during the wait.
func (e *Engine) withRetry(ctx context.Context, label string, op func() error) error {
	backoff := e.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == e.cfg.MaxRetries {
			break
		}
		slog.Warn("Store operation failed, will retry.",
			"operation", label,
			"attempt", attempt,
			"maxRetries", e.cfg.MaxRetries,
			"backoff", backoff.String(),
			"error", lastErr,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, e.cfg.MaxRetries, lastErr)
}
