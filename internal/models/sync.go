package models

// SyncableDocument is the unit exchanged with the remote document store.
// ContentHash is a SHA-256 digest of the canonical serialization of Payload
// and is the sole signal the sync engine uses to decide whether a write is
// needed: identical payloads must always hash identically.
type SyncableDocument struct {
	CollectionName string         `json:"collectionName"`
	DocumentID     string         `json:"documentId"`
	Payload        map[string]any `json:"payload"`
	ContentHash    string         `json:"contentHash"`
}

// FailedSyncItem records one document that exhausted its retry budget
// during reconciliation.
type FailedSyncItem struct {
	DocumentID string `json:"documentId"`
	Operation  string `json:"operation"` // "set" or "delete"
	Error      string `json:"error"`
}

// ReconcileResult is the full accounting of one reconcile run over a
// collection.
type ReconcileResult struct {
	Collection string           `json:"collection"`
	Updated    []string         `json:"updated"`
	Skipped    []string         `json:"skipped"`
	Deleted    []string         `json:"deleted"`
	Failed     []FailedSyncItem `json:"failed,omitempty"`
}
