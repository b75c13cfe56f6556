// Package store defines the minimal remote document store contract the
// sync engine reconciles against, plus its Firestore and in-memory
// implementations. The engine is agnostic to transport and consistency
// beyond "reads reflect the most recent committed write".
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StoredDocument is what the remote store holds per document: the payload
// plus the content hash recorded at the last successful sync.
type StoredDocument struct {
	Payload     map[string]any `firestore:"payload" json:"payload"`
	ContentHash string         `firestore:"contentHash" json:"contentHash"`
	SyncedAt    time.Time      `firestore:"syncedAt" json:"syncedAt"`
}

// RemoteStore is the get/set/delete/list contract consumed by the sync
// engine. Get returns nil (not an error) when the document is absent.
type RemoteStore interface {
	Get(ctx context.Context, collection, id string) (*StoredDocument, error)
	Set(ctx context.Context, collection, id string, doc StoredDocument) error
	Delete(ctx context.Context, collection, id string) error
	ListIDs(ctx context.Context, collection string) ([]string, error)
}

// MemoryStore is an in-memory RemoteStore. It backs dry-run syncs and the
// engine tests; operation counters let tests assert write minimality.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]StoredDocument

	GetCalls    int
	SetCalls    int
	DeleteCalls int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]StoredDocument{}}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (*StoredDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (m *MemoryStore) Set(_ context.Context, collection, id string, doc StoredDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]StoredDocument{}
	}
	m.collections[collection][id] = doc
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryStore) ListIDs(_ context.Context, collection string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.collections[collection]))
	for id := range m.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ResetCounters zeroes the operation counters between test phases.
func (m *MemoryStore) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls, m.SetCalls, m.DeleteCalls = 0, 0, 0
}
