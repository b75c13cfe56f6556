package syncer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

// CanonicalJSON serializes a payload into its canonical byte form: JSON
// with lexically ordered object keys and no insignificant whitespace.
// Identical payloads must always produce identical bytes, or hash-based
// diffing becomes unreliable. The round trip through an untyped value
// normalizes struct field order into sorted map keys; numbers pass through
// as json.Number so no precision is lost.
func CanonicalJSON(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal canonical payload: %w", err)
	}
	return canonical, nil
}

// ContentHash is the SHA-256 hex digest of the canonical serialization.
func ContentHash(payload any) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// AsPayload converts any JSON-serializable record into the generic map
// form carried by a SyncableDocument.
func AsPayload(record any) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to convert record to payload: %w", err)
	}
	return payload, nil
}

// NewDocument builds a SyncableDocument with its content hash computed.
func NewDocument(collection, id string, record any) (models.SyncableDocument, error) {
	payload, err := AsPayload(record)
	if err != nil {
		return models.SyncableDocument{}, err
	}
	hash, err := ContentHash(payload)
	if err != nil {
		return models.SyncableDocument{}, err
	}
	return models.SyncableDocument{
		CollectionName: collection,
		DocumentID:     id,
		Payload:        payload,
		ContentHash:    hash,
	}, nil
}
