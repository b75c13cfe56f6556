package health

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// HistoryStore persists the append-only health snapshot history in a local
// sqlite database. Snapshots are only ever appended; callers serialize
// appends per sourceId so trend computation stays order-independent.
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory opens (creating if needed) the snapshot database at path.
func OpenHistory(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open health history database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create health history schema: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Close releases the underlying database handle.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// Append records one snapshot. Snapshots are immutable once written.
func (h *HistoryStore) Append(ctx context.Context, s models.HealthSnapshot) error {
	metricsJSON, err := json.Marshal(s.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	warningsJSON, err := json.Marshal(s.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO health_snapshots (source_id, captured_at, parser_version, metrics_json, warnings_json)
		 VALUES (?, ?, ?, ?, ?)`,
		s.SourceID, s.CapturedAt.UTC().Format(time.RFC3339Nano), s.ParserVersion, string(metricsJSON), string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append health snapshot for %s: %w", s.SourceID, err)
	}
	return nil
}

// Recent returns up to limit snapshots for a source, newest first. An
// empty history is not an error; trend detection degrades to no trends.
func (h *HistoryStore) Recent(ctx context.Context, sourceID string, limit int) ([]models.HealthSnapshot, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT source_id, captured_at, parser_version, metrics_json, warnings_json
		 FROM health_snapshots
		 WHERE source_id = ?
		 ORDER BY captured_at DESC, id DESC
		 LIMIT ?`,
		sourceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query health history for %s: %w", sourceID, err)
	}
	defer rows.Close()

	var snapshots []models.HealthSnapshot
	for rows.Next() {
		var (
			s            models.HealthSnapshot
			capturedAt   string
			metricsJSON  string
			warningsJSON string
		)
		if err := rows.Scan(&s.SourceID, &capturedAt, &s.ParserVersion, &metricsJSON, &warningsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan health snapshot: %w", err)
		}
		if s.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt); err != nil {
			return nil, fmt.Errorf("corrupt captured_at for %s: %w", sourceID, err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &s.Metrics); err != nil {
			return nil, fmt.Errorf("corrupt metrics for %s: %w", sourceID, err)
		}
		if err := json.Unmarshal([]byte(warningsJSON), &s.Warnings); err != nil {
			return nil, fmt.Errorf("corrupt warnings for %s: %w", sourceID, err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
