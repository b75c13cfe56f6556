package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/catalogdocumentflow/internal/gcp"
)

// Archiver publishes health reports and canonical tables to a GCS bucket
// so operational dashboards can read them without touching the document
// store. Archival is best-effort: it is configured per batch and a failed
// archive never fails the run.
type Archiver struct {
	bucket *storage.BucketHandle
	name   string
}

// NewArchiver opens the archive bucket. An empty bucket name returns a nil
// Archiver, which every method treats as "archival disabled".
func NewArchiver(ctx context.Context, bucketName string) (*Archiver, error) {
	if bucketName == "" {
		return nil, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Archiver{bucket: client.Bucket(bucketName), name: bucketName}, nil
}

// ArchiveHealthReport writes one report under health/<sourceId>/<ts>.json.
func (a *Archiver) ArchiveHealthReport(ctx context.Context, r *HealthReport) {
	if a == nil {
		return
	}
	content, err := r.JSON()
	if err != nil {
		slog.Error("Failed to render health report for archival.", "sourceId", r.SourceID, "error", err)
		return
	}
	object := fmt.Sprintf("health/%s/%s.json", r.SourceID, r.GeneratedAt.Format("20060102T150405Z"))
	a.save(ctx, object, string(content))
}

// ArchiveCanonicalTable writes a canonical table JSON under tables/.
func (a *Archiver) ArchiveCanonicalTable(ctx context.Context, name string, content []byte) {
	if a == nil {
		return
	}
	object := fmt.Sprintf("tables/%s-%s.json", name, time.Now().UTC().Format("20060102T150405Z"))
	a.save(ctx, object, string(content))
}

func (a *Archiver) save(ctx context.Context, object, content string) {
	if err := gcp.SaveToGCSAtomically(ctx, a.bucket, object, content); err != nil {
		slog.Error("Failed to archive object.", "bucket", a.name, "object", object, "error", err)
		return
	}
	slog.Info("Archived object.", "bucket", a.name, "object", object)
}
