// Package batch orchestrates one end-to-end run: discover source
// documents, parse each with the format strategy its date selects, record
// health snapshots, build the canonical tables, and reconcile them into
// the remote document store. Parse-time conditions never escalate to
// process-fatal; only configuration failures stop a batch before work
// begins.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/catalogdocumentflow/internal/aggregator"
	"github.com/Lllllllleong/catalogdocumentflow/internal/gcp"
	"github.com/Lllllllleong/catalogdocumentflow/internal/health"
	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
	"github.com/Lllllllleong/catalogdocumentflow/internal/parser"
	"github.com/Lllllllleong/catalogdocumentflow/internal/patterns"
	"github.com/Lllllllleong/catalogdocumentflow/internal/report"
	"github.com/Lllllllleong/catalogdocumentflow/internal/source"
	"github.com/Lllllllleong/catalogdocumentflow/internal/store"
	"github.com/Lllllllleong/catalogdocumentflow/internal/syncer"
)

// Config holds everything one batch invocation needs. Loaded once; never
// mutated while the batch runs.
type Config struct {
	SourceDir             string
	SourcePaths           []string
	SourceExtension       string
	OverridePath          string
	FormatRegistryPath    string
	HistoryPath           string
	CoursesCollection     string
	DegreePlansCollection string
	ArchiveBucket         string
	MaxParallelParses     int
	PerSourceTimeout      time.Duration
	SkipSync              bool
}

// ConfigFromEnv builds a Config from environment variables with the
// defaults a typical deployment uses.
func ConfigFromEnv() Config {
	return Config{
		SourceDir:             gcp.GetEnv("CATALOG_SOURCE_DIR", "."),
		SourceExtension:       gcp.GetEnv("CATALOG_SOURCE_EXT", ".txt"),
		OverridePath:          gcp.GetEnv("CATALOG_OVERRIDES", ""),
		FormatRegistryPath:    gcp.GetEnv("CATALOG_FORMATS", ""),
		HistoryPath:           gcp.GetEnv("CATALOG_HEALTH_DB", "catalog-health.db"),
		CoursesCollection:     gcp.GetEnv("COURSES_COLLECTION", "courses"),
		DegreePlansCollection: gcp.GetEnv("DEGREE_PLANS_COLLECTION", "degreePlans"),
		ArchiveBucket:         gcp.GetEnv("REPORT_ARCHIVE_BUCKET", ""),
		MaxParallelParses:     4,
		PerSourceTimeout:      2 * time.Minute,
	}
}

// SourceOutcome is the full accounting for one source document.
type SourceOutcome struct {
	Source   string                   `json:"source"`
	Result   *models.CatalogRunResult `json:"result"`
	Snapshot models.HealthSnapshot    `json:"snapshot"`
	Trends   []models.Trend           `json:"trends,omitempty"`
	Alerts   []models.Alert           `json:"alerts,omitempty"`
}

// Summary is what a batch run returns to its caller: every source and
// every sync item accounted for, for human review.
type Summary struct {
	RunID       string                  `json:"runId"`
	StartedAt   time.Time               `json:"startedAt"`
	FinishedAt  time.Time               `json:"finishedAt"`
	Sources     []SourceOutcome         `json:"sources"`
	Conflicts   int                     `json:"conflicts"`
	CoursesSync *models.ReconcileResult `json:"coursesSync,omitempty"`
	PlansSync   *models.ReconcileResult `json:"plansSync,omitempty"`
}

// Orchestrator wires the pipeline components for repeated batch runs.
type Orchestrator struct {
	config   Config
	selector *parser.Selector
	history  *health.HistoryStore
	engine   *syncer.Engine
	archiver *report.Archiver

	// historyMu serializes history read/append per sourceId; concurrent
	// runs for different sources stay independent.
	mu        sync.Mutex
	historyMu map[string]*sync.Mutex
}

// New builds an Orchestrator. Any error here is a configuration error and
// fatal per the propagation policy.
func New(ctx context.Context, config Config, remote store.RemoteStore) (*Orchestrator, error) {
	overrides, err := parser.LoadOverrides(config.OverridePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load override table: %w", err)
	}
	registry, err := patterns.LoadRegistry(config.FormatRegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load format registry: %w", err)
	}
	historyStore, err := health.OpenHistory(config.HistoryPath)
	if err != nil {
		return nil, err
	}
	archiver, err := report.NewArchiver(ctx, config.ArchiveBucket)
	if err != nil {
		historyStore.Close()
		return nil, err
	}
	if config.MaxParallelParses <= 0 {
		config.MaxParallelParses = 4
	}
	if config.PerSourceTimeout <= 0 {
		config.PerSourceTimeout = 2 * time.Minute
	}

	return &Orchestrator{
		config:    config,
		selector:  parser.NewSelector(registry, overrides),
		history:   historyStore,
		engine:    syncer.NewEngine(remote, syncer.DefaultConfig()),
		archiver:  archiver,
		historyMu: map[string]*sync.Mutex{},
	}, nil
}

// Close releases held resources.
func (o *Orchestrator) Close() error {
	return o.history.Close()
}

// Run executes one batch over the configured source set.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logCtx := slog.With("runId", summary.RunID)

	docs, err := o.discover()
	if err != nil {
		return nil, err
	}
	logCtx.Info("Discovered source documents.", "count", len(docs))
	if len(docs) == 0 {
		logCtx.Warn("No source documents found; skipping parse and sync.")
		summary.FinishedAt = time.Now().UTC()
		return summary, nil
	}

	// --- 1. Parse every source in parallel, health-tracking each run ---
	outcomes := make([]SourceOutcome, len(docs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.config.MaxParallelParses)
	for i, doc := range docs {
		eg.Go(func() error {
			outcomes[i] = o.processSource(gctx, doc)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	summary.Sources = outcomes

	// --- 2. Merge runs into the canonical tables ---
	runs := make([]*models.CatalogRunResult, 0, len(outcomes))
	for _, oc := range outcomes {
		runs = append(runs, oc.Result)
	}
	tables := aggregator.Merge(runs)
	summary.Conflicts = len(tables.Conflicts)
	o.archiveTables(ctx, tables)

	// --- 3. Reconcile the canonical tables into the remote store ---
	if o.config.SkipSync {
		logCtx.Info("Sync disabled for this run.")
		summary.FinishedAt = time.Now().UTC()
		return summary, nil
	}

	courseDocs, err := courseDocuments(o.config.CoursesCollection, tables)
	if err != nil {
		return nil, err
	}
	planDocs, err := planDocuments(o.config.DegreePlansCollection, tables)
	if err != nil {
		return nil, err
	}

	if summary.CoursesSync, err = o.engine.Reconcile(ctx, o.config.CoursesCollection, courseDocs); err != nil {
		return summary, err
	}
	if summary.PlansSync, err = o.engine.Reconcile(ctx, o.config.DegreePlansCollection, planDocs); err != nil {
		return summary, err
	}

	summary.FinishedAt = time.Now().UTC()
	logCtx.Info("Batch complete.",
		"sources", len(summary.Sources),
		"conflicts", summary.Conflicts,
		"coursesUpdated", len(summary.CoursesSync.Updated),
		"plansUpdated", len(summary.PlansSync.Updated),
	)
	return summary, nil
}

func (o *Orchestrator) discover() ([]source.Document, error) {
	if len(o.config.SourcePaths) > 0 {
		return source.FromPaths(o.config.SourcePaths), nil
	}
	return source.Discover(o.config.SourceDir, o.config.SourceExtension)
}

// processSource parses one document under the per-source timeout and runs
// the health analysis. All failure modes degrade to a reported result.
func (o *Orchestrator) processSource(ctx context.Context, doc source.Document) SourceOutcome {
	logCtx := slog.With("sourceFile", doc.Name)
	started := time.Now()

	result := o.parseWithTimeout(ctx, doc, logCtx)
	elapsed := time.Since(started)

	snapshot := health.Analyze(result, elapsed)
	trends, alerts := o.trackHealth(ctx, snapshot, logCtx)

	healthReport := report.NewHealthReport(snapshot, trends, alerts)
	o.archiver.ArchiveHealthReport(ctx, healthReport)
	for _, a := range alerts {
		logCtx.Warn("Health alert raised.", "type", a.Type, "severity", a.Severity, "message", a.Message)
	}

	return SourceOutcome{
		Source:   doc.Name,
		Result:   result,
		Snapshot: snapshot,
		Trends:   trends,
		Alerts:   alerts,
	}
}

// parseWithTimeout runs the parse and treats a per-source timeout as a
// parse failure, not a batch abort. The timeout is the only cancellation
// point in the pipeline.
func (o *Orchestrator) parseWithTimeout(ctx context.Context, doc source.Document, logCtx *slog.Logger) *models.CatalogRunResult {
	runCtx, cancel := context.WithTimeout(ctx, o.config.PerSourceTimeout)
	defer cancel()

	rawText, pageCount, err := source.Read(doc)
	if err != nil {
		logCtx.Error("Failed to read source; continuing with next.", "error", err)
		return failedResult(doc, err.Error())
	}

	strategy, fellBack := o.selector.Select(doc.CatalogDate)
	if fellBack {
		logCtx.Warn("No format generation covers this source date; using the latest strategy.",
			"catalogDate", doc.CatalogDate)
	}
	logCtx.Info("Parsing source.", "strategy", strategy.Version(), "pageCount", pageCount)

	done := make(chan *models.CatalogRunResult, 1)
	go func() {
		done <- strategy.Parse(rawText, pageCount, doc.Name)
	}()

	select {
	case result := <-done:
		result.CatalogDate = doc.CatalogDate
		if fellBack {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("source date %q matched no format generation; parsed with the latest strategy", doc.CatalogDate))
		}
		return result
	case <-runCtx.Done():
		logCtx.Error("Parse timed out; recording as failed source.", "timeout", o.config.PerSourceTimeout)
		return failedResult(doc, fmt.Sprintf("parse timed out after %s", o.config.PerSourceTimeout))
	}
}

// trackHealth serializes the history read/append for one sourceId and
// computes trends and alerts against the prior snapshots.
func (o *Orchestrator) trackHealth(ctx context.Context, snapshot models.HealthSnapshot, logCtx *slog.Logger) ([]models.Trend, []models.Alert) {
	mu := o.sourceMutex(snapshot.SourceID)
	mu.Lock()
	defer mu.Unlock()

	prior, err := o.history.Recent(ctx, snapshot.SourceID, 10)
	if err != nil {
		logCtx.Error("Failed to read health history; trends unavailable for this run.", "error", err)
		prior = nil
	}
	trends := health.DetectTrends(snapshot, prior)
	alerts := health.CheckAlerts(snapshot, prior)

	if err := o.history.Append(ctx, snapshot); err != nil {
		logCtx.Error("Failed to append health snapshot.", "error", err)
	}
	return trends, alerts
}

func (o *Orchestrator) sourceMutex(sourceID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.historyMu[sourceID] == nil {
		o.historyMu[sourceID] = &sync.Mutex{}
	}
	return o.historyMu[sourceID]
}

func (o *Orchestrator) archiveTables(ctx context.Context, tables *aggregator.CanonicalTables) {
	if o.archiver == nil {
		return
	}
	if raw, err := json.MarshalIndent(tables.Courses, "", "  "); err == nil {
		o.archiver.ArchiveCanonicalTable(ctx, "courses", raw)
	}
	if raw, err := json.MarshalIndent(tables.DegreePlans, "", "  "); err == nil {
		o.archiver.ArchiveCanonicalTable(ctx, "degree-plans", raw)
	}
}

func failedResult(doc source.Document, message string) *models.CatalogRunResult {
	return &models.CatalogRunResult{
		SourceFile:  doc.Name,
		CatalogDate: doc.CatalogDate,
		ParsedAt:    time.Now().UTC(),
		Courses:     map[string]*models.CourseRecord{},
		DegreePlans: map[string]*models.DegreePlanRecord{},
		Warnings:    []string{},
		Errors:      []string{message},
	}
}

// syncDocument builds the SyncableDocument for one canonical record.
// extractedAt changes on every parse even when nothing else did; keeping
// it in the payload would make every re-run rewrite every document, so it
// is dropped before hashing. SyncedAt on the stored side carries the
// freshness signal instead.
func syncDocument(collection, id string, record any) (models.SyncableDocument, error) {
	payload, err := syncer.AsPayload(record)
	if err != nil {
		return models.SyncableDocument{}, err
	}
	if prov, ok := payload["provenance"].(map[string]any); ok {
		delete(prov, "extractedAt")
	}
	hash, err := syncer.ContentHash(payload)
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

func courseDocuments(collection string, tables *aggregator.CanonicalTables) ([]models.SyncableDocument, error) {
	docs := make([]models.SyncableDocument, 0, len(tables.Courses))
	for code, record := range tables.Courses {
		doc, err := syncDocument(collection, code, record)
		if err != nil {
			return nil, fmt.Errorf("failed to build sync document for course %s: %w", code, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func planDocuments(collection string, tables *aggregator.CanonicalTables) ([]models.SyncableDocument, error) {
	docs := make([]models.SyncableDocument, 0, len(tables.DegreePlans))
	for id, record := range tables.DegreePlans {
		doc, err := syncDocument(collection, id, record)
		if err != nil {
			return nil, fmt.Errorf("failed to build sync document for degree plan %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
