package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/catalogdocumentflow/internal/batch"
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

var (
	version    = "dev"
	jsonOutput bool
)

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	rootCmd := &cobra.Command{
		Use:   "catalogflow",
		Short: "Institutional catalog extraction and sync pipeline",
		Long: `Catalogflow parses periodically-published institutional catalog
documents, tracks extraction quality over time, and reconciles the
resulting course and degree-plan tables into Firestore using
content-hash diffing.`,
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("catalogflow %s\n", version)
		},
	})

	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newHealthCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newParseCmd() *cobra.Command {
	var (
		overridePath string
		formatsPath  string
	)
	cmd := &cobra.Command{
		Use:   "parse <source-file>",
		Short: "Parse one catalog source and print the run result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parser.LoadOverrides(overridePath)
			if err != nil {
				return err
			}
			registry, err := patterns.LoadRegistry(formatsPath)
			if err != nil {
				return err
			}

			docs := source.FromPaths(args)
			doc := docs[0]
			rawText, pageCount, err := source.Read(doc)
			if err != nil {
				return err
			}

			strategy, fellBack := parser.NewSelector(registry, overrides).Select(doc.CatalogDate)
			if fellBack {
				slog.Warn("No format generation covers this source date; using the latest strategy.",
					"catalogDate", doc.CatalogDate)
			}
			result := strategy.Parse(rawText, pageCount, doc.Name)
			result.CatalogDate = doc.CatalogDate

			if jsonOutput {
				return printJSON(result)
			}
			fmt.Printf("parsed %s with %s: %d courses, %d degree plans, %d warnings, %d errors\n",
				doc.Name, strategy.Version(),
				result.Statistics.CoursesFound, result.Statistics.DegreePlansFound,
				len(result.Warnings), len(result.Errors))
			fmt.Printf("coverage: control numbers %.1f%%, competency units %.1f%%\n",
				result.Statistics.ControlNumberCoveragePct,
				result.Statistics.CompetencyUnitCoveragePct)
			return nil
		},
	}
	cmd.Flags().StringVar(&overridePath, "overrides", "", "Path to the manual override table (YAML)")
	cmd.Flags().StringVar(&formatsPath, "formats", "", "Path to an additional format registry (YAML)")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		dir      string
		ext      string
		dryRun   bool
		skipSync bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "batch [source-file...]",
		Short: "Run the full pipeline: parse, analyze, aggregate, sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			config := batch.ConfigFromEnv()
			if dir != "" {
				config.SourceDir = dir
			}
			if ext != "" {
				config.SourceExtension = ext
			}
			config.SourcePaths = args
			config.SkipSync = skipSync
			if timeout > 0 {
				config.PerSourceTimeout = timeout
			}

			remote, err := buildStore(ctx, dryRun, skipSync)
			if err != nil {
				return err
			}

			orchestrator, err := batch.New(ctx, config, remote)
			if err != nil {
				return err
			}
			defer orchestrator.Close()

			summary, err := orchestrator.Run(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(summary)
			}
			printSummary(summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Source directory (default $CATALOG_SOURCE_DIR)")
	cmd.Flags().StringVar(&ext, "ext", "", "Source file extension (default .txt)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Reconcile against an in-memory store instead of Firestore")
	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Parse and analyze only; skip reconciliation")
	cmd.Flags().DurationVar(&timeout, "source-timeout", 0, "Per-source parse timeout")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var (
		collection string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "sync <table-file>",
		Short: "Reconcile an exported canonical table into the remote store",
		Long: `Sync reads a canonical table export (a JSON object mapping document
ID to record, as archived by the batch command) and reconciles it into
the target collection using content-hash diffing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read table file %s: %w", args[0], err)
			}
			var records map[string]map[string]any
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("failed to parse table file %s: %w", args[0], err)
			}

			docs := make([]models.SyncableDocument, 0, len(records))
			for id, payload := range records {
				// extractedAt changes every parse; keeping it in the hash
				// would rewrite every document on each run.
				if prov, ok := payload["provenance"].(map[string]any); ok {
					delete(prov, "extractedAt")
				}
				hash, err := syncer.ContentHash(payload)
				if err != nil {
					return fmt.Errorf("failed to hash document %s: %w", id, err)
				}
				docs = append(docs, models.SyncableDocument{
					CollectionName: collection,
					DocumentID:     id,
					Payload:        payload,
					ContentHash:    hash,
				})
			}

			remote, err := buildStore(ctx, dryRun, false)
			if err != nil {
				return err
			}
			result, err := syncer.NewEngine(remote, syncer.DefaultConfig()).Reconcile(ctx, collection, docs)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(result)
			}
			fmt.Printf("%s: %d updated, %d skipped, %d deleted, %d failed\n",
				collection, len(result.Updated), len(result.Skipped), len(result.Deleted), len(result.Failed))
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "courses", "Target collection")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Reconcile against an in-memory store instead of Firestore")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "health <source-id>",
		Short: "Print the health report for a source from recorded history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sourceID := args[0]

			history, err := health.OpenHistory(dbPath)
			if err != nil {
				return err
			}
			defer history.Close()

			snapshots, err := history.Recent(ctx, sourceID, limit)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				return fmt.Errorf("no health history recorded for %q", sourceID)
			}

			current, prior := snapshots[0], snapshots[1:]
			healthReport := report.NewHealthReport(current,
				health.DetectTrends(current, prior),
				health.CheckAlerts(current, prior))

			if jsonOutput {
				return printJSON(healthReport)
			}
			fmt.Print(healthReport.Summary())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", gcp.GetEnv("CATALOG_HEALTH_DB", "catalog-health.db"), "Path to the health history database")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of historical snapshots to consider")
	return cmd
}

// buildStore picks the remote store implementation. Dry runs and
// sync-skipping runs never need Firestore credentials.
func buildStore(ctx context.Context, dryRun, skipSync bool) (store.RemoteStore, error) {
	if dryRun || skipSync {
		return store.NewMemoryStore(), nil
	}
	projectID := gcp.GetEnv("PROJECT_ID", "")
	client, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return store.NewFirestoreStore(client), nil
}

func printSummary(summary *batch.Summary) {
	fmt.Printf("batch %s: %d sources in %s\n",
		summary.RunID, len(summary.Sources), summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	for _, oc := range summary.Sources {
		status := "ok"
		if len(oc.Result.Errors) > 0 {
			status = "FAILED"
		}
		fmt.Printf("  %-40s %s  courses=%d plans=%d alerts=%d\n",
			oc.Source, status,
			oc.Result.Statistics.CoursesFound,
			oc.Result.Statistics.DegreePlansFound,
			len(oc.Alerts))
	}
	fmt.Printf("conflicts recorded: %d\n", summary.Conflicts)
	if summary.CoursesSync != nil {
		fmt.Printf("courses sync: %d updated, %d skipped, %d deleted, %d failed\n",
			len(summary.CoursesSync.Updated), len(summary.CoursesSync.Skipped),
			len(summary.CoursesSync.Deleted), len(summary.CoursesSync.Failed))
	}
	if summary.PlansSync != nil {
		fmt.Printf("degree plans sync: %d updated, %d skipped, %d deleted, %d failed\n",
			len(summary.PlansSync.Updated), len(summary.PlansSync.Skipped),
			len(summary.PlansSync.Deleted), len(summary.PlansSync.Failed))
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
