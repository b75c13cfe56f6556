package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/catalogdocumentflow/internal/store"
)

const fixtureCatalog = `Institutional Catalog

College of Business

Bachelor of Science in Business Administration
120 total competency units
C715 - Organizational Behavior [3]

Course Control Listing
MGMT 3000C715Organizational Behavior31
ACCT 2010C213Accounting for Decision Makers32

Course Descriptions

C715 - Organizational Behavior
This course covers organizational behavior and management principles in
depth, including motivation, team dynamics, and leadership practice.
Prerequisite: C213.

C213 - Accounting for Decision Makers
An introduction to accounting concepts managers rely on when reading
financial statements and planning budgets across an organization.
`

func fixtureConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog-2018-01.txt"), []byte(fixtureCatalog), 0o644))
	return Config{
		SourceDir:             dir,
		SourceExtension:       ".txt",
		HistoryPath:           filepath.Join(t.TempDir(), "health.db"),
		CoursesCollection:     "courses",
		DegreePlansCollection: "degreePlans",
		MaxParallelParses:     2,
		PerSourceTimeout:      30 * time.Second,
	}
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemoryStore()

	orch, err := New(ctx, fixtureConfig(t), remote)
	require.NoError(t, err)
	defer orch.Close()

	summary, err := orch.Run(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Sources, 1)
	require.NotNil(t, summary.CoursesSync)

	outcome := summary.Sources[0]
	assert.Equal(t, "catalog-2018-01.txt", outcome.Source)
	assert.Empty(t, outcome.Result.Errors)
	assert.Equal(t, "2018-01", outcome.Result.CatalogDate)
	assert.Nil(t, outcome.Trends, "first run has no history to compare against")

	courseIDs, err := remote.ListIDs(ctx, "courses")
	require.NoError(t, err)
	assert.Contains(t, courseIDs, "C715")
	assert.Contains(t, courseIDs, "C213")

	planIDs, err := remote.ListIDs(ctx, "degreePlans")
	require.NoError(t, err)
	assert.Equal(t, []string{"bachelor-of-science-in-business-administration"}, planIDs)
}

func TestRunSecondPassPerformsNoWrites(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemoryStore()
	config := fixtureConfig(t)

	orch, err := New(ctx, config, remote)
	require.NoError(t, err)
	defer orch.Close()

	_, err = orch.Run(ctx)
	require.NoError(t, err)

	remote.ResetCounters()
	summary, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, remote.SetCalls, "unchanged sources must reconcile to zero writes")
	assert.Zero(t, remote.DeleteCalls)
	assert.NotNil(t, summary.CoursesSync)
	assert.Empty(t, summary.CoursesSync.Updated)

	// The second run now has history, so trends are computed.
	assert.NotNil(t, summary.Sources[0].Trends)
}

func TestRunSkipSyncLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemoryStore()
	config := fixtureConfig(t)
	config.SkipSync = true

	orch, err := New(ctx, config, remote)
	require.NoError(t, err)
	defer orch.Close()

	summary, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, summary.CoursesSync)
	assert.Zero(t, remote.SetCalls)
}

func TestRunEmptySourceDirSkipsSync(t *testing.T) {
	ctx := context.Background()
	config := fixtureConfig(t)
	config.SourceDir = t.TempDir()

	orch, err := New(ctx, config, store.NewMemoryStore())
	require.NoError(t, err)
	defer orch.Close()

	summary, err := orch.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Sources)
	assert.Nil(t, summary.CoursesSync)
}

func TestRunUnreadableSourceDegradesToFailedResult(t *testing.T) {
	ctx := context.Background()
	config := fixtureConfig(t)
	config.SourceDir = ""
	config.SourcePaths = []string{filepath.Join(t.TempDir(), "absent-2018-01.txt")}

	orch, err := New(ctx, config, store.NewMemoryStore())
	require.NoError(t, err)
	defer orch.Close()

	summary, err := orch.Run(ctx)
	require.NoError(t, err, "a missing source is a per-source failure, not a batch abort")
	require.Len(t, summary.Sources, 1)
	assert.NotEmpty(t, summary.Sources[0].Result.Errors)
	assert.Zero(t, summary.Sources[0].Snapshot.Metrics.CoursesFound)
}
