package health

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

func openTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := OpenHistory(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestHistory(t)

	base := time.Date(2019, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.Append(ctx, models.HealthSnapshot{
			SourceID:      "catalog-2019-08",
			CapturedAt:    base.Add(time.Duration(i) * time.Hour),
			ParserVersion: "modern@2.0.1",
			Metrics:       models.HealthMetrics{CoursesFound: 100 + i, ControlNumberCoveragePct: 95.5},
			Warnings:      []string{"divergent titles for C715"},
		})
		require.NoError(t, err)
	}

	snapshots, err := store.Recent(ctx, "catalog-2019-08", 10)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)

	// Newest first.
	assert.Equal(t, 102, snapshots[0].Metrics.CoursesFound)
	assert.Equal(t, 100, snapshots[2].Metrics.CoursesFound)
	assert.Equal(t, base.Add(2*time.Hour), snapshots[0].CapturedAt)
	assert.Equal(t, "modern@2.0.1", snapshots[0].ParserVersion)
	assert.Equal(t, 95.5, snapshots[0].Metrics.ControlNumberCoveragePct)
	assert.Equal(t, []string{"divergent titles for C715"}, snapshots[0].Warnings)
}

func TestHistoryLimitAndIsolation(t *testing.T) {
	ctx := context.Background()
	store := openTestHistory(t)

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, models.HealthSnapshot{
			SourceID:   "catalog-2020-01",
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
			Metrics:    models.HealthMetrics{CoursesFound: i},
		}))
	}
	require.NoError(t, store.Append(ctx, models.HealthSnapshot{
		SourceID:   "catalog-2020-06",
		CapturedAt: base,
	}))

	snapshots, err := store.Recent(ctx, "catalog-2020-01", 2)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 4, snapshots[0].Metrics.CoursesFound)
	assert.Equal(t, 3, snapshots[1].Metrics.CoursesFound)

	other, err := store.Recent(ctx, "catalog-2020-06", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestHistoryEmptyIsNotAnError(t *testing.T) {
	store := openTestHistory(t)

	snapshots, err := store.Recent(context.Background(), "never-seen", 10)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
