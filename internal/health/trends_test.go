package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

func snapshot(metrics models.HealthMetrics) models.HealthSnapshot {
	return models.HealthSnapshot{
		SourceID:      "catalog-2019-08",
		CapturedAt:    time.Now().UTC(),
		ParserVersion: "modern@2.0.1",
		Metrics:       metrics,
	}
}

func trendFor(t *testing.T, trends []models.Trend, metric string) models.Trend {
	t.Helper()
	for _, tr := range trends {
		if tr.Metric == metric {
			return tr
		}
	}
	t.Fatalf("no trend computed for metric %q", metric)
	return models.Trend{}
}

func TestCoverageDropIsDegradingAndAlerts(t *testing.T) {
	previous := snapshot(models.HealthMetrics{ControlNumberCoveragePct: 96, CoursesFound: 100})
	current := snapshot(models.HealthMetrics{ControlNumberCoveragePct: 80, CoursesFound: 100})
	history := []models.HealthSnapshot{previous}

	trends := DetectTrends(current, history)
	tr := trendFor(t, trends, "controlNumberCoveragePct")
	assert.Equal(t, models.TrendDegrading, tr.Direction)
	assert.InDelta(t, -16, tr.DeltaPct, 0.001)

	alerts := CheckAlerts(current, history)
	require.NotEmpty(t, alerts)
	assert.Equal(t, models.AlertTypeCoverageFloor, alerts[0].Type)
	assert.Equal(t, "controlNumberCoveragePct", alerts[0].Metric)
	assert.Equal(t, 85.0, alerts[0].Threshold)
}

func TestSmallDeltaIsStable(t *testing.T) {
	previous := snapshot(models.HealthMetrics{ControlNumberCoveragePct: 96})
	current := snapshot(models.HealthMetrics{ControlNumberCoveragePct: 96.5})

	tr := trendFor(t, DetectTrends(current, []models.HealthSnapshot{previous}), "controlNumberCoveragePct")
	assert.Equal(t, models.TrendStable, tr.Direction)
}

func TestBadnessMetricDirectionIsInverted(t *testing.T) {
	previous := snapshot(models.HealthMetrics{ShortDescriptionCount: 2})
	current := snapshot(models.HealthMetrics{ShortDescriptionCount: 10})

	tr := trendFor(t, DetectTrends(current, []models.HealthSnapshot{previous}), "shortDescriptionCount")
	assert.Equal(t, models.TrendDegrading, tr.Direction, "a rising short-description count is a regression")

	recovered := snapshot(models.HealthMetrics{ShortDescriptionCount: 1})
	tr = trendFor(t, DetectTrends(recovered, []models.HealthSnapshot{current}), "shortDescriptionCount")
	assert.Equal(t, models.TrendImproving, tr.Direction)
}

func TestNoHistoryMeansNoTrends(t *testing.T) {
	current := snapshot(models.HealthMetrics{ControlNumberCoveragePct: 90})
	assert.Nil(t, DetectTrends(current, nil))
}

func TestFormatChangeAlert(t *testing.T) {
	history := []models.HealthSnapshot{
		snapshot(models.HealthMetrics{CoursesFound: 100, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
		snapshot(models.HealthMetrics{CoursesFound: 102, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
		snapshot(models.HealthMetrics{CoursesFound: 98, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
	}
	current := snapshot(models.HealthMetrics{CoursesFound: 60, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90})

	alerts := CheckAlerts(current, history)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeFormatChange, alerts[0].Type)
	assert.Equal(t, models.AlertSeverityCritical, alerts[0].Severity)
}

func TestFormatChangeNeedsThreePriorRuns(t *testing.T) {
	history := []models.HealthSnapshot{
		snapshot(models.HealthMetrics{CoursesFound: 100, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
		snapshot(models.HealthMetrics{CoursesFound: 100, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
	}
	current := snapshot(models.HealthMetrics{CoursesFound: 60, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90})

	assert.Empty(t, CheckAlerts(current, history))
}

func TestStableCourseCountRaisesNoFormatAlert(t *testing.T) {
	history := []models.HealthSnapshot{
		snapshot(models.HealthMetrics{CoursesFound: 100, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
		snapshot(models.HealthMetrics{CoursesFound: 100, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
		snapshot(models.HealthMetrics{CoursesFound: 100, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90}),
	}
	current := snapshot(models.HealthMetrics{CoursesFound: 105, ControlNumberCoveragePct: 95, DescriptionCoveragePct: 90})

	assert.Empty(t, CheckAlerts(current, history))
}
