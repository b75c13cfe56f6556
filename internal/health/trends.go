package health

import (
	"fmt"
	"math"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

// Alert thresholds. Coverage floors fire regardless of trend; the
// format-change rule compares the current course count to the rolling
// average of the last three runs.
const (
	ControlNumberFloorPct     = 85.0
	DescriptionFloorPct       = 70.0
	FormatChangeDeviationPct  = 10.0
	formatChangeRollingWindow = 3
)

// trackedMetric describes one metric the trend detector follows.
// percentage metrics compare in coverage points; count metrics compare in
// relative percent. badness inverts the direction sense: a rising short-
// description count is degrading even though the raw value increased.
type trackedMetric struct {
	name       string
	percentage bool
	badness    bool
	value      func(models.HealthMetrics) float64
}

var trackedMetrics = []trackedMetric{
	{"controlNumberCoveragePct", true, false, func(m models.HealthMetrics) float64 { return m.ControlNumberCoveragePct }},
	{"descriptionCoveragePct", true, false, func(m models.HealthMetrics) float64 { return m.DescriptionCoveragePct }},
	{"competencyUnitCoveragePct", true, false, func(m models.HealthMetrics) float64 { return m.CompetencyUnitCoveragePct }},
	{"coursesFound", false, false, func(m models.HealthMetrics) float64 { return float64(m.CoursesFound) }},
	{"shortDescriptionCount", false, true, func(m models.HealthMetrics) float64 { return float64(m.ShortDescriptionCount) }},
	{"missingPlanCourseCount", false, true, func(m models.HealthMetrics) float64 { return float64(m.MissingPlanCourseCount) }},
}

// DetectTrends compares the current snapshot against the most recent prior
// snapshot for the same source. history is ordered newest first. With no
// prior snapshot there is nothing to compare and no trends are returned.
func DetectTrends(current models.HealthSnapshot, history []models.HealthSnapshot) []models.Trend {
	if len(history) == 0 {
		return nil
	}
	previous := history[0]

	var trends []models.Trend
	for _, tm := range trackedMetrics {
		cur := tm.value(current.Metrics)
		prev := tm.value(previous.Metrics)
		delta := deltaPct(cur, prev, tm.percentage)

		direction := models.TrendStable
		if math.Abs(delta) >= 1 {
			rising := delta > 0
			if rising != tm.badness {
				direction = models.TrendImproving
			} else {
				direction = models.TrendDegrading
			}
		}
		trends = append(trends, models.Trend{
			Metric:    tm.name,
			Direction: direction,
			Current:   cur,
			Previous:  prev,
			DeltaPct:  delta,
		})
	}
	return trends
}

// deltaPct is the change expressed in percent: coverage metrics compare in
// points, counts in relative percent of the previous value.
func deltaPct(cur, prev float64, percentage bool) float64 {
	if percentage {
		return cur - prev
	}
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return 100 * (cur - prev) / prev
}

// CheckAlerts evaluates the absolute-threshold and format-change rules.
// Floor alerts fire independently of trend. The format-change alert is the
// mechanism for catching a silent source layout change the parser
// mis-parses without raising an error: it fires when the current course
// count deviates from the rolling three-run average by more than 10%.
func CheckAlerts(current models.HealthSnapshot, history []models.HealthSnapshot) []models.Alert {
	var alerts []models.Alert

	if v := current.Metrics.ControlNumberCoveragePct; v < ControlNumberFloorPct {
		alerts = append(alerts, models.Alert{
			Type:      models.AlertTypeCoverageFloor,
			Severity:  models.AlertSeverityCritical,
			Metric:    "controlNumberCoveragePct",
			Message:   fmt.Sprintf("control number coverage %.1f%% is below the %.0f%% floor", v, ControlNumberFloorPct),
			Value:     v,
			Threshold: ControlNumberFloorPct,
		})
	}
	if v := current.Metrics.DescriptionCoveragePct; v < DescriptionFloorPct {
		alerts = append(alerts, models.Alert{
			Type:      models.AlertTypeCoverageFloor,
			Severity:  models.AlertSeverityWarning,
			Metric:    "descriptionCoveragePct",
			Message:   fmt.Sprintf("description coverage %.1f%% is below the %.0f%% floor", v, DescriptionFloorPct),
			Value:     v,
			Threshold: DescriptionFloorPct,
		})
	}

	if len(history) >= formatChangeRollingWindow {
		var sum float64
		for _, s := range history[:formatChangeRollingWindow] {
			sum += float64(s.Metrics.CoursesFound)
		}
		avg := sum / formatChangeRollingWindow
		if avg > 0 {
			deviation := 100 * math.Abs(float64(current.Metrics.CoursesFound)-avg) / avg
			if deviation > FormatChangeDeviationPct {
				alerts = append(alerts, models.Alert{
					Type:     models.AlertTypeFormatChange,
					Severity: models.AlertSeverityCritical,
					Metric:   "coursesFound",
					Message: fmt.Sprintf("course count %d deviates %.1f%% from the rolling %d-run average %.1f; possible source format change",
						current.Metrics.CoursesFound, deviation, formatChangeRollingWindow, avg),
					Value:     float64(current.Metrics.CoursesFound),
					Threshold: FormatChangeDeviationPct,
				})
			}
		}
	}
	return alerts
}
