package models

import "time"

// HealthMetrics are the per-run quality measurements computed by the
// health analyzer. All values derive purely from a CatalogRunResult.
type HealthMetrics struct {
	CoursesFound              int     `json:"coursesFound"`
	DegreePlansFound          int     `json:"degreePlansFound"`
	ControlNumberCoveragePct  float64 `json:"controlNumberCoveragePct"`
	CompetencyUnitCoveragePct float64 `json:"competencyUnitCoveragePct"`
	DescriptionCoveragePct    float64 `json:"descriptionCoveragePct"`
	AvgDescriptionLength      float64 `json:"avgDescriptionLength"`
	ShortDescriptionCount     int     `json:"shortDescriptionCount"`
	MissingPlanCourseCount    int     `json:"missingPlanCourseCount"`
	CoursesPerPage            float64 `json:"coursesPerPage"`
	ElapsedMs                 int64   `json:"elapsedMs"`
}

// HealthSnapshot is one entry in the append-only per-source health history.
// Snapshots are never mutated after capture.
type HealthSnapshot struct {
	SourceID      string        `json:"sourceId"`
	CapturedAt    time.Time     `json:"capturedAt"`
	ParserVersion string        `json:"parserVersion"`
	Metrics       HealthMetrics `json:"metrics"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// Trend directions.
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDegrading = "degrading"
)

// Trend compares one metric between the current snapshot and the most
// recent prior snapshot for the same source.
type Trend struct {
	Metric    string  `json:"metric"`
	Direction string  `json:"direction"`
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
	DeltaPct  float64 `json:"deltaPct"`
}

// Alert severities and types.
const (
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"

	AlertTypeCoverageFloor = "coverage_floor"
	AlertTypeFormatChange  = "format_change"
)

// Alert is an operational signal raised by the health analyzer. Alerts are
// observability output only; they never block the parse pipeline.
type Alert struct {
	Type      string  `json:"type"`
	Severity  string  `json:"severity"`
	Metric    string  `json:"metric"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}
