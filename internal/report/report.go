// Package report renders the health report surface: a structured JSON
// snapshot for dashboards plus a short human-readable summary, with
// optional archival to GCS.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

// HealthReport is the JSON document published per source per run.
type HealthReport struct {
	SourceID    string                `json:"sourceId"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Snapshot    models.HealthSnapshot `json:"snapshot"`
	Trends      []models.Trend        `json:"trends,omitempty"`
	Alerts      []models.Alert        `json:"alerts,omitempty"`
}

// NewHealthReport assembles the report for one analyzed run.
func NewHealthReport(snapshot models.HealthSnapshot, trends []models.Trend, alerts []models.Alert) *HealthReport {
	return &HealthReport{
		SourceID:    snapshot.SourceID,
		GeneratedAt: time.Now().UTC(),
		Snapshot:    snapshot,
		Trends:      trends,
		Alerts:      alerts,
	}
}

// JSON renders the report for the dashboard surface.
func (r *HealthReport) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal health report for %s: %w", r.SourceID, err)
	}
	return out, nil
}

// Summary renders the human-readable form.
func (r *HealthReport) Summary() string {
	var b strings.Builder
	m := r.Snapshot.Metrics
	fmt.Fprintf(&b, "Health report for %s (parser %s)\n", r.SourceID, r.Snapshot.ParserVersion)
	fmt.Fprintf(&b, "  courses: %d  degree plans: %d  courses/page: %.1f\n", m.CoursesFound, m.DegreePlansFound, m.CoursesPerPage)
	fmt.Fprintf(&b, "  coverage: control numbers %.1f%%, descriptions %.1f%%, competency units %.1f%%\n",
		m.ControlNumberCoveragePct, m.DescriptionCoveragePct, m.CompetencyUnitCoveragePct)
	fmt.Fprintf(&b, "  short descriptions: %d  unresolved plan references: %d  elapsed: %dms\n",
		m.ShortDescriptionCount, m.MissingPlanCourseCount, m.ElapsedMs)

	if len(r.Trends) == 0 {
		b.WriteString("  trends: none (insufficient history)\n")
	}
	for _, t := range r.Trends {
		if t.Direction == models.TrendStable {
			continue
		}
		fmt.Fprintf(&b, "  trend: %s %s (%.1f -> %.1f)\n", t.Metric, t.Direction, t.Previous, t.Current)
	}
	for _, a := range r.Alerts {
		fmt.Fprintf(&b, "  ALERT [%s] %s\n", a.Severity, a.Message)
	}
	return b.String()
}
