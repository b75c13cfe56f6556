// Package health scores each parse run, persists an append-only snapshot
// history per source, and compares runs over time to flag regressions.
// It is purely an observability sink: it never mutates its input and never
// blocks the parse pipeline.
package health

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

// SourceIDOf derives the stable history key for a source document. The
// same file re-parsed later must map to the same ID or trend computation
// falls apart.
func SourceIDOf(sourceFile string) string {
	base := filepath.Base(sourceFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Analyze computes the quality metrics for one parse run. All metrics
// derive purely from the CatalogRunResult; elapsed is the wall-clock parse
// duration supplied by the caller.
func Analyze(result *models.CatalogRunResult, elapsed time.Duration) models.HealthSnapshot {
	m := models.HealthMetrics{
		CoursesFound:              len(result.Courses),
		DegreePlansFound:          len(result.DegreePlans),
		ControlNumberCoveragePct:  result.Statistics.ControlNumberCoveragePct,
		CompetencyUnitCoveragePct: result.Statistics.CompetencyUnitCoveragePct,
		ElapsedMs:                 elapsed.Milliseconds(),
	}

	var withDescription, descLenSum int
	for _, c := range result.Courses {
		if c.Description == "" {
			continue
		}
		withDescription++
		descLenSum += len(c.Description)
		if len(c.Description) < 50 {
			m.ShortDescriptionCount++
		}
	}
	if m.CoursesFound > 0 {
		m.DescriptionCoveragePct = 100 * float64(withDescription) / float64(m.CoursesFound)
	}
	if withDescription > 0 {
		m.AvgDescriptionLength = float64(descLenSum) / float64(withDescription)
	}

	missing := map[string]bool{}
	for _, plan := range result.DegreePlans {
		for _, ref := range plan.Courses {
			if _, ok := result.Courses[ref.CourseCode]; !ok {
				missing[ref.CourseCode] = true
			}
		}
	}
	m.MissingPlanCourseCount = len(missing)

	if result.PageCount > 0 {
		m.CoursesPerPage = float64(m.CoursesFound) / float64(result.PageCount)
	}

	return models.HealthSnapshot{
		SourceID:      SourceIDOf(result.SourceFile),
		CapturedAt:    time.Now().UTC(),
		ParserVersion: result.ParserVersion,
		Metrics:       m,
		Warnings:      result.Warnings,
	}
}
