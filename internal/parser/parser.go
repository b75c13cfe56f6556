// Package parser turns raw catalog document text into structured
// CatalogRunResults. One Strategy exists per source-format generation;
// strategies share the same multi-pass engine and differ only in the
// pattern set they run. Parsing never raises for malformed input: every
// failure is recorded on the result and the salvageable passes still run.
package parser

import (
	"fmt"
	"sort"
	"time"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
	"github.com/Lllllllleong/catalogdocumentflow/internal/patterns"
)

// Strategy parses sources belonging to one format generation.
type Strategy struct {
	patterns  *patterns.PatternSet
	overrides OverrideTable
	now       func() time.Time
}

// New builds a Strategy for the given pattern set and override table. The
// override table may be empty but not mutated afterwards.
func New(ps *patterns.PatternSet, overrides OverrideTable) *Strategy {
	if overrides == nil {
		overrides = OverrideTable{}
	}
	return &Strategy{patterns: ps, overrides: overrides, now: time.Now}
}

// WithClock replaces the strategy's clock. Parsing the same text with the
// same clock is fully deterministic, which the tests rely on.
func (s *Strategy) WithClock(now func() time.Time) *Strategy {
	s.now = now
	return s
}

// Version identifies the strategy for provenance and health tracking.
func (s *Strategy) Version() string {
	return fmt.Sprintf("%s@%s", s.patterns.Descriptor.Identifier, s.patterns.Descriptor.Version())
}

// Selector picks the Strategy for a source document date. It never fails
// to return a strategy: unknown or missing dates fall back to the latest
// format generation.
type Selector struct {
	registry  *patterns.Registry
	overrides OverrideTable
}

// NewSelector builds a Selector over every registered format generation.
func NewSelector(registry *patterns.Registry, overrides OverrideTable) *Selector {
	return &Selector{registry: registry, overrides: overrides}
}

// Select returns the strategy covering the "YYYY-MM" catalog period and
// whether the latest-generation fallback was taken.
func (sel *Selector) Select(period string) (*Strategy, bool) {
	ps, fellBack := sel.registry.Select(period)
	return New(ps, sel.overrides), fellBack
}

// Parse runs the multi-pass extraction over one source document. Later
// passes only fill gaps left by earlier, higher-confidence passes; they
// never overwrite an already-populated field. The returned result is
// complete even on total failure: empty maps, populated Errors and
// zero-filled statistics.
func (s *Strategy) Parse(rawText string, pageCount int, sourceFile string) (result *models.CatalogRunResult) {
	parsedAt := s.now().UTC()
	result = &models.CatalogRunResult{
		SourceFile:    sourceFile,
		PageCount:     pageCount,
		ParsedAt:      parsedAt,
		ParserVersion: s.Version(),
		Courses:       map[string]*models.CourseRecord{},
		DegreePlans:   map[string]*models.DegreePlanRecord{},
		Warnings:      []string{},
		Errors:        []string{},
	}

	// A panic in any pass is a parser bug, not a batch-fatal condition:
	// report it on the result and keep whatever was extracted so far.
	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("parser panic: %v", r))
		}
		s.finalize(result)
	}()

	if rawText == "" {
		result.Errors = append(result.Errors, fmt.Sprintf("source %s is empty or unreadable", sourceFile))
		return result
	}

	run := &parseRun{
		strategy: s,
		text:     rawText,
		result:   result,
	}

	lookup := run.extractPackedTable()   // pass 1
	run.applyOverrides(lookup)           // pass 2
	run.extractDetailedCourses(lookup)   // pass 3
	run.extractCourseListings(lookup)    // pass 4
	run.extractDegreePlans(lookup)       // pass 5
	run.backfillKnownCourses(lookup)     // pass 6

	return result
}

// finalize computes run statistics from the extracted maps.
func (s *Strategy) finalize(result *models.CatalogRunResult) {
	stats := models.RunStatistics{
		CoursesFound:     len(result.Courses),
		DegreePlansFound: len(result.DegreePlans),
	}
	if stats.CoursesFound > 0 {
		var withControl, withUnits int
		for _, c := range result.Courses {
			if c.ControlNumber != "" {
				withControl++
			}
			if c.CompetencyUnits > 0 {
				withUnits++
			}
		}
		stats.ControlNumberCoveragePct = 100 * float64(withControl) / float64(stats.CoursesFound)
		stats.CompetencyUnitCoveragePct = 100 * float64(withUnits) / float64(stats.CoursesFound)
	}
	result.Statistics = stats
}

// sortedCodes returns override table keys in deterministic order.
func (t OverrideTable) sortedCodes() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
