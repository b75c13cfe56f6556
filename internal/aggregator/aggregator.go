// Package aggregator merges CatalogRunResults from many parse runs into
// the two canonical cross-version tables: unique courses and unique degree
// programs. Duplicates resolve as "most recent source wins"; every
// conflicting field is recorded so resolution is inspectable, never a
// silent overwrite.
package aggregator

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

// Conflict records one field where two sources disagreed. The winning
// value is the one from IncomingSource, the more recent catalog.
type Conflict struct {
	RecordKey      string `json:"recordKey"`
	Field          string `json:"field"`
	ExistingValue  string `json:"existingValue"`
	IncomingValue  string `json:"incomingValue"`
	ExistingSource string `json:"existingSource"`
	IncomingSource string `json:"incomingSource"`
}

// CanonicalTables is the aggregator's output: the de-duplicated course and
// degree-program datasets plus the conflict log from merging.
type CanonicalTables struct {
	Courses     map[string]*models.CourseRecord     `json:"courses"`
	DegreePlans map[string]*models.DegreePlanRecord `json:"degreePlans"`
	Conflicts   []Conflict                          `json:"conflicts,omitempty"`
	SourceRuns  []string                            `json:"sourceRuns"`
	GeneratedAt time.Time                           `json:"generatedAt"`
}

// Merge folds parse runs into canonical tables. Runs are ordered by
// catalog date (ascending) so that later runs overwrite earlier ones;
// runs with equal dates fall back to source file name order to keep the
// merge deterministic.
func Merge(runs []*models.CatalogRunResult) *CanonicalTables {
	ordered := make([]*models.CatalogRunResult, len(runs))
	copy(ordered, runs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CatalogDate != ordered[j].CatalogDate {
			return ordered[i].CatalogDate < ordered[j].CatalogDate
		}
		return ordered[i].SourceFile < ordered[j].SourceFile
	})

	tables := &CanonicalTables{
		Courses:     map[string]*models.CourseRecord{},
		DegreePlans: map[string]*models.DegreePlanRecord{},
		GeneratedAt: time.Now().UTC(),
	}

	for _, run := range ordered {
		tables.SourceRuns = append(tables.SourceRuns, run.SourceFile)
		mergeCourses(tables, run)
		mergeDegreePlans(tables, run)
	}

	slog.Info("Canonical tables built.",
		"runs", len(ordered),
		"courses", len(tables.Courses),
		"degreePlans", len(tables.DegreePlans),
		"conflicts", len(tables.Conflicts),
	)
	return tables
}

func mergeCourses(tables *CanonicalTables, run *models.CatalogRunResult) {
	for _, code := range sortedKeys(run.Courses) {
		incoming := run.Courses[code]
		existing, ok := tables.Courses[code]
		if !ok {
			tables.Courses[code] = incoming
			continue
		}
		tables.Conflicts = append(tables.Conflicts, courseConflicts(existing, incoming)...)
		tables.Courses[code] = mergedCourse(existing, incoming)
	}
}

// mergedCourse applies most-recent-source-wins while refusing to replace a
// populated field with an empty one from the newer source.
func mergedCourse(existing, incoming *models.CourseRecord) *models.CourseRecord {
	merged := *incoming
	if merged.Name == "" {
		merged.Name = existing.Name
	}
	if merged.ControlNumber == "" {
		merged.ControlNumber = existing.ControlNumber
	}
	if merged.Description == "" {
		merged.Description = existing.Description
	}
	if merged.CompetencyUnits == 0 {
		merged.CompetencyUnits = existing.CompetencyUnits
	}
	if len(merged.Prerequisites) == 0 {
		merged.Prerequisites = existing.Prerequisites
	}
	if merged.Level == "" {
		merged.Level = existing.Level
	}
	if merged.AcademicArea == "" {
		merged.AcademicArea = existing.AcademicArea
	}
	return &merged
}

func courseConflicts(existing, incoming *models.CourseRecord) []Conflict {
	var out []Conflict
	record := func(field, a, b string) {
		if a != "" && b != "" && a != b {
			out = append(out, Conflict{
				RecordKey:      incoming.CourseCode,
				Field:          field,
				ExistingValue:  a,
				IncomingValue:  b,
				ExistingSource: existing.Provenance.SourceFile,
				IncomingSource: incoming.Provenance.SourceFile,
			})
		}
	}
	record("name", existing.Name, incoming.Name)
	record("controlNumber", existing.ControlNumber, incoming.ControlNumber)
	if existing.CompetencyUnits != 0 && incoming.CompetencyUnits != 0 && existing.CompetencyUnits != incoming.CompetencyUnits {
		record("competencyUnits",
			fmt.Sprintf("%d", existing.CompetencyUnits),
			fmt.Sprintf("%d", incoming.CompetencyUnits))
	}
	return out
}

func mergeDegreePlans(tables *CanonicalTables, run *models.CatalogRunResult) {
	for _, id := range sortedKeys(run.DegreePlans) {
		incoming := run.DegreePlans[id]
		existing, ok := tables.DegreePlans[id]
		if !ok {
			tables.DegreePlans[id] = incoming
			continue
		}
		if existing.DegreeName != incoming.DegreeName {
			tables.Conflicts = append(tables.Conflicts, Conflict{
				RecordKey:      id,
				Field:          "degreeName",
				ExistingValue:  existing.DegreeName,
				IncomingValue:  incoming.DegreeName,
				ExistingSource: existing.Provenance.SourceFile,
				IncomingSource: incoming.Provenance.SourceFile,
			})
		}
		merged := *incoming
		if merged.College == "" {
			merged.College = existing.College
		}
		if merged.TotalCompetencyUnits == 0 {
			merged.TotalCompetencyUnits = existing.TotalCompetencyUnits
		}
		if len(merged.Courses) == 0 {
			merged.Courses = existing.Courses
		}
		tables.DegreePlans[id] = &merged
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
