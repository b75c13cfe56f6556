package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

func run(sourceFile, catalogDate string, courses ...*models.CourseRecord) *models.CatalogRunResult {
	r := &models.CatalogRunResult{
		SourceFile:  sourceFile,
		CatalogDate: catalogDate,
		ParsedAt:    time.Now().UTC(),
		Courses:     map[string]*models.CourseRecord{},
		DegreePlans: map[string]*models.DegreePlanRecord{},
	}
	for _, c := range courses {
		c.Provenance.SourceFile = sourceFile
		r.Courses[c.CourseCode] = c
	}
	return r
}

func TestMergeMostRecentSourceWins(t *testing.T) {
	older := run("catalog-2018-01.txt", "2018-01",
		&models.CourseRecord{CourseCode: "C715", Name: "Org Behavior", CompetencyUnits: 3})
	newer := run("catalog-2019-08.txt", "2019-08",
		&models.CourseRecord{CourseCode: "C715", Name: "Organizational Behavior", CompetencyUnits: 3})

	// Input order must not matter; catalog date decides.
	tables := Merge([]*models.CatalogRunResult{newer, older})

	require.Len(t, tables.Courses, 1)
	assert.Equal(t, "Organizational Behavior", tables.Courses["C715"].Name)
	assert.Equal(t, "catalog-2019-08.txt", tables.Courses["C715"].Provenance.SourceFile)

	require.Len(t, tables.Conflicts, 1)
	conflict := tables.Conflicts[0]
	assert.Equal(t, "C715", conflict.RecordKey)
	assert.Equal(t, "name", conflict.Field)
	assert.Equal(t, "Org Behavior", conflict.ExistingValue)
	assert.Equal(t, "Organizational Behavior", conflict.IncomingValue)
}

func TestMergeKeepsPopulatedFieldsOverEmptyOnes(t *testing.T) {
	older := run("catalog-2018-01.txt", "2018-01",
		&models.CourseRecord{CourseCode: "C715", Name: "Organizational Behavior",
			Description: "A long description only the older catalog carried.", CompetencyUnits: 3})
	newer := run("catalog-2019-08.txt", "2019-08",
		&models.CourseRecord{CourseCode: "C715", Name: "Organizational Behavior"})

	tables := Merge([]*models.CatalogRunResult{older, newer})

	merged := tables.Courses["C715"]
	assert.Equal(t, "A long description only the older catalog carried.", merged.Description)
	assert.Equal(t, 3, merged.CompetencyUnits)
	assert.Empty(t, tables.Conflicts, "empty incoming fields are gaps, not conflicts")
}

func TestMergeDegreePlans(t *testing.T) {
	older := run("catalog-2018-01.txt", "2018-01")
	older.DegreePlans["bs-it"] = &models.DegreePlanRecord{
		DegreeID: "bs-it", DegreeName: "Bachelor of Science in IT", DegreeType: "bachelor",
		Courses:    []models.DegreeCourseRef{{CourseCode: "C715", Kind: "required"}},
		Provenance: models.Provenance{SourceFile: "catalog-2018-01.txt"},
	}
	newer := run("catalog-2019-08.txt", "2019-08")
	newer.DegreePlans["bs-it"] = &models.DegreePlanRecord{
		DegreeID: "bs-it", DegreeName: "Bachelor of Science in Information Technology", DegreeType: "bachelor",
		TotalCompetencyUnits: 122,
		Courses: []models.DegreeCourseRef{
			{CourseCode: "C715", Kind: "required"},
			{CourseCode: "D072", Kind: "required"},
		},
		Provenance: models.Provenance{SourceFile: "catalog-2019-08.txt"},
	}

	tables := Merge([]*models.CatalogRunResult{older, newer})

	plan := tables.DegreePlans["bs-it"]
	require.NotNil(t, plan)
	assert.Equal(t, "Bachelor of Science in Information Technology", plan.DegreeName)
	assert.Len(t, plan.Courses, 2)
	require.Len(t, tables.Conflicts, 1)
	assert.Equal(t, "degreeName", tables.Conflicts[0].Field)
}

func TestMergeRecordsSourceRunsInDateOrder(t *testing.T) {
	a := run("catalog-2019-08.txt", "2019-08")
	b := run("catalog-2017-02.txt", "2017-02")
	c := run("catalog-2018-05.txt", "2018-05")

	tables := Merge([]*models.CatalogRunResult{a, b, c})
	assert.Equal(t, []string{"catalog-2017-02.txt", "catalog-2018-05.txt", "catalog-2019-08.txt"}, tables.SourceRuns)
}
