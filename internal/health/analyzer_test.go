package health

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

func TestSourceIDOf(t *testing.T) {
	assert.Equal(t, "catalog-2019-08", SourceIDOf("/data/catalogs/catalog-2019-08.txt"))
	assert.Equal(t, "catalog-2019-08", SourceIDOf("catalog-2019-08.pdf"))
	assert.Equal(t, "catalog-2019-08", SourceIDOf("catalog-2019-08"))
}

func TestAnalyzeMetrics(t *testing.T) {
	result := &models.CatalogRunResult{
		SourceFile: "catalog-2019-08.txt",
		PageCount:  4,
		Courses: map[string]*models.CourseRecord{
			"C715": {CourseCode: "C715", Description: strings.Repeat("x", 120)},
			"C213": {CourseCode: "C213", Description: "too short"},
			"QBT1": {CourseCode: "QBT1"},
		},
		DegreePlans: map[string]*models.DegreePlanRecord{
			"bs-business-administration": {
				DegreeID: "bs-business-administration",
				Courses: []models.DegreeCourseRef{
					{CourseCode: "C715", Kind: models.CourseKindRequired},
					{CourseCode: "C999", Kind: models.CourseKindRequired},
					{CourseCode: "C999", Kind: models.CourseKindElective},
				},
			},
		},
		Statistics: models.RunStatistics{
			ControlNumberCoveragePct:  66.7,
			CompetencyUnitCoveragePct: 100,
		},
		Warnings: []string{"divergent titles for C715"},
	}

	snap := Analyze(result, 250*time.Millisecond)

	assert.Equal(t, "catalog-2019-08", snap.SourceID)
	assert.Equal(t, 3, snap.Metrics.CoursesFound)
	assert.Equal(t, 1, snap.Metrics.DegreePlansFound)
	assert.Equal(t, 66.7, snap.Metrics.ControlNumberCoveragePct)
	assert.InDelta(t, 66.666, snap.Metrics.DescriptionCoveragePct, 0.01)
	assert.InDelta(t, 64.5, snap.Metrics.AvgDescriptionLength, 0.01)
	assert.Equal(t, 1, snap.Metrics.ShortDescriptionCount)
	// C999 appears twice in the plan but counts once.
	assert.Equal(t, 1, snap.Metrics.MissingPlanCourseCount)
	assert.InDelta(t, 0.75, snap.Metrics.CoursesPerPage, 0.001)
	assert.Equal(t, int64(250), snap.Metrics.ElapsedMs)
	assert.Equal(t, result.Warnings, snap.Warnings)
}

func TestAnalyzeEmptyResult(t *testing.T) {
	result := &models.CatalogRunResult{
		SourceFile: "catalog-2020-01.txt",
		Courses:    map[string]*models.CourseRecord{},
	}

	snap := Analyze(result, 0)
	assert.Zero(t, snap.Metrics.CoursesFound)
	assert.Zero(t, snap.Metrics.DescriptionCoveragePct)
	assert.Zero(t, snap.Metrics.AvgDescriptionLength)
	assert.Zero(t, snap.Metrics.CoursesPerPage)
}
