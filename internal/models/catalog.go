package models

import "time"

// Provenance records where a parsed record came from, so downstream
// consumers can trace any field back to a source document.
type Provenance struct {
	SourceFile  string    `json:"sourceFile" firestore:"sourceFile"`
	PageNumber  int       `json:"pageNumber,omitempty" firestore:"pageNumber,omitempty"`
	ExtractedAt time.Time `json:"extractedAt" firestore:"extractedAt"`
}

// CourseRecord is a single course extracted from a catalog document.
// Identity is CourseCode; all other fields may be backfilled by later,
// lower-confidence parse passes but are never overwritten by them.
type CourseRecord struct {
	CourseCode      string     `json:"courseCode" firestore:"courseCode"`
	ControlNumber   string     `json:"controlNumber,omitempty" firestore:"controlNumber,omitempty"`
	Name            string     `json:"name" firestore:"name"`
	Description     string     `json:"description,omitempty" firestore:"description,omitempty"`
	CompetencyUnits int        `json:"competencyUnits" firestore:"competencyUnits"`
	Prerequisites   []string   `json:"prerequisites,omitempty" firestore:"prerequisites,omitempty"`
	Level           string     `json:"level,omitempty" firestore:"level,omitempty"`
	AcademicArea    string     `json:"academicArea,omitempty" firestore:"academicArea,omitempty"`
	Provenance      Provenance `json:"provenance" firestore:"provenance"`
}

// Degree plan course membership kinds.
const (
	CourseKindRequired = "required"
	CourseKindElective = "elective"
	CourseKindCapstone = "capstone"
)

// Degree types recognised in degree titles.
const (
	DegreeTypeBachelor    = "bachelor"
	DegreeTypeMaster      = "master"
	DegreeTypeDoctorate   = "doctorate"
	DegreeTypeCertificate = "certificate"
)

// DegreeCourseRef is one course's membership in a degree plan.
type DegreeCourseRef struct {
	CourseCode string `json:"courseCode" firestore:"courseCode"`
	Term       int    `json:"term,omitempty" firestore:"term,omitempty"`
	Kind       string `json:"kind" firestore:"kind"`
	Category   string `json:"category,omitempty" firestore:"category,omitempty"`
}

// DegreePlanRecord is a degree program extracted from a catalog document.
// DegreeID is derived deterministically from DegreeName; the aggregator
// relies on that derivation being stable for cross-run de-duplication.
type DegreePlanRecord struct {
	DegreeID             string            `json:"degreeId" firestore:"degreeId"`
	DegreeName           string            `json:"degreeName" firestore:"degreeName"`
	College              string            `json:"college,omitempty" firestore:"college,omitempty"`
	DegreeType           string            `json:"degreeType" firestore:"degreeType"`
	TotalCompetencyUnits int               `json:"totalCompetencyUnits" firestore:"totalCompetencyUnits"`
	Courses              []DegreeCourseRef `json:"courses" firestore:"courses"`
	Provenance           Provenance        `json:"provenance" firestore:"provenance"`
}

// RunStatistics summarises one parse run for health tracking.
type RunStatistics struct {
	CoursesFound              int     `json:"coursesFound"`
	DegreePlansFound          int     `json:"degreePlansFound"`
	ControlNumberCoveragePct  float64 `json:"controlNumberCoveragePct"`
	CompetencyUnitCoveragePct float64 `json:"competencyUnitCoveragePct"`
}

// CatalogRunResult is the immutable output of one parse invocation. Parse
// failures are reported through Errors rather than raised: a corrupt source
// yields empty maps, populated Errors and zero-filled statistics so a batch
// run can continue to the next source.
type CatalogRunResult struct {
	SourceFile    string                       `json:"sourceFile"`
	CatalogDate   string                       `json:"catalogDate,omitempty"`
	PageCount     int                          `json:"pageCount"`
	ParsedAt      time.Time                    `json:"parsedAt"`
	ParserVersion string                       `json:"parserVersion"`
	Courses       map[string]*CourseRecord     `json:"courses"`
	DegreePlans   map[string]*DegreePlanRecord `json:"degreePlans"`
	Statistics    RunStatistics                `json:"statistics"`
	Warnings      []string                     `json:"warnings"`
	Errors        []string                     `json:"errors"`
}
