package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
	"github.com/Lllllllleong/catalogdocumentflow/internal/patterns"
)

// Cross-format expressions used by the degree-plan pass. These describe
// catalog prose rather than the versioned table layouts, so they live here
// instead of in the per-format pattern sets.
var (
	totalUnitsRe = regexp.MustCompile(`(?i)(\d{2,3})\s*(?:total\s+)?competency units`)
	collegeRe    = regexp.MustCompile(`(?:College|School) of [A-Z][A-Za-z &]+[A-Za-z]`)
)

// packedInfo is the per-course lookup built by passes 1 and 2. Override
// entries always win over pattern-matched rows.
type packedInfo struct {
	controlNumber string
	units         int
	term          int
	title         string
	fromOverride  bool
}

// parseRun holds the mutable state of one Parse invocation.
type parseRun struct {
	strategy *Strategy
	text     string
	result   *models.CatalogRunResult
}

func (r *parseRun) warnf(format string, args ...any) {
	r.result.Warnings = append(r.result.Warnings, fmt.Sprintf(format, args...))
}

// extractPackedTable is pass 1: scan the control-number table rows and
// build the courseCode lookup. The packed two-digit field decodes as
// first digit = competency units, second digit = term number; this is the
// highest-confidence source for competency units when it matches.
func (r *parseRun) extractPackedTable() map[string]*packedInfo {
	lookup := map[string]*packedInfo{}
	for _, m := range r.strategy.patterns.PackedRow.FindAllStringSubmatch(r.text, -1) {
		code := m[2]
		units, _ := strconv.Atoi(m[4])
		term, _ := strconv.Atoi(m[5])
		info := &packedInfo{
			controlNumber: m[1],
			units:         units,
			term:          term,
			title:         strings.TrimSpace(m[3]),
		}
		if prev, ok := lookup[code]; ok && (prev.controlNumber != info.controlNumber || prev.units != info.units) {
			r.warnf("course %s appears in the packed table twice with divergent values (%s/%d vs %s/%d)",
				code, prev.controlNumber, prev.units, info.controlNumber, info.units)
			continue
		}
		lookup[code] = info
	}
	return lookup
}

// applyOverrides is pass 2: overlay the manual override table onto the
// packed lookup. Overrides exist for codes whose packed rows are known to
// mis-parse, so they replace whatever pass 1 found.
func (r *parseRun) applyOverrides(lookup map[string]*packedInfo) {
	for _, code := range r.strategy.overrides.sortedCodes() {
		o := r.strategy.overrides[code]
		lookup[code] = &packedInfo{
			controlNumber: o.ControlNumber,
			units:         o.CompetencyUnits,
			title:         o.Name,
			fromOverride:  true,
		}
	}
}

// extractDetailedCourses is pass 3: long-form "code – title" headings
// followed by a description paragraph. Page numbers are estimated
// proportionally from the character offset of the match.
func (r *parseRun) extractDetailedCourses(lookup map[string]*packedInfo) {
	ps := r.strategy.patterns
	for _, m := range ps.DetailHeader.FindAllStringSubmatchIndex(r.text, -1) {
		line := r.text[m[0]:m[1]]
		// Short listing lines ("code – title [3]") match the heading
		// shape too; leave those for pass 4.
		if ps.Listing.MatchString(line) {
			continue
		}
		code := r.text[m[2]:m[3]]
		title := strings.TrimSpace(r.text[m[4]:m[5]])
		description := r.paragraphAfter(m[1])
		if description == "" {
			continue
		}

		if existing, ok := r.result.Courses[code]; ok {
			if existing.Name != title {
				r.warnf("course %s extracted twice with divergent titles (%q vs %q); keeping the first", code, existing.Name, title)
			}
			continue
		}

		rec := r.newRecord(code, title, lookup)
		rec.Description = description
		rec.Provenance.PageNumber = r.pageAt(m[0])
		if rec.CompetencyUnits == 0 {
			rec.CompetencyUnits = contextualUnits(ps.ContextualUnits, description)
		}
		rec.Prerequisites = r.prerequisitesOf(description)
		r.result.Courses[code] = rec
	}
}

// extractCourseListings is pass 4: short "code – title [units]" lines. A
// listing only creates a record pass 3 missed or backfills gaps; it never
// overwrites a populated field with a worse one.
func (r *parseRun) extractCourseListings(lookup map[string]*packedInfo) {
	for _, m := range r.strategy.patterns.Listing.FindAllStringSubmatchIndex(r.text, -1) {
		code := r.text[m[2]:m[3]]
		title := strings.TrimSpace(r.text[m[4]:m[5]])
		units, _ := strconv.Atoi(r.text[m[6]:m[7]])
		if units < 1 || units > 10 {
			units = 0
		}

		existing, ok := r.result.Courses[code]
		if !ok {
			rec := r.newRecord(code, title, lookup)
			rec.Provenance.PageNumber = r.pageAt(m[0])
			if rec.CompetencyUnits == 0 {
				rec.CompetencyUnits = units
			}
			r.result.Courses[code] = rec
			continue
		}
		if existing.ControlNumber == "" {
			if info, ok := lookup[code]; ok {
				existing.ControlNumber = info.controlNumber
			}
		}
		if existing.CompetencyUnits == 0 && units > 0 {
			existing.CompetencyUnits = units
		}
		// An overlong name usually means a description fragment bled into
		// the title; prefer the shorter listing title then.
		if len(existing.Name) > 80 && len(title) < len(existing.Name) {
			existing.Name = title
		}
	}
}

// extractDegreePlans is pass 5: degree titles bounded by the controlled
// degree-noun vocabulary, with every course code referenced in the window
// after the title recorded as a required member. Duplicate titles are
// reported, not merged, unless slug and courses are identical.
func (r *parseRun) extractDegreePlans(lookup map[string]*packedInfo) {
	ps := r.strategy.patterns
	matches := ps.DegreeTitle.FindAllStringIndex(r.text, -1)
	if len(matches) == 0 {
		r.warnf("no degree program titles matched in %s", r.result.SourceFile)
		return
	}

	for i, m := range matches {
		title := strings.TrimSpace(r.text[m[0]:m[1]])
		slug := patterns.Slugify(title)
		if slug == "" {
			continue
		}

		windowEnd := min(m[1]+2500, len(r.text))
		if i+1 < len(matches) && matches[i+1][0] < windowEnd {
			windowEnd = matches[i+1][0]
		}
		window := r.text[m[1]:windowEnd]

		var refs []models.DegreeCourseRef
		seen := map[string]bool{}
		for _, code := range ps.CourseCode.FindAllString(window, -1) {
			if seen[code] {
				continue
			}
			seen[code] = true
			ref := models.DegreeCourseRef{CourseCode: code, Kind: models.CourseKindRequired}
			if info, ok := lookup[code]; ok {
				ref.Term = info.term
			}
			refs = append(refs, ref)
		}

		plan := &models.DegreePlanRecord{
			DegreeID:             slug,
			DegreeName:           title,
			College:              r.collegeBefore(m[0]),
			DegreeType:           patterns.DegreeTypeOf(title),
			TotalCompetencyUnits: r.totalUnits(window, refs, lookup),
			Courses:              refs,
			Provenance: models.Provenance{
				SourceFile:  r.result.SourceFile,
				PageNumber:  r.pageAt(m[0]),
				ExtractedAt: r.result.ParsedAt,
			},
		}

		if existing, ok := r.result.DegreePlans[slug]; ok {
			if !samePlan(existing, plan) {
				r.warnf("degree title %q appears twice with divergent course lists; keeping the first", title)
			}
			continue
		}
		r.result.DegreePlans[slug] = plan
	}
}

// backfillKnownCourses is pass 6: any code known to the lookup (override
// table or packed rows) but absent from the result is added with whatever
// the lookup knows, so no known code is silently lost even when text
// extraction fails entirely.
func (r *parseRun) backfillKnownCourses(lookup map[string]*packedInfo) {
	codes := make([]string, 0, len(lookup))
	for code := range lookup {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var backfilled int
	for _, code := range codes {
		if _, ok := r.result.Courses[code]; ok {
			continue
		}
		rec := r.newRecord(code, "", lookup)
		if rec.Name == "" {
			rec.Name = "Course " + code
		}
		r.result.Courses[code] = rec
		backfilled++
	}
	if backfilled > 0 {
		r.warnf("backfilled %d known course codes missing from text extraction", backfilled)
	}
}

// newRecord builds a CourseRecord seeded from the packed lookup where
// available. Name falls back to the lookup title when the caller has none.
func (r *parseRun) newRecord(code, name string, lookup map[string]*packedInfo) *models.CourseRecord {
	rec := &models.CourseRecord{
		CourseCode: code,
		Name:       name,
		Provenance: models.Provenance{
			SourceFile:  r.result.SourceFile,
			ExtractedAt: r.result.ParsedAt,
		},
	}
	if info, ok := lookup[code]; ok {
		rec.ControlNumber = info.controlNumber
		rec.CompetencyUnits = info.units
		if rec.Name == "" {
			rec.Name = info.title
		}
	}
	if rec.ControlNumber != "" {
		rec.AcademicArea = academicAreaOf(rec.ControlNumber)
		rec.Level = levelOf(rec.ControlNumber)
	}
	return rec
}

// paragraphAfter returns the description paragraph starting at offset,
// trimmed and cut at the first blank line. Bounded so a missing blank line
// cannot swallow the rest of the document.
func (r *parseRun) paragraphAfter(offset int) string {
	window := r.text[offset:min(offset+2500, len(r.text))]
	if i := strings.Index(window, "\n\n"); i >= 0 {
		window = window[:i]
	}
	return strings.TrimSpace(window)
}

// prerequisitesOf pulls course codes out of the prerequisite clause of a
// description, if one exists.
func (r *parseRun) prerequisitesOf(description string) []string {
	m := r.strategy.patterns.Prerequisites.FindStringSubmatch(description)
	if m == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, code := range r.strategy.patterns.CourseCode.FindAllString(m[1], -1) {
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	return out
}

// collegeBefore scans a short span of text before a degree title for a
// "College of ..." heading.
func (r *parseRun) collegeBefore(offset int) string {
	start := max(0, offset-300)
	found := collegeRe.FindAllString(r.text[start:offset], -1)
	if len(found) == 0 {
		return ""
	}
	return found[len(found)-1]
}

// totalUnits prefers an explicit "NNN competency units" figure near the
// degree title and otherwise sums the known units of the member courses.
func (r *parseRun) totalUnits(window string, refs []models.DegreeCourseRef, lookup map[string]*packedInfo) int {
	head := window[:min(200, len(window))]
	if m := totalUnitsRe.FindStringSubmatch(head); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	var sum int
	for _, ref := range refs {
		if info, ok := lookup[ref.CourseCode]; ok {
			sum += info.units
		} else if c, ok := r.result.Courses[ref.CourseCode]; ok {
			sum += c.CompetencyUnits
		}
	}
	return sum
}

// pageAt estimates a page number proportionally from a character offset.
func (r *parseRun) pageAt(offset int) int {
	if r.result.PageCount <= 0 || len(r.text) == 0 {
		return 0
	}
	page := offset*r.result.PageCount/len(r.text) + 1
	if page > r.result.PageCount {
		page = r.result.PageCount
	}
	return page
}

// contextualUnits accepts only values in [1,10] to reject false positives
// from arbitrary numbers in prose.
func contextualUnits(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 10 {
		return 0
	}
	return n
}

func academicAreaOf(controlNumber string) string {
	for i, r := range controlNumber {
		if r >= '0' && r <= '9' {
			return strings.TrimSpace(controlNumber[:i])
		}
	}
	return ""
}

// levelOf derives the course level from the leading digit of the control
// number's numeric part.
func levelOf(controlNumber string) string {
	area := academicAreaOf(controlNumber)
	rest := strings.TrimSpace(strings.TrimPrefix(controlNumber, area))
	if rest == "" {
		return ""
	}
	switch rest[0] {
	case '1', '2':
		return "lower-division"
	case '3', '4':
		return "upper-division"
	case '5', '6', '7', '8', '9':
		return "graduate"
	}
	return ""
}

func samePlan(a, b *models.DegreePlanRecord) bool {
	if a.DegreeID != b.DegreeID || len(a.Courses) != len(b.Courses) {
		return false
	}
	for i := range a.Courses {
		if a.Courses[i].CourseCode != b.Courses[i].CourseCode {
			return false
		}
	}
	return true
}
