// Package patterns holds the declarative extraction pattern library: one
// FormatDescriptor per source-format generation plus the compiled regular
// expressions the parser passes run. Adding support for a new catalog
// layout is additive: define a descriptor, register it, done.
package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// FormatDescriptor describes one generation of the source document layout
// and the date range in which it was observed. Immutable; one per parsing
// strategy. Periods are "YYYY-MM" strings, both ends inclusive; an empty
// LastSeenPeriod means the format is still current.
type FormatDescriptor struct {
	MajorVersion            int      `yaml:"majorVersion" json:"majorVersion"`
	MinorVersion            int      `yaml:"minorVersion" json:"minorVersion"`
	PatchVersion            int      `yaml:"patchVersion" json:"patchVersion"`
	Identifier              string   `yaml:"identifier" json:"identifier"`
	CourseCodePatterns      []string `yaml:"courseCodePatterns" json:"courseCodePatterns"`
	ControlNumberFormatNote string   `yaml:"controlNumberFormatNote,omitempty" json:"controlNumberFormatNote,omitempty"`
	DegreeTableFormatNote   string   `yaml:"degreeTableFormatNote,omitempty" json:"degreeTableFormatNote,omitempty"`
	TextNotes               []string `yaml:"textNotes,omitempty" json:"textNotes,omitempty"`
	FirstSeenPeriod         string   `yaml:"firstSeenPeriod" json:"firstSeenPeriod"`
	LastSeenPeriod          string   `yaml:"lastSeenPeriod,omitempty" json:"lastSeenPeriod,omitempty"`
}

// Version renders the descriptor version as a semver-style string.
func (d FormatDescriptor) Version() string {
	return fmt.Sprintf("%d.%d.%d", d.MajorVersion, d.MinorVersion, d.PatchVersion)
}

// Covers reports whether the given "YYYY-MM" period falls inside the
// descriptor's observed range. A source dated exactly at LastSeenPeriod
// still belongs to this format.
func (d FormatDescriptor) Covers(period string) bool {
	if period < d.FirstSeenPeriod {
		return false
	}
	if d.LastSeenPeriod == "" {
		return true
	}
	return period <= d.LastSeenPeriod
}

// controlNumberPattern matches institution-assigned control numbers such as
// "MGMT 3000" or "BUS 2010B". Stable across all observed format generations.
const controlNumberPattern = `[A-Z]{2,5} ?\d{3,4}[A-Z]?`

// PatternSet is a FormatDescriptor plus its compiled expressions, ready for
// the parser passes to run. Built once per strategy via Compile.
type PatternSet struct {
	Descriptor FormatDescriptor

	// CourseCode matches a bare course code token anywhere in text.
	CourseCode *regexp.Regexp
	// PackedRow matches one row of the control-number table: control
	// number, course code, title, then the packed two-digit field whose
	// first digit is competency units and second is term number.
	PackedRow *regexp.Regexp
	// DetailHeader matches the "code – short title" heading that opens a
	// long-form course description block.
	DetailHeader *regexp.Regexp
	// Listing matches the short "code – title [units]" occurrences found
	// in summary listings.
	Listing *regexp.Regexp
	// DegreeTitle matches degree program titles bounded by the controlled
	// vocabulary of degree nouns.
	DegreeTitle *regexp.Regexp
	// ContextualUnits matches "N competency units" phrases used as a
	// low-confidence fallback for competency units.
	ContextualUnits *regexp.Regexp
	// ControlNumber matches a bare control number token.
	ControlNumber *regexp.Regexp
	// Prerequisites matches the prerequisite clause inside a description.
	Prerequisites *regexp.Regexp
}

// Compile builds the PatternSet for a descriptor. It fails only on an
// invalid course-code pattern, which indicates a broken registry entry.
func Compile(d FormatDescriptor) (*PatternSet, error) {
	if len(d.CourseCodePatterns) == 0 {
		return nil, fmt.Errorf("format %q has no course code patterns", d.Identifier)
	}
	codeAlt := "(?:" + strings.Join(d.CourseCodePatterns, "|") + ")"

	compile := func(expr string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("format %q: bad pattern %q: %w", d.Identifier, expr, err)
		}
		return re, nil
	}

	var (
		ps  = &PatternSet{Descriptor: d}
		err error
	)
	if ps.CourseCode, err = compile(`\b` + codeAlt + `\b`); err != nil {
		return nil, err
	}
	if ps.PackedRow, err = compile(`(?m)^\s*(` + controlNumberPattern + `)\s*(` + codeAlt + `)\s*([A-Za-z][^\n\d]*?)\s*(\d)(\d)\s*$`); err != nil {
		return nil, err
	}
	if ps.DetailHeader, err = compile(`(?m)^\s*(` + codeAlt + `)\s*[–—-]{1,2}\s*([^\n]{3,150}?)\s*$`); err != nil {
		return nil, err
	}
	if ps.Listing, err = compile(`(?m)^\s*(` + codeAlt + `)\s*[–—-]{1,2}\s*([^\n]{3,120}?)\s*[\[(]?(\d{1,2})[\])]?\s*$`); err != nil {
		return nil, err
	}
	if ps.DegreeTitle, err = compile(`(?:Bachelor|Master|Doctor) of [A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)*(?: in [A-Z][A-Za-z&', -]+[A-Za-z])?|[A-Z][A-Za-z&', -]*[A-Za-z] Certificate\b`); err != nil {
		return nil, err
	}
	if ps.ContextualUnits, err = compile(`(?i)\b(\d{1,2})\s*(?:competency units?|CUs?)\b`); err != nil {
		return nil, err
	}
	if ps.ControlNumber, err = compile(`\b` + controlNumberPattern + `\b`); err != nil {
		return nil, err
	}
	if ps.Prerequisites, err = compile(`(?i)prerequisites?\s*:?\s*([^\n.]+)`); err != nil {
		return nil, err
	}
	return ps, nil
}

// DegreeTypeOf derives the degree type from a matched degree title.
func DegreeTypeOf(title string) string {
	switch {
	case strings.HasPrefix(title, "Bachelor"):
		return "bachelor"
	case strings.HasPrefix(title, "Master"):
		return "master"
	case strings.HasPrefix(title, "Doctor"):
		return "doctorate"
	default:
		return "certificate"
	}
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the stable degree identifier from a degree name. The same
// name must always slugify identically; cross-run de-duplication depends on
// it. Mirrors the object-name sanitizer used for archived reports.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugNonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
