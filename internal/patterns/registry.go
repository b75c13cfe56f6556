package patterns

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Built-in format generations. The legacy layout ran from the first
// captured catalog through mid-2019; the modern layout introduced D-series
// course codes and tighter listing tables and is still current.
var builtinDescriptors = []FormatDescriptor{
	{
		MajorVersion:            1,
		MinorVersion:            2,
		PatchVersion:            0,
		Identifier:              "legacy",
		CourseCodePatterns:      []string{`C\d{3}`, `[A-Z]{2,4}\d`},
		ControlNumberFormatNote: "control number printed before the course code in packed table rows",
		DegreeTableFormatNote:   "degree plans listed as title followed by a free-form course block",
		TextNotes:               []string{"acronym-style codes (e.g. QBT1) collide with control numbers; rely on the override table"},
		FirstSeenPeriod:         "2017-01",
		LastSeenPeriod:          "2019-07",
	},
	{
		MajorVersion:            2,
		MinorVersion:            0,
		PatchVersion:            1,
		Identifier:              "modern",
		CourseCodePatterns:      []string{`[CD]\d{3}`, `[A-Z]{2,4}\d`},
		ControlNumberFormatNote: "packed rows unchanged; D-series codes added",
		DegreeTableFormatNote:   "degree plans carry explicit total competency units near the title",
		FirstSeenPeriod:         "2019-08",
	},
}

// Registry holds every known format generation with compiled patterns,
// ordered by FirstSeenPeriod ascending.
type Registry struct {
	sets []*PatternSet
}

// NewRegistry compiles the built-in descriptors.
func NewRegistry() (*Registry, error) {
	return newRegistry(builtinDescriptors)
}

// LoadRegistry compiles the built-in descriptors plus any additional
// descriptors defined in the given YAML file. An empty path returns the
// built-in registry. Loaded descriptors with an identifier matching a
// built-in one replace it, so pattern fixes can ship as data.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read format registry %s: %w", path, err)
	}
	var file struct {
		Formats []FormatDescriptor `yaml:"formats"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse format registry %s: %w", path, err)
	}

	merged := make([]FormatDescriptor, len(builtinDescriptors))
	copy(merged, builtinDescriptors)
	for _, d := range file.Formats {
		replaced := false
		for i, b := range merged {
			if b.Identifier == d.Identifier {
				merged[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, d)
		}
	}
	return newRegistry(merged)
}

func newRegistry(descriptors []FormatDescriptor) (*Registry, error) {
	r := &Registry{}
	for _, d := range descriptors {
		ps, err := Compile(d)
		if err != nil {
			return nil, err
		}
		r.sets = append(r.sets, ps)
	}
	sort.Slice(r.sets, func(i, j int) bool {
		return r.sets[i].Descriptor.FirstSeenPeriod < r.sets[j].Descriptor.FirstSeenPeriod
	})
	if len(r.sets) == 0 {
		return nil, fmt.Errorf("format registry is empty")
	}
	return r, nil
}

// Formats returns the registered pattern sets, oldest first.
func (r *Registry) Formats() []*PatternSet {
	return r.sets
}

// Latest returns the most recent format generation, the conservative
// default when a source date is unknown.
func (r *Registry) Latest() *PatternSet {
	return r.sets[len(r.sets)-1]
}

// Select returns the pattern set covering the given "YYYY-MM" period. It
// never fails to return a set: an empty or uncovered period falls back to
// the latest generation, and the second return value reports whether that
// fallback was taken so the caller can log a warning.
func (r *Registry) Select(period string) (*PatternSet, bool) {
	if period == "" {
		return r.Latest(), true
	}
	for _, ps := range r.sets {
		if ps.Descriptor.Covers(period) {
			return ps, false
		}
	}
	return r.Latest(), true
}
