package parser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Override is one manual correction for a course code whose packed table
// row does not parse reliably (acronym-style or cross-listed codes). The
// override table is the single sanctioned manual-intervention channel and
// always wins over pattern-matched values.
type Override struct {
	ControlNumber   string `yaml:"controlNumber"`
	CompetencyUnits int    `yaml:"competencyUnits"`
	Name            string `yaml:"name,omitempty"`
}

// OverrideTable maps course code to its manual override. Loaded once per
// batch invocation and passed into every parse call; never mutated during
// parsing.
type OverrideTable map[string]Override

// LoadOverrides reads the version-controlled override file. An empty path
// yields an empty table, which is a valid configuration.
func LoadOverrides(path string) (OverrideTable, error) {
	if path == "" {
		return OverrideTable{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read override table %s: %w", path, err)
	}
	var file struct {
		Courses OverrideTable `yaml:"courses"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse override table %s: %w", path, err)
	}
	if file.Courses == nil {
		file.Courses = OverrideTable{}
	}
	return file.Courses, nil
}
