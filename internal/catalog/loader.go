package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// File is the on-disk catalog layout.
type File struct {
	Programs         []ProgramEntry         `yaml:"programs"`
	Majors           []MajorEntry           `yaml:"majors"`
	LanguagePrograms []LanguageProgramEntry `yaml:"language_programs"`
}

// ProgramEntry maps a token program code to its family and expected prefixes.
type ProgramEntry struct {
	Code            string   `yaml:"code"`
	Family          string   `yaml:"family"`
	CoursePrefix    string   `yaml:"course_prefix"`
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
}

// MajorEntry lists the signature courses of an academic major.
type MajorEntry struct {
	Name             string   `yaml:"name"`
	SignatureCourses []string `yaml:"signature_courses"`
}

// LanguageProgramEntry lists a language track's levels from lowest to highest.
type LanguageProgramEntry struct {
	Name   string   `yaml:"name"`
	Levels []string `yaml:"levels"`
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		data = raw
	}
	return Parse(data)
}

// Parse decodes YAML catalog content.
func Parse(data []byte) (*Catalog, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(file)
}

// Validate checks the structural rules a catalog must satisfy before use.
func (f File) Validate() error {
	if len(f.Programs) == 0 {
		return invalid("no programs defined")
	}
	seen := make(map[string]struct{}, len(f.Programs))
	for _, p := range f.Programs {
		code := normalize(p.Code)
		if code == "" {
			return invalid("program with empty code")
		}
		if _, dup := seen[code]; dup {
			return invalid("duplicate program %s", code)
		}
		seen[code] = struct{}{}
		switch models.ProgramFamily(strings.ToLower(strings.TrimSpace(p.Family))) {
		case models.FamilyAcademic:
		case models.FamilyLanguage:
			if normalize(p.CoursePrefix) == "" {
				return invalid("language program %s has no course prefix", code)
			}
		default:
			return invalid("program %s has unknown family %q", code, p.Family)
		}
	}
	names := make(map[string]struct{}, len(f.Majors))
	for _, m := range f.Majors {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return invalid("major with empty name")
		}
		if _, dup := names[name]; dup {
			return invalid("duplicate major %s", name)
		}
		names[name] = struct{}{}
		if len(m.SignatureCourses) == 0 {
			return invalid("major %s has no signature courses", name)
		}
	}
	tracks := make(map[string]struct{}, len(f.LanguagePrograms))
	for _, lp := range f.LanguagePrograms {
		name := strings.TrimSpace(lp.Name)
		if name == "" {
			return invalid("language program with empty name")
		}
		if _, dup := tracks[name]; dup {
			return invalid("duplicate language program %s", name)
		}
		tracks[name] = struct{}{}
		if len(lp.Levels) == 0 {
			return invalid("language program %s has no levels", name)
		}
		levels := make(map[string]struct{}, len(lp.Levels))
		for _, level := range lp.Levels {
			level = normalize(level)
			if _, dup := levels[level]; dup {
				return invalid("language program %s repeats level %s", name, level)
			}
			levels[level] = struct{}{}
		}
	}
	return nil
}
