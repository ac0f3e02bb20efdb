// Package catalog holds the static program classification tables used to
// decode legacy class identifiers and to detect majors and language tracks.
//
// A Catalog is built once by Load or New and never mutated afterwards, so a
// single value may be shared by any number of goroutines without locking.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

// Program describes a program code found in legacy tokens.
type Program struct {
	Code            string
	Family          models.ProgramFamily
	CoursePrefix    string
	AllowedPrefixes []string
}

// Catalog is the immutable lookup built from a File.
type Catalog struct {
	programs      map[string]Program
	allowed       map[string]map[string]struct{}
	courseMajors  map[string][]string
	courseTracks  map[string][]string
	levelRank     map[string]map[string]int
	majorNames    []string
	languageNames []string
}

// ErrInvalidCatalog reports a structurally broken catalog file.
var ErrInvalidCatalog = errors.New("invalid catalog")

// New validates the file contents and builds the lookup tables.
func New(file File) (*Catalog, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}
	c := &Catalog{
		programs:     make(map[string]Program, len(file.Programs)),
		allowed:      make(map[string]map[string]struct{}, len(file.Programs)),
		courseMajors: make(map[string][]string),
		courseTracks: make(map[string][]string),
		levelRank:    make(map[string]map[string]int, len(file.LanguagePrograms)),
	}
	for _, p := range file.Programs {
		code := normalize(p.Code)
		prefixes := make(map[string]struct{}, len(p.AllowedPrefixes))
		list := make([]string, 0, len(p.AllowedPrefixes))
		for _, prefix := range p.AllowedPrefixes {
			prefix = normalize(prefix)
			prefixes[prefix] = struct{}{}
			list = append(list, prefix)
		}
		c.allowed[code] = prefixes
		c.programs[code] = Program{
			Code:            code,
			Family:          models.ProgramFamily(strings.ToLower(strings.TrimSpace(p.Family))),
			CoursePrefix:    normalize(p.CoursePrefix),
			AllowedPrefixes: list,
		}
	}
	for _, m := range file.Majors {
		name := strings.TrimSpace(m.Name)
		c.majorNames = append(c.majorNames, name)
		for _, course := range m.SignatureCourses {
			course = normalize(course)
			c.courseMajors[course] = appendUnique(c.courseMajors[course], name)
		}
	}
	for _, lp := range file.LanguagePrograms {
		name := strings.TrimSpace(lp.Name)
		c.languageNames = append(c.languageNames, name)
		ranks := make(map[string]int, len(lp.Levels))
		for i, level := range lp.Levels {
			level = normalize(level)
			ranks[level] = i
			c.courseTracks[level] = appendUnique(c.courseTracks[level], name)
		}
		c.levelRank[name] = ranks
	}
	sort.Strings(c.majorNames)
	sort.Strings(c.languageNames)
	return c, nil
}

// Program returns the program registered under code.
func (c *Catalog) Program(code string) (Program, bool) {
	p, ok := c.programs[normalize(code)]
	return p, ok
}

// Family returns the decoding family for a program code.
func (c *Catalog) Family(code string) models.ProgramFamily {
	if p, ok := c.Program(code); ok {
		return p.Family
	}
	return models.FamilyUnknown
}

// AllowedPrefix reports whether prefix is an expected course prefix for the program.
// Programs without a prefix list accept everything.
func (c *Catalog) AllowedPrefix(programCode, prefix string) bool {
	set, ok := c.allowed[normalize(programCode)]
	if !ok || len(set) == 0 {
		return true
	}
	_, ok = set[normalize(prefix)]
	return ok
}

// MajorForCourses returns the single major implicated by the courses' signature
// matches. Zero or several distinct majors yield ok == false.
func (c *Catalog) MajorForCourses(courses []string) (string, bool) {
	return single(matches(c.courseMajors, courses))
}

// AmbiguousMajor reports whether the courses implicate more than one major.
func (c *Catalog) AmbiguousMajor(courses []string) bool {
	return len(matches(c.courseMajors, courses)) > 1
}

// LanguageProgramForCourses applies the MajorForCourses rule to language levels.
func (c *Catalog) LanguageProgramForCourses(courses []string) (string, bool) {
	return single(matches(c.courseTracks, courses))
}

// AmbiguousLanguageProgram reports whether the courses implicate several tracks.
func (c *Catalog) AmbiguousLanguageProgram(courses []string) bool {
	return len(matches(c.courseTracks, courses)) > 1
}

// SignatureCourses returns the sorted subset of courses that are signature
// courses of major.
func (c *Catalog) SignatureCourses(major string, courses []string) []string {
	var found []string
	for _, course := range courses {
		for _, m := range c.courseMajors[normalize(course)] {
			if m == major {
				found = append(found, normalize(course))
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

// LevelCourses returns the sorted subset of courses that belong to the
// program's level progression.
func (c *Catalog) LevelCourses(program string, courses []string) []string {
	ranks := c.levelRank[program]
	var found []string
	for _, course := range courses {
		if _, ok := ranks[normalize(course)]; ok {
			found = append(found, normalize(course))
		}
	}
	sort.Strings(found)
	return found
}

// LevelsForProgram orders the courses that belong to program by its canonical
// progression and returns the lowest and highest.
func (c *Catalog) LevelsForProgram(program string, courses []string) (entry, finishing string) {
	ranks, ok := c.levelRank[program]
	if !ok {
		return "", ""
	}
	lo, hi := -1, -1
	for _, course := range courses {
		rank, ok := ranks[normalize(course)]
		if !ok {
			continue
		}
		if lo == -1 || rank < lo {
			entry, lo = normalize(course), rank
		}
		if hi == -1 || rank > hi {
			finishing, hi = normalize(course), rank
		}
	}
	return entry, finishing
}

// Majors lists every configured major name.
func (c *Catalog) Majors() []string {
	return append([]string(nil), c.majorNames...)
}

// LanguagePrograms lists every configured language program name.
func (c *Catalog) LanguagePrograms() []string {
	return append([]string(nil), c.languageNames...)
}

// CoursePrefix extracts the prefix checked by soft validation: the text before
// the first dash ("IEAP-04" -> "IEAP") or the leading letters ("CS101" -> "CS").
func CoursePrefix(course string) string {
	course = normalize(course)
	if idx := strings.IndexByte(course, '-'); idx > 0 {
		return course[:idx]
	}
	end := strings.IndexFunc(course, func(r rune) bool { return !unicode.IsLetter(r) })
	if end == -1 {
		return course
	}
	return course[:end]
}

func matches(index map[string][]string, courses []string) map[string]struct{} {
	found := make(map[string]struct{})
	for _, course := range courses {
		for _, name := range index[normalize(course)] {
			found[name] = struct{}{}
		}
	}
	return found
}

func single(set map[string]struct{}) (string, bool) {
	if len(set) != 1 {
		return "", false
	}
	for name := range set {
		return name, true
	}
	return "", false
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}
