// Package timeline groups a student's decoded enrollments into chronological
// terms and annotates each term with the major or language program its
// course set implicates.
package timeline

import (
	"fmt"
	"sort"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/decoder"
	"github.com/noah-isme/journey-reconciler/internal/models"
)

// DecodedRecord pairs a ledger row with its decode result.
type DecodedRecord struct {
	Record models.RawEnrollmentRecord
	Result decoder.Result
}

// TermEntry is one term of a student's timeline.
type TermEntry struct {
	Ordinal           int      `json:"ordinal"`
	TermCode          string   `json:"term_code"`
	Key               TermKey  `json:"-"`
	Courses           []string `json:"courses"`
	Major             string   `json:"major,omitempty"`
	LanguageProgram   string   `json:"language_program,omitempty"`
	AmbiguousMajor    bool     `json:"ambiguous_major,omitempty"`
	AmbiguousLanguage bool     `json:"ambiguous_language,omitempty"`
	Records           int      `json:"records"`
	MissingGrades     int      `json:"missing_grades"`
	DecodeFailures    int      `json:"decode_failures"`
	PrefixMismatches  int      `json:"prefix_mismatches"`
	ProgramConflicts  int      `json:"program_conflicts"`
}

type termGroup struct {
	key     TermKey
	courses map[string]struct{}
	entry   TermEntry
}

// Build groups records by term, collapses duplicate course codes, orders the
// terms chronologically and assigns 1-based ordinals. Terms whose records all
// failed to decode are kept so their data-quality counts survive, but a
// student with no decodable course at all gets an empty timeline.
func Build(cat *catalog.Catalog, records []DecodedRecord) ([]TermEntry, error) {
	groups := make(map[TermKey]*termGroup)
	usable := false
	for _, rec := range records {
		key, err := ParseTermCode(rec.Record.TermCode)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.Record.ID, err)
		}
		g, ok := groups[key]
		if !ok {
			g = &termGroup{key: key, courses: make(map[string]struct{})}
			groups[key] = g
		}
		g.entry.Records++
		if !GradeUsable(rec.Record.Grade) {
			g.entry.MissingGrades++
		}
		if rec.Result.Has(decoder.WarnPrefixMismatch) {
			g.entry.PrefixMismatches++
		}
		if rec.Result.Unparsable() {
			g.entry.DecodeFailures++
			continue
		}
		if rec.Result.Has(decoder.WarnProgramConflict) {
			g.entry.ProgramConflicts++
		}
		g.courses[rec.Result.Reference.CourseCode] = struct{}{}
		usable = true
	}
	if !usable {
		return []TermEntry{}, nil
	}

	ordered := make([]*termGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].key.Less(ordered[j].key) })

	entries := make([]TermEntry, 0, len(ordered))
	for i, g := range ordered {
		entry := g.entry
		entry.Ordinal = i + 1
		entry.Key = g.key
		entry.TermCode = g.key.String()
		entry.Courses = make([]string, 0, len(g.courses))
		for course := range g.courses {
			entry.Courses = append(entry.Courses, course)
		}
		sort.Strings(entry.Courses)
		if major, ok := cat.MajorForCourses(entry.Courses); ok {
			entry.Major = major
		}
		entry.AmbiguousMajor = cat.AmbiguousMajor(entry.Courses)
		if program, ok := cat.LanguageProgramForCourses(entry.Courses); ok {
			entry.LanguageProgram = program
		}
		entry.AmbiguousLanguage = cat.AmbiguousLanguageProgram(entry.Courses)
		entries = append(entries, entry)
	}
	return entries, nil
}
