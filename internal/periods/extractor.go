// Package periods segments a term timeline into continuous program periods.
package periods

import (
	"sort"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/timeline"
)

// accumulator tracks the open period of one pass.
type accumulator struct {
	period   *models.ProgramPeriod
	evidence map[string]struct{}
	periods  []models.ProgramPeriod
}

func (a *accumulator) open(kind models.ProgramType, name string, term timeline.TermEntry) {
	a.period = &models.ProgramPeriod{
		ProgramType:     kind,
		ProgramName:     name,
		StartTerm:       term.TermCode,
		EndTerm:         term.TermCode,
		StartTermNumber: term.Ordinal,
		EndTermNumber:   term.Ordinal,
		TotalTerms:      1,
	}
	a.evidence = make(map[string]struct{})
}

func (a *accumulator) extend(term timeline.TermEntry) {
	a.period.EndTerm = term.TermCode
	a.period.EndTermNumber = term.Ordinal
	a.period.TotalTerms++
}

func (a *accumulator) collect(courses []string) {
	for _, c := range courses {
		a.evidence[c] = struct{}{}
	}
}

// close finalizes the open period; its end was already set by the last
// extend, which is the term before any switching term.
func (a *accumulator) close() {
	if a.period == nil {
		return
	}
	found := make([]string, 0, len(a.evidence))
	for c := range a.evidence {
		found = append(found, c)
	}
	sort.Strings(found)
	a.period.SignatureCoursesFound = found
	a.periods = append(a.periods, *a.period)
	a.period = nil
	a.evidence = nil
}

// detection picks the field a pass reads from a term.
type detection func(timeline.TermEntry) string

// evidence picks the diagnostic courses of a term for the detected program.
type evidence func(program string, courses []string) []string

func scan(kind models.ProgramType, entries []timeline.TermEntry, detect detection, pick evidence) ([]models.ProgramPeriod, int) {
	var acc accumulator
	foundation := 0
	for _, term := range entries {
		name := detect(term)
		switch {
		case name == "" && acc.period == nil:
			foundation++
		case name == "":
			acc.extend(term)
		case acc.period == nil:
			acc.open(kind, name, term)
			acc.collect(pick(name, term.Courses))
		case acc.period.ProgramName == name:
			acc.extend(term)
			acc.collect(pick(name, term.Courses))
		default:
			acc.close()
			acc.open(kind, name, term)
			acc.collect(pick(name, term.Courses))
		}
	}
	acc.close()
	return acc.periods, foundation
}

// Extract runs the academic and language passes independently and assembles
// the student's program history.
func Extract(cat *catalog.Catalog, studentID string, entries []timeline.TermEntry) models.StudentProgramHistory {
	academic, foundation := scan(models.ProgramTypeAcademic, entries,
		func(t timeline.TermEntry) string { return t.Major },
		cat.SignatureCourses,
	)
	language, _ := scan(models.ProgramTypeLanguage, entries,
		func(t timeline.TermEntry) string { return t.LanguageProgram },
		cat.LevelCourses,
	)
	for i := range language {
		p := &language[i]
		p.EntryLevel, p.FinishingLevel = cat.LevelsForProgram(p.ProgramName, p.SignatureCoursesFound)
	}

	history := models.StudentProgramHistory{
		StudentID:             studentID,
		AcademicPeriods:       academic,
		LanguagePeriods:       language,
		FoundationTerms:       foundation,
		TotalAcademicSwitches: switches(academic),
		TotalLanguageSwitches: switches(language),
		TermsAnalyzed:         len(entries),
	}
	if history.AcademicPeriods == nil {
		history.AcademicPeriods = []models.ProgramPeriod{}
	}
	if history.LanguagePeriods == nil {
		history.LanguagePeriods = []models.ProgramPeriod{}
	}
	if n := len(academic); n > 0 {
		history.FinalAcademicMajor = academic[n-1].ProgramName
	}
	if n := len(language); n > 0 {
		history.FinalLanguageProgram = language[n-1].ProgramName
	}
	return history
}

func switches(periods []models.ProgramPeriod) int {
	if len(periods) == 0 {
		return 0
	}
	return len(periods) - 1
}
