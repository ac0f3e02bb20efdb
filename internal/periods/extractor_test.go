package periods

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/timeline"
)

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)
	return cat
}

// term builds a timeline entry the way timeline.Build would for courses.
func term(cat *catalog.Catalog, ordinal int, courses ...string) timeline.TermEntry {
	entry := timeline.TermEntry{
		Ordinal:  ordinal,
		TermCode: fmt.Sprintf("2019-%d", ordinal),
		Courses:  courses,
	}
	entry.Major, _ = cat.MajorForCourses(courses)
	entry.AmbiguousMajor = cat.AmbiguousMajor(courses)
	entry.LanguageProgram, _ = cat.LanguageProgramForCourses(courses)
	return entry
}

func TestExtractGapDoesNotBreakContinuity(t *testing.T) {
	cat := loadCatalog(t)
	entries := []timeline.TermEntry{
		term(cat, 1, "CS101"),
		term(cat, 2, "GEN100"),
		term(cat, 3, "CS201"),
	}

	history := Extract(cat, "stu-1", entries)
	require.Len(t, history.AcademicPeriods, 1)
	p := history.AcademicPeriods[0]
	assert.Equal(t, "Computer Science", p.ProgramName)
	assert.Equal(t, 1, p.StartTermNumber)
	assert.Equal(t, 3, p.EndTermNumber)
	assert.Equal(t, 3, p.TotalTerms)
	assert.Equal(t, []string{"CS101", "CS201"}, p.SignatureCoursesFound)
	assert.Equal(t, 0, history.TotalAcademicSwitches)
	assert.Equal(t, 0, history.FoundationTerms)
}

func TestExtractSwitchClosesAtPreviousTerm(t *testing.T) {
	cat := loadCatalog(t)
	entries := []timeline.TermEntry{
		term(cat, 1, "CS101"),
		term(cat, 2, "CS201"),
		term(cat, 3, "BUS101"),
	}

	history := Extract(cat, "stu-1", entries)
	require.Len(t, history.AcademicPeriods, 2)
	first, second := history.AcademicPeriods[0], history.AcademicPeriods[1]
	assert.Equal(t, "2019-2", first.EndTerm)
	assert.Equal(t, 2, first.EndTermNumber)
	assert.Equal(t, 2, first.TotalTerms)
	assert.Equal(t, "Business Administration", second.ProgramName)
	assert.Equal(t, 3, second.StartTermNumber)
	assert.Equal(t, 3, second.EndTermNumber)
	assert.Equal(t, 1, history.TotalAcademicSwitches)
	assert.Equal(t, "Business Administration", history.FinalAcademicMajor)
}

func TestExtractAmbiguousTermBeforeAnyPeriodIsFoundation(t *testing.T) {
	cat := loadCatalog(t)
	entries := []timeline.TermEntry{
		term(cat, 1, "CS101", "PSY101"),
		term(cat, 2, "GEN100"),
		term(cat, 3, "PSY210"),
	}
	require.True(t, entries[0].AmbiguousMajor)

	history := Extract(cat, "stu-1", entries)
	assert.Equal(t, 2, history.FoundationTerms)
	require.Len(t, history.AcademicPeriods, 1)
	assert.Equal(t, "Psychology", history.AcademicPeriods[0].ProgramName)
	assert.Equal(t, 3, history.AcademicPeriods[0].StartTermNumber)
}

func TestExtractAmbiguousTermExtendsOpenPeriod(t *testing.T) {
	cat := loadCatalog(t)
	entries := []timeline.TermEntry{
		term(cat, 1, "PSY101"),
		term(cat, 2, "CS101", "PSY210"),
	}

	history := Extract(cat, "stu-1", entries)
	require.Len(t, history.AcademicPeriods, 1)
	p := history.AcademicPeriods[0]
	assert.Equal(t, "Psychology", p.ProgramName)
	assert.Equal(t, 2, p.TotalTerms)
	assert.Equal(t, []string{"PSY101"}, p.SignatureCoursesFound)
}

func TestExtractLanguageTrackIndependentOfAcademic(t *testing.T) {
	cat := loadCatalog(t)
	entries := []timeline.TermEntry{
		term(cat, 1, "IEAP-BEG"),
		term(cat, 2, "IEAP-02"),
		term(cat, 3, "IEAP-04", "CS101"),
		term(cat, 4, "CS201"),
		term(cat, 5, "GE-03", "CS301"),
	}

	history := Extract(cat, "stu-1", entries)
	assert.Equal(t, 2, history.FoundationTerms)
	require.Len(t, history.AcademicPeriods, 1)
	assert.Equal(t, 3, history.AcademicPeriods[0].StartTermNumber)
	assert.Equal(t, 5, history.AcademicPeriods[0].EndTermNumber)

	require.Len(t, history.LanguagePeriods, 2)
	ieap := history.LanguagePeriods[0]
	assert.Equal(t, "IEAP", ieap.ProgramName)
	assert.Equal(t, models.ProgramTypeLanguage, ieap.ProgramType)
	assert.Equal(t, 4, ieap.EndTermNumber)
	assert.Equal(t, "IEAP-BEG", ieap.EntryLevel)
	assert.Equal(t, "IEAP-04", ieap.FinishingLevel)
	assert.Equal(t, "GE", history.LanguagePeriods[1].ProgramName)
	assert.Equal(t, 1, history.TotalLanguageSwitches)
	assert.Equal(t, "GE", history.FinalLanguageProgram)
	assert.Equal(t, 5, history.TermsAnalyzed)
}

func TestExtractPeriodsAreOrderedAndDisjoint(t *testing.T) {
	cat := loadCatalog(t)
	sequence := [][]string{
		{"GEN100"}, {"CS101"}, {"CS201"}, {"BUS101"}, {}, {"BUS210"}, {"CS301"}, {"MATH210"},
	}
	entries := make([]timeline.TermEntry, 0, len(sequence))
	for i, courses := range sequence {
		entries = append(entries, term(cat, i+1, courses...))
	}

	history := Extract(cat, "stu-1", entries)
	require.Len(t, history.AcademicPeriods, 4)
	covered := history.FoundationTerms
	for i, p := range history.AcademicPeriods {
		assert.Equal(t, p.EndTermNumber-p.StartTermNumber+1, p.TotalTerms)
		covered += p.TotalTerms
		if i > 0 {
			assert.Equal(t, history.AcademicPeriods[i-1].EndTermNumber+1, p.StartTermNumber)
		}
	}
	assert.Equal(t, len(entries), covered)
	assert.Equal(t, 3, history.TotalAcademicSwitches)
}

func TestExtractEmptyTimeline(t *testing.T) {
	cat := loadCatalog(t)
	history := Extract(cat, "stu-1", nil)
	assert.False(t, history.HasPeriods())
	assert.NotNil(t, history.AcademicPeriods)
	assert.NotNil(t, history.LanguagePeriods)
	assert.Equal(t, 0, history.TotalAcademicSwitches)
	assert.Equal(t, 0, history.TermsAnalyzed)
}
