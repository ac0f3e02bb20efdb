package models

// ProgramType distinguishes academic majors from language tracks.
type ProgramType string

const (
	ProgramTypeAcademic ProgramType = "academic"
	ProgramTypeLanguage ProgramType = "language"
)

// ProgramPeriod is a maximal run of terms attributed to one major or language program.
type ProgramPeriod struct {
	ProgramType           ProgramType `json:"program_type"`
	ProgramName           string      `json:"program_name"`
	StartTerm             string      `json:"start_term"`
	EndTerm               string      `json:"end_term"`
	StartTermNumber       int         `json:"start_term_number"`
	EndTermNumber         int         `json:"end_term_number"`
	TotalTerms            int         `json:"total_terms"`
	SignatureCoursesFound []string    `json:"signature_courses_found"`
	EntryLevel            string      `json:"entry_level,omitempty"`
	FinishingLevel        string      `json:"finishing_level,omitempty"`
}

// StudentProgramHistory is the derived per-run view of a student's affiliations.
type StudentProgramHistory struct {
	StudentID             string          `json:"student_id"`
	AcademicPeriods       []ProgramPeriod `json:"academic_periods"`
	LanguagePeriods       []ProgramPeriod `json:"language_periods"`
	FoundationTerms       int             `json:"foundation_terms"`
	TotalAcademicSwitches int             `json:"total_academic_switches"`
	TotalLanguageSwitches int             `json:"total_language_switches"`
	FinalAcademicMajor    string          `json:"final_academic_major,omitempty"`
	FinalLanguageProgram  string          `json:"final_language_program,omitempty"`
	TermsAnalyzed         int             `json:"terms_analyzed"`
}

// HasPeriods reports whether any affiliation was detected.
func (h StudentProgramHistory) HasPeriods() bool {
	return len(h.AcademicPeriods) > 0 || len(h.LanguagePeriods) > 0
}
