package models

// ProgramFamily groups program codes by how their tokens are decoded.
type ProgramFamily string

const (
	FamilyAcademic ProgramFamily = "academic"
	FamilyLanguage ProgramFamily = "language"
	FamilyUnknown  ProgramFamily = "unknown"
)

// DecodedCourseReference is the normalized form of a legacy class identifier.
// Empty strings stand for absent values.
type DecodedCourseReference struct {
	CourseCode  string        `json:"course_code,omitempty"`
	Section     string        `json:"section,omitempty"`
	Part        string        `json:"part,omitempty"`
	ProgramCode string        `json:"program_code,omitempty"`
	Family      ProgramFamily `json:"family"`
}

// Empty reports whether decoding produced no course code.
func (r DecodedCourseReference) Empty() bool {
	return r.CourseCode == ""
}
