package models

// AttendanceValid is the ledger sentinel marking an enrollment row as attended.
const AttendanceValid = "1"

// RawEnrollmentRecord is one student-course-term row from the legacy ledger.
type RawEnrollmentRecord struct {
	ID             string  `db:"id" json:"id"`
	StudentID      string  `db:"student_id" json:"student_id"`
	TermCode       string  `db:"term_code" json:"term_code"`
	RawToken       string  `db:"raw_token" json:"raw_token"`
	ProgramCode    string  `db:"program_code" json:"program_code"`
	Grade          *string `db:"grade" json:"grade,omitempty"`
	AttendanceFlag string  `db:"attendance_flag" json:"attendance_flag"`
}

// EnrollmentFilter scopes ledger reads.
type EnrollmentFilter struct {
	StudentID      string
	AttendanceFlag string
}

// StudentPage pages through distinct student identifiers in the ledger.
type StudentPage struct {
	AfterID string
	Limit   int
}
