package models

import "time"

// RejectionCategory is the closed set of reasons a student could not be processed.
type RejectionCategory string

const (
	RejectStudentNotFound      RejectionCategory = "student_not_found"
	RejectNoEnrollments        RejectionCategory = "no_enrollments"
	RejectInsufficientData     RejectionCategory = "insufficient_data"
	RejectDataConflict         RejectionCategory = "data_conflict"
	RejectMajorDetectionFailed RejectionCategory = "major_detection_failed"
	RejectDatabaseError        RejectionCategory = "database_error"
	RejectValidationError      RejectionCategory = "validation_error"
	RejectDuplicateJourney     RejectionCategory = "duplicate_journey"
	RejectTermNotFound         RejectionCategory = "term_not_found"
	RejectCourseNotFound       RejectionCategory = "course_not_found"
	RejectUnknownError         RejectionCategory = "unknown_error"
)

// RejectionCategories lists every category in reporting order.
var RejectionCategories = []RejectionCategory{
	RejectStudentNotFound,
	RejectNoEnrollments,
	RejectInsufficientData,
	RejectDataConflict,
	RejectMajorDetectionFailed,
	RejectDatabaseError,
	RejectValidationError,
	RejectDuplicateJourney,
	RejectTermNotFound,
	RejectCourseNotFound,
	RejectUnknownError,
}

// JourneyRejection records why a student produced no journey in a run.
type JourneyRejection struct {
	ID        string            `db:"id" json:"id"`
	StudentID string            `db:"student_id" json:"student_id"`
	RunID     string            `db:"run_id" json:"run_id"`
	Category  RejectionCategory `db:"category" json:"category"`
	Message   string            `db:"message" json:"message"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}
