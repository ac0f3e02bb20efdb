package service

import (
	"errors"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/timeline"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
	"github.com/noah-isme/journey-reconciler/pkg/jobs"
)

// Per-student failures. Each maps to exactly one rejection category.
var (
	ErrStudentNotFound   = errors.New("student not found")
	ErrNoEnrollments     = errors.New("student has no ledger enrollments")
	ErrInsufficientData  = errors.New("student has no attended enrollments")
	ErrNoUsableCourses   = errors.New("no enrollment token could be decoded")
	ErrNoProgramDetected = errors.New("no major or language program detected")
	ErrDataConflict      = errors.New("derived periods overlap or are out of order")
	ErrJourneyInvalid    = errors.New("synthesized journey failed validation")
	ErrStore             = errors.New("store operation failed")
)

// ClassifyError maps a per-student failure to its rejection category.
// Anything unrecognised, including recovered panics, is unknown_error.
func ClassifyError(err error) models.RejectionCategory {
	switch {
	case err == nil:
		return models.RejectUnknownError
	case errors.Is(err, appErrors.ErrDuplicateJourney):
		return models.RejectDuplicateJourney
	case errors.Is(err, ErrStudentNotFound):
		return models.RejectStudentNotFound
	case errors.Is(err, ErrNoEnrollments):
		return models.RejectNoEnrollments
	case errors.Is(err, ErrInsufficientData):
		return models.RejectInsufficientData
	case errors.Is(err, timeline.ErrMalformedTerm):
		return models.RejectTermNotFound
	case errors.Is(err, ErrNoUsableCourses):
		return models.RejectCourseNotFound
	case errors.Is(err, ErrNoProgramDetected):
		return models.RejectMajorDetectionFailed
	case errors.Is(err, ErrDataConflict):
		return models.RejectDataConflict
	case errors.Is(err, ErrJourneyInvalid):
		return models.RejectValidationError
	case errors.Is(err, jobs.ErrPanic):
		return models.RejectUnknownError
	case errors.Is(err, ErrStore):
		return models.RejectDatabaseError
	default:
		return models.RejectUnknownError
	}
}
