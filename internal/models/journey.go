package models

import "time"

// TransitionStatus describes how a student entered a journey segment.
type TransitionStatus string

const (
	TransitionInitial  TransitionStatus = "INITIAL"
	TransitionSwitched TransitionStatus = "SWITCHED"
)

// ConfidenceTier buckets journeys for reporting.
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "HIGH"
	ConfidenceMedium ConfidenceTier = "MEDIUM"
	ConfidenceLow    ConfidenceTier = "LOW"
)

// JourneyMode controls how periods are grouped into persisted journeys.
type JourneyMode string

const (
	// JourneyModeConsolidated stores one journey carrying every segment.
	JourneyModeConsolidated JourneyMode = "consolidated"
	// JourneyModePerPeriod stores one journey per detected period.
	JourneyModePerPeriod JourneyMode = "per_period"
)

// AcademicJourney is the persisted reconstruction of a student's path.
type AcademicJourney struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id" validate:"required"`
	RunID           string           `db:"run_id" json:"run_id"`
	ConfidenceScore float64          `db:"confidence_score" json:"confidence_score" validate:"gte=0,lte=1"`
	ConfidenceTier  ConfidenceTier   `db:"confidence_tier" json:"confidence_tier"`
	NeedsReview     bool             `db:"needs_review" json:"needs_review"`
	DataIssues      StringList       `db:"data_issues" json:"data_issues"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	Segments        []JourneySegment `db:"-" json:"segments" validate:"min=1,dive"`
}

// JourneySegment is one program affiliation inside a journey.
type JourneySegment struct {
	ID               string           `db:"id" json:"id"`
	JourneyID        string           `db:"journey_id" json:"journey_id"`
	Sequence         int              `db:"sequence" json:"sequence"`
	ProgramType      ProgramType      `db:"program_type" json:"program_type" validate:"oneof=academic language"`
	ProgramReference string           `db:"program_reference" json:"program_reference" validate:"required"`
	TransitionStatus TransitionStatus `db:"transition_status" json:"transition_status"`
	IsCurrent        bool             `db:"is_current" json:"is_current"`
	StartTerm        string           `db:"start_term" json:"start_term" validate:"required"`
	EndTerm          string           `db:"end_term" json:"end_term" validate:"required"`
	StartDate        time.Time        `db:"start_date" json:"start_date"`
	StopDate         time.Time        `db:"stop_date" json:"stop_date"`
	TotalTerms       int              `db:"total_terms" json:"total_terms" validate:"min=1"`
	EntryLevel       *string          `db:"entry_level" json:"entry_level,omitempty"`
	FinishingLevel   *string          `db:"finishing_level" json:"finishing_level,omitempty"`
	ConfidenceScore  float64          `db:"confidence_score" json:"confidence_score" validate:"gte=0,lte=1"`
}

// ReviewFilter narrows the review-queue listing.
type ReviewFilter struct {
	RunID    string
	MaxScore *float64
	Limit    int
	Offset   int
}
