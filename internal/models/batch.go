package models

import "time"

// TierBreakdown counts created journeys per confidence tier.
type TierBreakdown struct {
	High               int                       `json:"high"`
	Medium             int                       `json:"medium"`
	Low                int                       `json:"low"`
}

// BatchSummary aggregates the outcome of one reconciliation run.
type BatchSummary struct {
	RunID              string                    `json:"run_id"`
	StudentsProcessed  int                       `json:"students_processed"`
	// StudentsReconciled counts students that received at least one new journey.
	StudentsReconciled int                       `json:"students_reconciled"`
	JourneysCreated    int                       `json:"journeys_created"`
	StudentsSkipped    int                       `json:"students_skipped"`
	Rejections         map[RejectionCategory]int `json:"rejections"`
	Tiers              TierBreakdown             `json:"tiers"`
	Errors             int                       `json:"errors"`
	StartedAt          time.Time                 `json:"started_at"`
	FinishedAt         time.Time                 `json:"finished_at"`
}

// Accounted reports whether every attempted student ended in exactly one outcome.
func (s BatchSummary) Accounted() bool {
	return s.StudentsProcessed == s.StudentsReconciled+s.StudentsSkipped+s.Rejected()
}

// Rejected returns the number of students that ended in a rejection.
func (s BatchSummary) Rejected() int {
	total := 0
	for _, n := range s.Rejections {
		total += n
	}
	return total
}
