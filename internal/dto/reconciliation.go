package dto

import (
	"time"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

// ReconciliationRequest captures POST /reconciliations payload. Every field is optional.
type ReconciliationRequest struct {
	BatchSize           int                `json:"batchSize"`
	ConfidenceThreshold *float64           `json:"confidenceThreshold,omitempty"`
	StudentIDs          []string           `json:"studentIds,omitempty"`
	Workers             int                `json:"workers"`
	Mode                models.JourneyMode `json:"mode,omitempty"`
	Async               bool               `json:"async"`
}

// ReconciliationAccepted is returned when a run is started in the background.
type ReconciliationAccepted struct {
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// DecodeResponse exposes a single decode for troubleshooting tokens.
type DecodeResponse struct {
	Token       string                        `json:"token"`
	ProgramCode string                        `json:"programCode,omitempty"`
	Reference   models.DecodedCourseReference `json:"reference"`
	MatchedRule string                        `json:"matchedRule,omitempty"`
	Warnings    []DecodeWarning               `json:"warnings"`
}

// DecodeWarning mirrors a decoder warning.
type DecodeWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
