package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/journey-reconciler/internal/models"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
)

// A second run for an already reconciled student trips either the primary
// key or the one-run-per-student exclusion constraint.
const (
	uniqueViolation    = "23505"
	exclusionViolation = "23P01"
)

// JourneyRepository persists reconstructed journeys and their segments.
type JourneyRepository struct {
	db *sqlx.DB
}

// NewJourneyRepository constructs the repository.
func NewJourneyRepository(db *sqlx.DB) *JourneyRepository {
	return &JourneyRepository{db: db}
}

// ExistsForStudent reports whether any journey has been stored for the student.
func (r *JourneyRepository) ExistsForStudent(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM academic_journeys WHERE student_id = $1)", studentID); err != nil {
		return false, fmt.Errorf("check journey for student %s: %w", studentID, err)
	}
	return exists, nil
}

// Create stores journeys with their segments in one transaction. Writers for
// the same student are serialised by a transaction-scoped advisory lock, and a
// student that already has a journey, or a constraint violation, is reported
// as appErrors.ErrDuplicateJourney.
func (r *JourneyRepository) Create(ctx context.Context, journeys []*models.AcademicJourney) error {
	if len(journeys) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journey tx: %w", err)
	}

	locked := make(map[string]bool, 1)
	for _, journey := range journeys {
		if locked[journey.StudentID] {
			continue
		}
		locked[journey.StudentID] = true
		if err := claimStudent(ctx, tx, journey.StudentID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	const journeyQuery = `INSERT INTO academic_journeys (id, student_id, run_id, confidence_score, confidence_tier, needs_review, data_issues, created_at)
VALUES (:id, :student_id, :run_id, :confidence_score, :confidence_tier, :needs_review, :data_issues, :created_at)`
	const segmentQuery = `INSERT INTO academic_journey_segments (id, journey_id, sequence, program_type, program_reference, transition_status, is_current, start_term, end_term, start_date, stop_date, total_terms, entry_level, finishing_level, confidence_score)
VALUES (:id, :journey_id, :sequence, :program_type, :program_reference, :transition_status, :is_current, :start_term, :end_term, :start_date, :stop_date, :total_terms, :entry_level, :finishing_level, :confidence_score)`

	now := time.Now().UTC()
	for _, journey := range journeys {
		if journey.ID == "" {
			journey.ID = uuid.NewString()
		}
		if journey.CreatedAt.IsZero() {
			journey.CreatedAt = now
		}
		if journey.DataIssues == nil {
			journey.DataIssues = models.StringList{}
		}
		if _, err := tx.NamedExecContext(ctx, journeyQuery, journey); err != nil {
			_ = tx.Rollback()
			return translateWriteError(fmt.Errorf("insert journey for student %s: %w", journey.StudentID, err))
		}
		for i := range journey.Segments {
			segment := &journey.Segments[i]
			if segment.ID == "" {
				segment.ID = uuid.NewString()
			}
			segment.JourneyID = journey.ID
			if _, err := tx.NamedExecContext(ctx, segmentQuery, segment); err != nil {
				_ = tx.Rollback()
				return translateWriteError(fmt.Errorf("insert journey segment %d: %w", segment.Sequence, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return translateWriteError(fmt.Errorf("commit journey tx: %w", err))
	}
	return nil
}

// claimStudent takes the per-student lock and checks, under it, that no
// journey exists yet.
func claimStudent(ctx context.Context, tx *sqlx.Tx, studentID string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", studentID); err != nil {
		return fmt.Errorf("lock student %s: %w", studentID, err)
	}
	var exists bool
	if err := tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM academic_journeys WHERE student_id = $1)", studentID); err != nil {
		return fmt.Errorf("recheck journey for student %s: %w", studentID, err)
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateJourney, fmt.Sprintf("journey already exists for student %s", studentID))
	}
	return nil
}

// ListForReview returns journeys flagged for review, lowest score first, with their segments.
func (r *JourneyRepository) ListForReview(ctx context.Context, filter models.ReviewFilter) ([]models.AcademicJourney, error) {
	conditions := []string{"needs_review = TRUE"}
	var args []interface{}
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		conditions = append(conditions, fmt.Sprintf("run_id = $%d", len(args)))
	}
	if filter.MaxScore != nil {
		args = append(args, *filter.MaxScore)
		conditions = append(conditions, fmt.Sprintf("confidence_score <= $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT id, student_id, run_id, confidence_score, confidence_tier, needs_review, data_issues, created_at
FROM academic_journeys WHERE %s ORDER BY confidence_score ASC, student_id ASC LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), len(args)-1, len(args))

	var journeys []models.AcademicJourney
	if err := r.db.SelectContext(ctx, &journeys, query, args...); err != nil {
		return nil, fmt.Errorf("list journeys for review: %w", err)
	}
	if len(journeys) == 0 {
		return journeys, nil
	}

	ids := make([]string, len(journeys))
	index := make(map[string]int, len(journeys))
	for i, journey := range journeys {
		ids[i] = journey.ID
		index[journey.ID] = i
	}
	segmentQuery, segmentArgs, err := sqlx.In(`SELECT id, journey_id, sequence, program_type, program_reference, transition_status, is_current, start_term, end_term, start_date, stop_date, total_terms, entry_level, finishing_level, confidence_score
FROM academic_journey_segments WHERE journey_id IN (?) ORDER BY journey_id, sequence`, ids)
	if err != nil {
		return nil, fmt.Errorf("build segment query: %w", err)
	}
	var segments []models.JourneySegment
	if err := r.db.SelectContext(ctx, &segments, r.db.Rebind(segmentQuery), segmentArgs...); err != nil {
		return nil, fmt.Errorf("list journey segments: %w", err)
	}
	for _, segment := range segments {
		if i, ok := index[segment.JourneyID]; ok {
			journeys[i].Segments = append(journeys[i].Segments, segment)
		}
	}
	return journeys, nil
}

func translateWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == uniqueViolation || pqErr.Code == exclusionViolation) {
		return appErrors.Because(err, appErrors.ErrDuplicateJourney, "")
	}
	return err
}
