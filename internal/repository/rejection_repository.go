package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

// RejectionRepository persists per-student rejection records.
type RejectionRepository struct {
	db *sqlx.DB
}

// NewRejectionRepository constructs the repository.
func NewRejectionRepository(db *sqlx.DB) *RejectionRepository {
	return &RejectionRepository{db: db}
}

// Create stores a rejection.
func (r *RejectionRepository) Create(ctx context.Context, rejection *models.JourneyRejection) error {
	if rejection.ID == "" {
		rejection.ID = uuid.NewString()
	}
	if rejection.CreatedAt.IsZero() {
		rejection.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO journey_rejections (id, student_id, run_id, category, message, created_at)
VALUES (:id, :student_id, :run_id, :category, :message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rejection); err != nil {
		return fmt.Errorf("create rejection for student %s: %w", rejection.StudentID, err)
	}
	return nil
}

// CountByRun groups a run's rejections by category.
func (r *RejectionRepository) CountByRun(ctx context.Context, runID string) (map[models.RejectionCategory]int, error) {
	var rows []struct {
		Category models.RejectionCategory `db:"category"`
		Total    int                      `db:"total"`
	}
	const query = "SELECT category, COUNT(*) AS total FROM journey_rejections WHERE run_id = $1 GROUP BY category"
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("count rejections for run %s: %w", runID, err)
	}
	counts := make(map[models.RejectionCategory]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Total
	}
	return counts, nil
}
