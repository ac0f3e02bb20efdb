package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

// StudentRepository answers identity questions against the students table.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Exists reports whether a student record is present.
func (r *StudentRepository) Exists(ctx context.Context, studentID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)", studentID); err != nil {
		return false, fmt.Errorf("check student %s: %w", studentID, err)
	}
	return exists, nil
}

// ListIDs pages through student identifiers in ascending order, starting after page.AfterID.
func (r *StudentRepository) ListIDs(ctx context.Context, page models.StudentPage) ([]string, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 200
	}
	var ids []string
	const query = "SELECT id FROM students WHERE id > $1 ORDER BY id ASC LIMIT $2"
	if err := r.db.SelectContext(ctx, &ids, query, page.AfterID, limit); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return ids, nil
}
