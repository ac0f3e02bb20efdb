package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

const enrollmentColumns = "id, student_id, term_code, raw_token, program_code, grade, attendance_flag"

// EnrollmentRepository reads the legacy enrollment ledger. The ledger is never written.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByStudent returns a student's ledger rows, optionally limited to one attendance flag.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, filter models.EnrollmentFilter) ([]models.RawEnrollmentRecord, error) {
	conditions := []string{"student_id = $1"}
	args := []interface{}{filter.StudentID}
	if filter.AttendanceFlag != "" {
		conditions = append(conditions, fmt.Sprintf("attendance_flag = $%d", len(args)+1))
		args = append(args, filter.AttendanceFlag)
	}

	query := fmt.Sprintf("SELECT %s FROM legacy_enrollments WHERE %s ORDER BY term_code ASC, id ASC",
		enrollmentColumns, strings.Join(conditions, " AND "))

	var records []models.RawEnrollmentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments for student %s: %w", filter.StudentID, err)
	}
	return records, nil
}

// CountByStudent returns how many ledger rows exist for a student regardless of attendance.
func (r *EnrollmentRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM legacy_enrollments WHERE student_id = $1", studentID); err != nil {
		return 0, fmt.Errorf("count enrollments for student %s: %w", studentID, err)
	}
	return total, nil
}
