package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/journey-reconciler/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryListByStudentFiltersAttendance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "term_code", "raw_token", "program_code", "grade", "attendance_flag"}).
		AddRow("enr-1", "stu-1", "2021-1", "CORE_CS101", "BS", "A", "1").
		AddRow("enr-2", "stu-1", "2021-1", "E1-A_MORNING", "IEAP", nil, "1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, term_code, raw_token, program_code, grade, attendance_flag FROM legacy_enrollments WHERE student_id = $1 AND attendance_flag = $2 ORDER BY term_code ASC, id ASC")).
		WithArgs("stu-1", "1").
		WillReturnRows(rows)

	records, err := repo.ListByStudent(context.Background(), models.EnrollmentFilter{StudentID: "stu-1", AttendanceFlag: "1"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].Grade)
	require.Equal(t, "A", *records[0].Grade)
	require.Nil(t, records[1].Grade)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListByStudentWithoutFlag(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM legacy_enrollments WHERE student_id = $1 ORDER BY")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := repo.ListByStudent(context.Background(), models.EnrollmentFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	require.Empty(t, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryWrapsErrors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	boom := errors.New("connection reset")
	mock.ExpectQuery("FROM legacy_enrollments").WillReturnError(boom)

	_, err := repo.ListByStudent(context.Background(), models.EnrollmentFilter{StudentID: "stu-9"})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "stu-9")
}

func TestEnrollmentRepositoryCountByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM legacy_enrollments WHERE student_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 3, total)
}
