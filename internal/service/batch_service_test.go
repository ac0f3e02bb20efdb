package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/repository"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
)

type batchFixture struct {
	students    *fakeStudents
	enrollments *fakeEnrollments
	journeys    *fakeJourneyStore
	rejections  *fakeRejections
	cache       *fakeCache
	metrics     *MetricsService
	svc         *BatchService
}

func newBatchFixture(t *testing.T, records map[string][]models.RawEnrollmentRecord, ids ...string) *batchFixture {
	t.Helper()
	f := &batchFixture{
		students:    &fakeStudents{ids: ids, missing: map[string]bool{}},
		enrollments: &fakeEnrollments{records: records, panicOn: map[string]bool{}},
		journeys:    newFakeJourneyStore(),
		rejections:  &fakeRejections{},
		cache:       newFakeCache(),
		metrics:     NewMetricsService(),
	}
	analyzer := NewAnalyzer(loadCatalog(t), nil)
	synth := NewJourneyService(f.journeys, nil, nil, nil)
	f.svc = NewBatchService(f.students, f.enrollments, f.rejections, synth, analyzer, f.cache, f.metrics, nil,
		BatchConfig{BatchSize: 3, Workers: 4}, nil)
	return f
}

func TestBatchServiceIsolatesStudentFailures(t *testing.T) {
	unattended := record("stu-3", "2020-1", "CS101", "BS", "A")
	unattended.AttendanceFlag = "0"
	records := map[string][]models.RawEnrollmentRecord{
		"stu-1": csStudent("stu-1"),
		"stu-3": {unattended},
		"stu-4": {record("stu-4", "2020-1", "#!?", "IEAP", "A")},
		"stu-5": csStudent("stu-5"),
		"stu-6": {record("stu-6", "2020-1", "GEN100", "BA", "A")},
		"stu-7": {record("stu-7", "someday", "CS101", "BS", "A")},
	}
	f := newBatchFixture(t, records, "stu-1", "stu-2", "stu-3", "stu-4", "stu-5", "stu-6", "stu-7")
	f.enrollments.panicOn["stu-5"] = true

	summary, err := f.svc.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)

	assert.Equal(t, 7, summary.StudentsProcessed)
	assert.Equal(t, 1, summary.StudentsReconciled)
	assert.Equal(t, 1, summary.JourneysCreated)
	assert.Equal(t, 6, summary.Rejected())
	assert.True(t, summary.Accounted())
	assert.Equal(t, models.TierBreakdown{High: 1}, summary.Tiers)
	assert.Equal(t, 1, summary.Errors)
	assert.Len(t, summary.Rejections, len(models.RejectionCategories))

	assert.Equal(t, map[string]models.RejectionCategory{
		"stu-2": models.RejectNoEnrollments,
		"stu-3": models.RejectInsufficientData,
		"stu-4": models.RejectCourseNotFound,
		"stu-5": models.RejectUnknownError,
		"stu-6": models.RejectMajorDetectionFailed,
		"stu-7": models.RejectTermNotFound,
	}, f.rejections.byStudent())
	for _, r := range f.rejections.items {
		assert.Equal(t, summary.RunID, r.RunID)
		assert.NotEmpty(t, r.Message)
	}

	var cached Analysis
	require.NoError(t, f.cache.Get(context.Background(), repository.HistoryKey("stu-1"), &cached))
	assert.Equal(t, "Data Science", cached.History.FinalAcademicMajor)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.students.WithLabelValues(OutcomeReconciled)))
	assert.Equal(t, 6.0, testutil.ToFloat64(f.metrics.students.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.rejections.WithLabelValues(string(models.RejectUnknownError))))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.journeys.WithLabelValues(string(models.ConfidenceHigh))))
}

func TestBatchServiceRerunIsIdempotent(t *testing.T) {
	records := map[string][]models.RawEnrollmentRecord{
		"stu-1": csStudent("stu-1"),
		"stu-2": csStudent("stu-2"),
	}
	f := newBatchFixture(t, records, "stu-1", "stu-2")

	first, err := f.svc.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.JourneysCreated)

	var before Analysis
	require.NoError(t, f.cache.Get(context.Background(), repository.HistoryKey("stu-1"), &before))
	sets := f.cache.sets

	second, err := f.svc.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.JourneysCreated)
	assert.Equal(t, 2, second.StudentsSkipped)
	assert.Equal(t, 0, second.Rejected())
	assert.True(t, second.Accounted())
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 2, f.journeys.total())

	var after Analysis
	require.NoError(t, f.cache.Get(context.Background(), repository.HistoryKey("stu-1"), &after))
	assert.Equal(t, sets+2, f.cache.sets)
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, "Data Science", after.History.FinalAcademicMajor)
}

func TestBatchServiceCollapsesRepeatedStudentIDs(t *testing.T) {
	f := newBatchFixture(t, map[string][]models.RawEnrollmentRecord{"stu-1": csStudent("stu-1")})
	f.journeys.existsDelay = 20 * time.Millisecond

	summary, err := f.svc.Run(context.Background(), BatchRequest{StudentIDs: []string{"stu-1", "stu-1"}, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.StudentsProcessed)
	assert.Equal(t, 1, summary.StudentsReconciled)
	assert.Equal(t, 0, summary.StudentsSkipped)
	assert.Equal(t, 0, summary.Rejected())
	assert.True(t, summary.Accounted())
	assert.Equal(t, 1, f.journeys.total())
	assert.Equal(t, 1, f.journeys.creates)
}

func TestUniqueIDsKeepsFirstOccurrence(t *testing.T) {
	assert.Nil(t, uniqueIDs(nil))
	assert.Equal(t, []string{"stu-2", "stu-1", "stu-3"}, uniqueIDs([]string{"stu-2", "stu-1", "stu-2", "stu-3", "stu-1"}))
}

func TestBatchServicePagesThroughStudents(t *testing.T) {
	records := make(map[string][]models.RawEnrollmentRecord)
	var ids []string
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("stu-%02d", i)
		ids = append(ids, id)
		records[id] = csStudent(id)
	}
	f := newBatchFixture(t, records, ids...)

	summary, err := f.svc.Run(context.Background(), BatchRequest{BatchSize: 4, Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, 25, summary.StudentsProcessed)
	assert.Equal(t, 25, summary.StudentsReconciled)
	assert.Equal(t, 25, f.journeys.total())
	assert.Equal(t, 7, f.students.pages)
}

func TestBatchServiceExplicitStudents(t *testing.T) {
	f := newBatchFixture(t, map[string][]models.RawEnrollmentRecord{"stu-1": csStudent("stu-1")})
	f.students.missing["ghost"] = true
	threshold := 0.99

	summary, err := f.svc.Run(context.Background(), BatchRequest{
		StudentIDs:          []string{"stu-1", "ghost"},
		ConfidenceThreshold: &threshold,
		Mode:                models.JourneyModePerPeriod,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.StudentsProcessed)
	assert.Equal(t, 3, summary.JourneysCreated)
	assert.Equal(t, 1, summary.Rejections[models.RejectStudentNotFound])
	assert.Equal(t, 0, f.students.pages)
	flagged := 0
	for _, j := range f.journeys.stored["stu-1"] {
		if j.NeedsReview {
			flagged++
			assert.Equal(t, "Data Science", j.Segments[0].ProgramReference)
		}
	}
	assert.Equal(t, 1, flagged)
}

func TestBatchServiceAbortsWhenStudentsCannotBeListed(t *testing.T) {
	f := newBatchFixture(t, nil)
	f.students.listErr = errors.New("dial tcp: connection refused")

	summary, err := f.svc.Run(context.Background(), BatchRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.StudentsProcessed)
}

func TestBatchServiceStopsOnCancel(t *testing.T) {
	f := newBatchFixture(t, map[string][]models.RawEnrollmentRecord{"stu-1": csStudent("stu-1")}, "stu-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.svc.Run(ctx, BatchRequest{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.StudentsProcessed)
	assert.Equal(t, 0, f.journeys.total())
}

func TestBatchServiceValidatesRequest(t *testing.T) {
	f := newBatchFixture(t, nil)
	bad := 1.5
	for name, req := range map[string]BatchRequest{
		"threshold": {ConfidenceThreshold: &bad},
		"mode":      {Mode: "weekly"},
		"workers":   {Workers: 1000},
		"blank id":  {StudentIDs: []string{""}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Run(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}
