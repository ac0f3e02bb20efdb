package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/repository"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
)

type historyCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type cacheObserver interface {
	RecordCacheOperation(hit bool)
}

// HistoryService answers "what did this student study" without writing journeys.
type HistoryService struct {
	students       studentStore
	enrollments    enrollmentStore
	analyzer       *Analyzer
	cache          historyCache
	metrics        cacheObserver
	attendanceFlag string
	ttl            time.Duration
	logger         *zap.Logger
}

// NewHistoryService constructs a HistoryService. cache and metrics may be nil.
func NewHistoryService(students studentStore, enrollments enrollmentStore, analyzer *Analyzer, cache historyCache, metrics cacheObserver, attendanceFlag string, ttl time.Duration, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attendanceFlag == "" {
		attendanceFlag = models.AttendanceValid
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &HistoryService{
		students:       students,
		enrollments:    enrollments,
		analyzer:       analyzer,
		cache:          cache,
		metrics:        metrics,
		attendanceFlag: attendanceFlag,
		ttl:            ttl,
		logger:         logger,
	}
}

// Get returns the student's derived history and timeline, from cache when possible.
func (s *HistoryService) Get(ctx context.Context, studentID string) (*Analysis, error) {
	key := repository.HistoryKey(studentID)
	if s.cache != nil {
		var cached Analysis
		err := s.cache.Get(ctx, key, &cached)
		switch {
		case err == nil:
			s.observe(true)
			return &cached, nil
		case !errors.Is(err, appErrors.ErrCacheMiss):
			s.logger.Warn("history cache read failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	s.observe(false)

	exists, err := s.students.Exists(ctx, studentID)
	if err != nil {
		return nil, appErrors.Because(err, appErrors.ErrInternal, "failed to look up student")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	records, err := s.enrollments.ListByStudent(ctx, models.EnrollmentFilter{StudentID: studentID, AttendanceFlag: s.attendanceFlag})
	if err != nil {
		return nil, appErrors.Because(err, appErrors.ErrInternal, "failed to load enrollments")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no attended enrollments")
	}

	analysis, err := s.analyzer.Analyze(studentID, records)
	if err != nil {
		return nil, appErrors.Because(err, appErrors.ErrUnresolvable, string(ClassifyError(err)))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, analysis, s.ttl); err != nil {
			s.logger.Warn("history cache write failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return analysis, nil
}

func (s *HistoryService) observe(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}
