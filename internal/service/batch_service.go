package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/repository"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
	"github.com/noah-isme/journey-reconciler/pkg/jobs"
	"github.com/noah-isme/journey-reconciler/pkg/logger"
)

type studentStore interface {
	Exists(ctx context.Context, studentID string) (bool, error)
	ListIDs(ctx context.Context, page models.StudentPage) ([]string, error)
}

type enrollmentStore interface {
	ListByStudent(ctx context.Context, filter models.EnrollmentFilter) ([]models.RawEnrollmentRecord, error)
	CountByStudent(ctx context.Context, studentID string) (int, error)
}

type rejectionStore interface {
	Create(ctx context.Context, rejection *models.JourneyRejection) error
}

type journeySynthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisResult, error)
}

type historyWriter interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type batchMetrics interface {
	ObserveStudent(outcome string, duration time.Duration)
	ObserveJourney(tier models.ConfidenceTier)
	ObserveRejection(category models.RejectionCategory)
	ObserveBatch(summary *models.BatchSummary)
}

// BatchRequest parameterises one reconciliation run. Zero values fall back to configuration.
type BatchRequest struct {
	RunID               string             `json:"run_id" validate:"omitempty,uuid"`
	BatchSize           int                `json:"batch_size" validate:"omitempty,min=1,max=5000"`
	ConfidenceThreshold *float64           `json:"confidence_threshold" validate:"omitempty,gte=0,lte=1"`
	StudentIDs          []string           `json:"student_ids" validate:"omitempty,max=10000,dive,required"`
	Workers             int                `json:"workers" validate:"omitempty,min=1,max=64"`
	Mode                models.JourneyMode `json:"mode" validate:"omitempty,oneof=consolidated per_period"`
}

// BatchConfig holds the defaults applied to every request.
type BatchConfig struct {
	BatchSize           int
	Workers             int
	ConfidenceThreshold float64
	Mode                models.JourneyMode
	ValidAttendanceFlag string
	HistoryTTL          time.Duration
}

// BatchService orchestrates reconciliation over many students.
type BatchService struct {
	students    studentStore
	enrollments enrollmentStore
	rejections  rejectionStore
	journeys    journeySynthesizer
	analyzer    *Analyzer
	cache       historyWriter
	metrics     batchMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         BatchConfig
}

// NewBatchService wires the orchestrator. cache and metrics are optional.
func NewBatchService(students studentStore, enrollments enrollmentStore, rejections rejectionStore, journeys journeySynthesizer, analyzer *Analyzer, cache historyWriter, metrics batchMetrics, validate *validator.Validate, cfg BatchConfig, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Mode == "" {
		cfg.Mode = models.JourneyModeConsolidated
	}
	if cfg.ValidAttendanceFlag == "" {
		cfg.ValidAttendanceFlag = models.AttendanceValid
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = 30 * time.Minute
	}
	return &BatchService{
		students:    students,
		enrollments: enrollments,
		rejections:  rejections,
		journeys:    journeys,
		analyzer:    analyzer,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

type runParams struct {
	runID     string
	batchSize int
	workers   int
	threshold float64
	mode      models.JourneyMode
	explicit  []string
}

// Run reconciles every requested student. Per-student failures become
// rejections and never stop the run; only a failure to enumerate students or
// context cancellation aborts it, returning the partial summary.
func (s *BatchService) Run(ctx context.Context, req BatchRequest) (*models.BatchSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Because(err, appErrors.ErrValidation, "invalid reconciliation request")
	}
	params := s.params(req)
	log := logger.WithRequest(ctx, logger.WithRun(s.logger, params.runID))

	summary := &models.BatchSummary{
		RunID:      params.runID,
		Rejections: make(map[models.RejectionCategory]int, len(models.RejectionCategories)),
		StartedAt:  time.Now().UTC(),
	}
	for _, category := range models.RejectionCategories {
		summary.Rejections[category] = 0
	}

	log.Info("reconciliation started",
		zap.Int("batch_size", params.batchSize),
		zap.Int("workers", params.workers),
		zap.Float64("threshold", params.threshold),
		zap.String("mode", string(params.mode)),
		zap.Int("explicit_students", len(params.explicit)),
	)

	pool := jobs.NewPool("reconcile", jobs.PoolConfig{Workers: params.workers, Logger: log})
	var mu sync.Mutex
	runErr := s.forEachChunk(ctx, params.explicit, params.batchSize, func(ids []string) error {
		batch := make([]jobs.Job, len(ids))
		for i, id := range ids {
			batch[i] = jobs.Job{ID: id, Type: "student", Payload: id}
		}
		failures, err := pool.Run(ctx, batch, func(ctx context.Context, job jobs.Job) error {
			return s.reconcileStudent(ctx, params, job.ID, summary, &mu)
		})
		for _, failure := range failures {
			s.reject(ctx, log, params.runID, failure.Job.ID, failure.Err, summary, &mu)
		}
		return err
	})

	summary.FinishedAt = time.Now().UTC()
	if s.metrics != nil {
		s.metrics.ObserveBatch(summary)
	}
	log.Info("reconciliation finished",
		zap.Int("processed", summary.StudentsProcessed),
		zap.Int("reconciled", summary.StudentsReconciled),
		zap.Int("journeys", summary.JourneysCreated),
		zap.Int("skipped", summary.StudentsSkipped),
		zap.Int("rejected", summary.Rejected()),
		zap.Int("errors", summary.Errors),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	if runErr != nil {
		log.Error("reconciliation aborted", zap.Error(runErr))
		return summary, runErr
	}
	return summary, nil
}

func (s *BatchService) params(req BatchRequest) runParams {
	p := runParams{
		runID:     uuid.NewString(),
		batchSize: s.cfg.BatchSize,
		workers:   s.cfg.Workers,
		threshold: s.cfg.ConfidenceThreshold,
		mode:      s.cfg.Mode,
		explicit:  uniqueIDs(req.StudentIDs),
	}
	if req.RunID != "" {
		p.runID = req.RunID
	}
	if req.BatchSize > 0 {
		p.batchSize = req.BatchSize
	}
	if req.Workers > 0 {
		p.workers = req.Workers
	}
	if req.ConfidenceThreshold != nil {
		p.threshold = *req.ConfidenceThreshold
	}
	if req.Mode != "" {
		p.mode = req.Mode
	}
	return p
}

// uniqueIDs drops repeated ids, keeping first occurrences in order. A student
// listed twice would otherwise be reconciled by two workers at once.
func uniqueIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// forEachChunk feeds fn either the explicit ids or pages read from the student store.
func (s *BatchService) forEachChunk(ctx context.Context, explicit []string, size int, fn func([]string) error) error {
	if len(explicit) > 0 {
		for start := 0; start < len(explicit); start += size {
			end := start + size
			if end > len(explicit) {
				end = len(explicit)
			}
			if err := fn(explicit[start:end]); err != nil {
				return err
			}
		}
		return nil
	}

	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := s.students.ListIDs(ctx, models.StudentPage{AfterID: after, Limit: size})
		if err != nil {
			return appErrors.Because(err, appErrors.ErrUnavailable, "failed to list students")
		}
		if len(ids) == 0 {
			return nil
		}
		if err := fn(ids); err != nil {
			return err
		}
		if len(ids) < size {
			return nil
		}
		after = ids[len(ids)-1]
	}
}

func (s *BatchService) reconcileStudent(ctx context.Context, p runParams, studentID string, summary *models.BatchSummary, mu *sync.Mutex) error {
	started := time.Now()

	if len(p.explicit) > 0 {
		exists, err := s.students.Exists(ctx, studentID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		if !exists {
			return ErrStudentNotFound
		}
	}

	analysis, err := s.analyze(ctx, studentID)
	if err != nil {
		return err
	}

	result, err := s.journeys.Synthesize(ctx, SynthesisInput{
		StudentID: studentID,
		RunID:     p.runID,
		Analysis:  analysis,
		Mode:      p.mode,
		Threshold: p.threshold,
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, repository.HistoryKey(studentID), analysis, s.cfg.HistoryTTL); err != nil {
			s.logger.Warn("cache history failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	summary.StudentsProcessed++
	outcome := OutcomeSkipped
	if result.Skipped {
		summary.StudentsSkipped++
	} else {
		outcome = OutcomeReconciled
		summary.StudentsReconciled++
		for _, journey := range result.Journeys {
			summary.JourneysCreated++
			switch journey.ConfidenceTier {
			case models.ConfidenceHigh:
				summary.Tiers.High++
			case models.ConfidenceMedium:
				summary.Tiers.Medium++
			default:
				summary.Tiers.Low++
			}
			if s.metrics != nil {
				s.metrics.ObserveJourney(journey.ConfidenceTier)
			}
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveStudent(outcome, time.Since(started))
	}
	return nil
}

// analyze loads the student's attended records and derives the history.
func (s *BatchService) analyze(ctx context.Context, studentID string) (*Analysis, error) {
	records, err := s.enrollments.ListByStudent(ctx, models.EnrollmentFilter{
		StudentID:      studentID,
		AttendanceFlag: s.cfg.ValidAttendanceFlag,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if len(records) == 0 {
		total, err := s.enrollments.CountByStudent(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		if total == 0 {
			return nil, ErrNoEnrollments
		}
		return nil, fmt.Errorf("%d ledger rows, none attended: %w", total, ErrInsufficientData)
	}
	return s.analyzer.Analyze(studentID, records)
}

func (s *BatchService) reject(ctx context.Context, log *zap.Logger, runID, studentID string, cause error, summary *models.BatchSummary, mu *sync.Mutex) {
	category := ClassifyError(cause)
	unexpected := category == models.RejectUnknownError || category == models.RejectDatabaseError
	if unexpected {
		log.Error("student reconciliation failed", zap.String("student_id", studentID), zap.String("category", string(category)), zap.Error(cause))
	} else {
		log.Info("student rejected", zap.String("student_id", studentID), zap.String("category", string(category)), zap.String("reason", cause.Error()))
	}

	rejection := &models.JourneyRejection{
		StudentID: studentID,
		RunID:     runID,
		Category:  category,
		Message:   cause.Error(),
	}
	writeErr := s.rejections.Create(ctx, rejection)
	if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
		log.Error("write rejection failed", zap.String("student_id", studentID), zap.Error(writeErr))
	}

	mu.Lock()
	summary.StudentsProcessed++
	summary.Rejections[category]++
	if unexpected || writeErr != nil {
		summary.Errors++
	}
	mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveRejection(category)
		s.metrics.ObserveStudent(OutcomeRejected, 0)
	}
}
