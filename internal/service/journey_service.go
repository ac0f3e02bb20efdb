package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/timeline"
)

type journeyStore interface {
	ExistsForStudent(ctx context.Context, studentID string) (bool, error)
	Create(ctx context.Context, journeys []*models.AcademicJourney) error
}

type termCalendar interface {
	ListByCodes(ctx context.Context, codes []string) ([]models.Term, error)
}

// SynthesisInput is everything needed to turn an analysis into journeys.
type SynthesisInput struct {
	StudentID string
	RunID     string
	Analysis  *Analysis
	Mode      models.JourneyMode
	Threshold float64
}

// SynthesisResult reports what was written for one student.
type SynthesisResult struct {
	Skipped  bool
	Journeys []*models.AcademicJourney
}

// JourneyService converts program histories into persisted journeys.
type JourneyService struct {
	journeys  journeyStore
	calendar  termCalendar
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewJourneyService constructs a JourneyService. calendar may be nil, in which
// case every segment is dated from its term code.
func NewJourneyService(journeys journeyStore, calendar termCalendar, validate *validator.Validate, logger *zap.Logger) *JourneyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JourneyService{
		journeys:  journeys,
		calendar:  calendar,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Synthesize builds and stores the student's journeys. A student that already
// has a journey is skipped without writing.
func (s *JourneyService) Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisResult, error) {
	if in.Analysis == nil {
		return nil, fmt.Errorf("synthesize %s: missing analysis: %w", in.StudentID, ErrJourneyInvalid)
	}
	exists, err := s.journeys.ExistsForStudent(ctx, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if exists {
		return &SynthesisResult{Skipped: true}, nil
	}

	threshold := in.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}

	segments, issues, err := s.buildSegments(ctx, in.Analysis)
	if err != nil {
		return nil, err
	}
	issues = append(issues, decodeIssues(in.Analysis)...)

	var groups [][]models.JourneySegment
	if in.Mode == models.JourneyModePerPeriod {
		for _, seg := range segments {
			groups = append(groups, []models.JourneySegment{seg})
		}
	} else {
		groups = [][]models.JourneySegment{segments}
	}

	created := s.now().UTC()
	journeys := make([]*models.AcademicJourney, 0, len(groups))
	for _, group := range groups {
		score := ScoreJourney(group)
		journey := &models.AcademicJourney{
			StudentID:       in.StudentID,
			RunID:           in.RunID,
			ConfidenceScore: score,
			ConfidenceTier:  TierFor(score, threshold),
			NeedsReview:     score < threshold,
			DataIssues:      append(models.StringList{}, issues...),
			CreatedAt:       created,
			Segments:        group,
		}
		if err := s.validator.Struct(journey); err != nil {
			return nil, fmt.Errorf("journey for %s: %w: %v", in.StudentID, ErrJourneyInvalid, err)
		}
		journeys = append(journeys, journey)
	}

	if err := s.journeys.Create(ctx, journeys); err != nil {
		if ClassifyError(err) == models.RejectDuplicateJourney {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.logger.Debug("journeys stored",
		zap.String("student_id", in.StudentID),
		zap.String("run_id", in.RunID),
		zap.Int("journeys", len(journeys)),
	)
	return &SynthesisResult{Journeys: journeys}, nil
}

func (s *JourneyService) buildSegments(ctx context.Context, analysis *Analysis) ([]models.JourneySegment, []string, error) {
	history := analysis.History
	all := make([]models.ProgramPeriod, 0, len(history.AcademicPeriods)+len(history.LanguagePeriods))
	all = append(all, history.AcademicPeriods...)
	all = append(all, history.LanguagePeriods...)

	calendar, issues, err := s.loadCalendar(ctx, all)
	if err != nil {
		return nil, nil, err
	}

	segments := make([]models.JourneySegment, 0, len(all))
	appendType := func(list []models.ProgramPeriod) error {
		for i, period := range list {
			start, stop, err := periodDates(period, calendar)
			if err != nil {
				return err
			}
			status := models.TransitionSwitched
			if i == 0 {
				status = models.TransitionInitial
			}
			seg := models.JourneySegment{
				Sequence:         len(segments) + 1,
				ProgramType:      period.ProgramType,
				ProgramReference: period.ProgramName,
				TransitionStatus: status,
				IsCurrent:        i == len(list)-1,
				StartTerm:        period.StartTerm,
				EndTerm:          period.EndTerm,
				StartDate:        start,
				StopDate:         stop,
				TotalTerms:       period.TotalTerms,
				ConfidenceScore:  ScoreSegment(EvidenceFor(period, analysis.Timeline)),
			}
			if period.EntryLevel != "" {
				level := period.EntryLevel
				seg.EntryLevel = &level
			}
			if period.FinishingLevel != "" {
				level := period.FinishingLevel
				seg.FinishingLevel = &level
			}
			segments = append(segments, seg)
		}
		return nil
	}
	if err := appendType(history.AcademicPeriods); err != nil {
		return nil, nil, err
	}
	if err := appendType(history.LanguagePeriods); err != nil {
		return nil, nil, err
	}
	return segments, issues, nil
}

// loadCalendar fetches calendar rows for every boundary term. Rows may use any
// term-code format the ledger does; they are matched by their parsed key.
// Terms absent from the calendar are reported as data issues and later dated
// from their code.
func (s *JourneyService) loadCalendar(ctx context.Context, list []models.ProgramPeriod) (map[string]models.Term, []string, error) {
	seen := make(map[string]struct{})
	var codes []string
	for _, p := range list {
		for _, code := range []string{p.StartTerm, p.EndTerm} {
			if _, ok := seen[code]; !ok {
				seen[code] = struct{}{}
				codes = append(codes, code)
			}
		}
	}
	sort.Strings(codes)

	found := make(map[string]models.Term, len(codes))
	if s.calendar != nil && len(codes) > 0 {
		var lookup []string
		for _, code := range codes {
			key, err := timeline.ParseTermCode(code)
			if err != nil {
				return nil, nil, err
			}
			lookup = append(lookup, key.Spellings()...)
		}
		terms, err := s.calendar.ListByCodes(ctx, lookup)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		for _, t := range terms {
			key, err := timeline.ParseTermCode(t.Code)
			if err != nil {
				s.logger.Warn("skipping calendar row with unreadable code", zap.String("code", t.Code))
				continue
			}
			if _, dup := found[key.String()]; !dup {
				found[key.String()] = t
			}
		}
	}

	var issues []string
	for _, code := range codes {
		if _, ok := found[code]; !ok {
			issues = append(issues, fmt.Sprintf("term %s missing from calendar; dates estimated", code))
		}
	}
	return found, issues, nil
}

func periodDates(p models.ProgramPeriod, calendar map[string]models.Term) (time.Time, time.Time, error) {
	var start, stop time.Time
	if t, ok := calendar[p.StartTerm]; ok {
		start = t.StartDate
	} else {
		key, err := timeline.ParseTermCode(p.StartTerm)
		if err != nil {
			return start, stop, err
		}
		start, _ = key.ApproxDates()
	}
	if t, ok := calendar[p.EndTerm]; ok {
		stop = t.EndDate
	} else {
		key, err := timeline.ParseTermCode(p.EndTerm)
		if err != nil {
			return start, stop, err
		}
		_, stop = key.ApproxDates()
	}
	return start, stop, nil
}

func decodeIssues(a *Analysis) []string {
	var issues []string
	if a.Stats.Unparsable > 0 {
		issues = append(issues, fmt.Sprintf("%d of %d enrollment tokens could not be decoded", a.Stats.Unparsable, a.Stats.Records))
	}
	if a.Stats.PrefixMismatches > 0 {
		issues = append(issues, fmt.Sprintf("%d course codes outside their program's prefixes", a.Stats.PrefixMismatches))
	}
	if a.Stats.ProgramConflicts > 0 {
		issues = append(issues, fmt.Sprintf("%d tokens name a program different from their record", a.Stats.ProgramConflicts))
	}
	if a.History.FoundationTerms > 0 {
		issues = append(issues, fmt.Sprintf("%d foundation terms without a detected major", a.History.FoundationTerms))
	}
	return issues
}
