package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/decoder"
	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/periods"
	"github.com/noah-isme/journey-reconciler/internal/timeline"
)

// DecodeStats summarises how a student's tokens decoded.
type DecodeStats struct {
	Records          int `json:"records"`
	Decoded          int `json:"decoded"`
	Unparsable       int `json:"unparsable"`
	PrefixMismatches int `json:"prefix_mismatches"`
	ProgramConflicts int `json:"program_conflicts"`
}

// Analysis is the derived, unpersisted view of one student.
type Analysis struct {
	History  models.StudentProgramHistory `json:"history"`
	Timeline []timeline.TermEntry         `json:"timeline"`
	Stats    DecodeStats                  `json:"decode_stats"`
}

// Analyzer runs decode, timeline and period extraction for a student.
// It holds only the immutable catalog and is safe for concurrent use.
type Analyzer struct {
	catalog *catalog.Catalog
	decoder *decoder.Decoder
	logger  *zap.Logger
}

// NewAnalyzer builds an Analyzer over cat.
func NewAnalyzer(cat *catalog.Catalog, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{catalog: cat, decoder: decoder.New(cat), logger: logger}
}

// Catalog exposes the catalog the analyzer was built with.
func (a *Analyzer) Catalog() *catalog.Catalog {
	return a.catalog
}

// Decode decodes a single token.
func (a *Analyzer) Decode(token, programCode string) decoder.Result {
	return a.decoder.Decode(token, programCode)
}

// Analyze derives a student's program history from already-filtered records.
func (a *Analyzer) Analyze(studentID string, records []models.RawEnrollmentRecord) (*Analysis, error) {
	decoded := make([]timeline.DecodedRecord, 0, len(records))
	stats := DecodeStats{Records: len(records)}
	for _, rec := range records {
		res := a.decoder.Decode(rec.RawToken, rec.ProgramCode)
		if res.Unparsable() {
			stats.Unparsable++
			a.logger.Debug("token not decodable",
				zap.String("student_id", studentID),
				zap.String("record_id", rec.ID),
				zap.String("token", rec.RawToken),
				zap.Any("warnings", res.Warnings),
			)
		} else {
			stats.Decoded++
		}
		if res.Has(decoder.WarnPrefixMismatch) {
			stats.PrefixMismatches++
		}
		if res.Has(decoder.WarnProgramConflict) {
			stats.ProgramConflicts++
		}
		decoded = append(decoded, timeline.DecodedRecord{Record: rec, Result: res})
	}

	entries, err := timeline.Build(a.catalog, decoded)
	if err != nil {
		return nil, fmt.Errorf("build timeline for %s: %w", studentID, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("student %s: %w", studentID, ErrNoUsableCourses)
	}

	history := periods.Extract(a.catalog, studentID, entries)
	if !history.HasPeriods() {
		return nil, fmt.Errorf("student %s across %d terms: %w", studentID, len(entries), ErrNoProgramDetected)
	}
	if err := checkPeriods(history.AcademicPeriods); err != nil {
		return nil, err
	}
	if err := checkPeriods(history.LanguagePeriods); err != nil {
		return nil, err
	}

	return &Analysis{History: history, Timeline: entries, Stats: stats}, nil
}

func checkPeriods(list []models.ProgramPeriod) error {
	for i, p := range list {
		if p.StartTermNumber > p.EndTermNumber {
			return fmt.Errorf("%s period %s ends before it starts: %w", p.ProgramType, p.ProgramName, ErrDataConflict)
		}
		if i > 0 && p.StartTermNumber <= list[i-1].EndTermNumber {
			return fmt.Errorf("%s periods %s and %s overlap: %w", p.ProgramType, list[i-1].ProgramName, p.ProgramName, ErrDataConflict)
		}
	}
	return nil
}
