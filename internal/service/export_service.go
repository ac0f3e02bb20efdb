package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/models"
	appErrors "github.com/noah-isme/journey-reconciler/pkg/errors"
	"github.com/noah-isme/journey-reconciler/pkg/export"
)

// ExportFormat selects the review-queue rendering.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

type reviewSource interface {
	ListForReview(ctx context.Context, filter models.ReviewFilter) ([]models.AcademicJourney, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// titledRenderer covers the document formats that carry a title.
type titledRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult describes a written review-queue file.
type ExportResult struct {
	RelativePath string
	Format       ExportFormat
	Journeys     int
}

// ExportService renders journeys flagged for human review.
type ExportService struct {
	journeys reviewSource
	storage  fileStorage
	csv      csvRenderer
	pdf      titledRenderer
	xlsx     titledRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
// Nil renderers fall back to the pkg/export implementations.
func NewExportService(journeys reviewSource, storage fileStorage, logger *zap.Logger, csv csvRenderer, pdf, xlsx titledRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{journeys: journeys, storage: storage, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger, now: time.Now}
}

var reviewHeaders = []string{"Student ID", "Run ID", "Score", "Tier", "Segments", "Data Issues"}

// ReviewQueue writes the review queue selected by filter and returns where it went.
func (s *ExportService) ReviewQueue(ctx context.Context, filter models.ReviewFilter, format ExportFormat) (*ExportResult, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF && format != ExportFormatXLSX {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	journeys, err := s.journeys.ListForReview(ctx, filter)
	if err != nil {
		return nil, appErrors.Because(err, appErrors.ErrInternal, "failed to load review queue")
	}

	dataset := export.Dataset{Headers: reviewHeaders, Rows: make([]map[string]string, 0, len(journeys))}
	for _, j := range journeys {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student ID":  j.StudentID,
			"Run ID":      j.RunID,
			"Score":       fmt.Sprintf("%.4f", j.ConfidenceScore),
			"Tier":        string(j.ConfidenceTier),
			"Segments":    describeSegments(j.Segments),
			"Data Issues": strings.Join(j.DataIssues, "; "),
		})
	}

	title := "Journey Review Queue"
	if filter.RunID != "" {
		title = fmt.Sprintf("%s %s", title, filter.RunID)
	}
	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	case ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Because(err, appErrors.ErrInternal, "failed to render review queue")
	}

	filename := fmt.Sprintf("review_%s_%s.%s", sanitizeFilename(filter.RunID), s.now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Because(err, appErrors.ErrInternal, "failed to store review queue")
	}
	s.logger.Info("review queue exported", zap.String("path", relPath), zap.Int("journeys", len(journeys)))
	return &ExportResult{RelativePath: relPath, Format: format, Journeys: len(journeys)}, nil
}

// describeSegments renders "Computer Science (2019-1..2020-4); IEAP (2019-1..2019-2)".
func describeSegments(segments []models.JourneySegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, fmt.Sprintf("%s (%s..%s)", seg.ProgramReference, seg.StartTerm, seg.EndTerm))
	}
	return strings.Join(parts, "; ")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
