package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/service"
)

var (
	exportRun      string
	exportFormat   string
	exportMaxScore float64
	exportLimit    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the review queue of low-confidence journeys to a file",
	Long: `Lists journeys flagged for review, optionally for one run or below a score,
and writes them as CSV, PDF or XLSX under EXPORT_DIR. The written path is printed.`,
	Args: cobra.NoArgs,
	RunE: exportReview,
}

func init() {
	exportCmd.Flags().StringVar(&exportRun, "run", "", "only journeys created by this run id")
	exportCmd.Flags().StringVar(&exportFormat, "format", string(service.ExportFormatCSV), "csv, pdf or xlsx")
	exportCmd.Flags().Float64Var(&exportMaxScore, "max-score", 0, "only journeys scoring at or below this")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum journeys to export (default 100)")
}

func exportReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.exports == nil {
		return errors.New("export directory is not writable")
	}

	filter := models.ReviewFilter{RunID: exportRun, Limit: exportLimit}
	if cmd.Flags().Changed("max-score") {
		filter.MaxScore = &exportMaxScore
	}

	res, err := a.exports.ReviewQueue(ctx, filter, service.ExportFormat(exportFormat))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d journeys)\n", filepath.Join(a.cfg.Export.Dir, res.RelativePath), res.Journeys)
	return nil
}
