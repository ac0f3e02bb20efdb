package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Rebuild academic journeys from the legacy enrollment ledger",
	Long: `reconciler decodes legacy course tokens, groups each student's terms into
academic and language periods, scores them, and writes the resulting journeys.

Students that cannot be reconciled are recorded as rejections with a category
so they can be reviewed without stopping the run.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, serveCmd, decodeCmd, exportCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
