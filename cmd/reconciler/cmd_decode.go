package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/journey-reconciler/internal/handler"
)

var decodeProgram string

var decodeCmd = &cobra.Command{
	Use:   "decode [token]",
	Short: "Decode a single legacy course token",
	Long: `Runs one raw token through the decoder rules and prints the normalized
reference, the rule that matched and any warnings. Only the catalog is loaded.

Example:
  reconciler decode "E1-A_MORNING" --program IEAP`,
	Args: cobra.ExactArgs(1),
	RunE: decodeToken,
}

func init() {
	decodeCmd.Flags().StringVar(&decodeProgram, "program", "", "program code recorded with the token")
}

func decodeToken(cmd *cobra.Command, args []string) error {
	_, logr, analyzer, err := loadBase()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	program := strings.ToUpper(strings.TrimSpace(decodeProgram))
	res := analyzer.Decode(args[0], program)
	return printJSON(cmd.OutOrStdout(), handler.DecodeView(args[0], program, res))
}
