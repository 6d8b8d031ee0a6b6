package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"loanrisk/internal/pipeline"
)

func newExportCommand(a *app) *cobra.Command {
	var runID, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the cleaned table of a stored run",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			table, err := db.GetRunTable(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if err := pipeline.ExportTable(table, out); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", table.Len(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "run to export")
	_ = cmd.MarkFlagRequired("run-id")
	cmd.Flags().StringVar(&out, "out", "", "output file, .csv or .xlsx")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
