package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"loanrisk/internal/pipeline"
	"loanrisk/internal/storage"
)

func newProcessCommand(a *app) *cobra.Command {
	var input, outCSV, outXLSX string
	var store bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Load, clean and normalize a spreadsheet of applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			var db *storage.DB
			if store {
				var err error
				if db, err = a.openDB(); err != nil {
					return err
				}
				defer db.Close()
			}

			svc, err := pipeline.NewProcessingService(db, a.cfg, a.logger)
			if err != nil {
				return err
			}
			res, err := svc.ProcessFile(cmd.Context(), input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outCSV == "" && outXLSX == "" {
				return pipeline.WriteCSV(out, res.Table)
			}
			if outCSV != "" {
				if err := pipeline.ExportTableToCSV(res.Table, outCSV); err != nil {
					return fmt.Errorf("writing %s: %w", outCSV, err)
				}
			}
			if outXLSX != "" {
				if err := pipeline.ExportTableToXLSX(res.Table, outXLSX); err != nil {
					return fmt.Errorf("writing %s: %w", outXLSX, err)
				}
			}

			fmt.Fprintf(out, "run %s: loaded=%d retained=%d failures=%d\n", res.RunID, res.Loaded, res.Retained, len(res.Failures))
			for _, f := range res.Failures {
				fmt.Fprintf(out, "  %v\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "spreadsheet to process (.xlsx, .csv, .html, .eml)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVar(&outCSV, "out-csv", "", "write the cleaned table as CSV")
	cmd.Flags().StringVar(&outXLSX, "out-xlsx", "", "write the cleaned table as XLSX")
	cmd.Flags().BoolVar(&store, "store", false, "persist the run in the database")

	return cmd
}
