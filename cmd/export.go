package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carceral-ecologies/pfas-cli/internal/report"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Re-export reports for a stored run",
	Long:  "Writes summary.csv, links.csv, and report.xlsx for a completed run from its persisted links and summary rows.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.GetRun(ctx, runID); err != nil {
			return eris.Wrapf(err, "export %s", runID)
		}

		summary, err := st.Summary(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "export summary")
		}
		links, err := st.Links(ctx, runID)
		if err != nil {
			return eris.Wrap(err, "export links")
		}

		outDir := exportOut
		if outDir == "" {
			outDir = cfg.Data.OutDir
		}

		if err := report.WriteSummaryCSV(filepath.Join(outDir, "summary.csv"), summary); err != nil {
			return err
		}
		if err := report.WriteLinksCSV(filepath.Join(outDir, "links.csv"), links); err != nil {
			return err
		}
		if err := report.WriteWorkbook(filepath.Join(outDir, "report.xlsx"), summary, nil); err != nil {
			return err
		}

		fmt.Printf("Exported %d summary rows and %d links to %s\n", len(summary), len(links), outDir)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
