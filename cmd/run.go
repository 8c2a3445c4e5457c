package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carceral-ecologies/pfas-cli/internal/fetch"
	"github.com/carceral-ecologies/pfas-cli/internal/pipeline"
)

var runDownload bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full pipeline",
	Long:  "Ingests every enabled source, attributes points to HUC-12 watersheds, enriches with elevation, links facilities to upstream point sources, and writes summary reports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sources, err := loadSources()
		if err != nil {
			return err
		}

		opts := []pipeline.Option{}
		if runDownload {
			opts = append(opts, pipeline.WithFetcher(fetch.New(cfg.Data.Dir)))
		}

		runner, err := pipeline.New(cfg, st, initElevation(), sources, opts...)
		if err != nil {
			return err
		}

		res, err := runner.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		fmt.Printf("Run %s complete in %s (%d links)\n\n", res.RunID, res.Duration.Round(time.Millisecond), res.LinkCount)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tFACILITIES\t% OF TOTAL\tPOPULATION")
		for _, row := range res.Summary {
			fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.0f\n", row.Label, row.Count, row.Pct, row.Population)
		}
		w.Flush() //nolint:errcheck

		if len(res.Audit) > 0 {
			fmt.Printf("\n%d facilities with watershed-code disagreements (see audit.csv)\n", len(res.Audit))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDownload, "download", false, "download missing datasets before ingesting")
	rootCmd.AddCommand(runCmd)
}
