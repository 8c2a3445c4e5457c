package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured source datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sources, err := loadSources()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tLABEL\tFORMAT\tROLE\tJOIN KEY")
		for _, s := range sources {
			role := "source"
			if s.Target {
				role = "target"
			}
			if s.Disabled {
				role = "disabled"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Key, s.Label, s.Format, role, s.JoinKey)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
