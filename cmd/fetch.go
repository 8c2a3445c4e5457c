package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carceral-ecologies/pfas-cli/internal/fetch"
	"github.com/carceral-ecologies/pfas-cli/internal/registry"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [source...]",
	Short: "Download source datasets",
	Long:  "Downloads the named sources (or all enabled sources plus the target) into the data directory. Already-present files are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sources, err := loadSources()
		if err != nil {
			return err
		}

		var selected []registry.Source
		if len(args) == 0 {
			if target, ok := registry.Target(sources); ok {
				selected = append(selected, target)
			}
			selected = append(selected, registry.Enabled(sources)...)
		} else {
			for _, key := range args {
				src, ok := registry.Find(sources, key)
				if !ok {
					return eris.Errorf("unknown source: %s", key)
				}
				selected = append(selected, src)
			}
		}

		f := fetch.New(cfg.Data.Dir)
		for _, src := range selected {
			if src.URL == "" {
				zap.L().Info("fetch: source has no url, skipping", zap.String("source", src.Key))
				continue
			}
			path, err := f.Fetch(ctx, src)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", src.Key, path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
