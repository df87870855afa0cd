package main

import (
	"fmt"
	"os"

	"github.com/abgdnv/bazaar/internal/seed"
	"github.com/abgdnv/bazaar/pkg/bootstrap"
	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/spf13/cobra"
)

func newSeedCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}
	var (
		file      string
		batchSize int
		dryRun    bool
	)
	categories := &cobra.Command{
		Use:   "categories",
		Short: "Upsert a category tree from a YAML file",
		Long: `Upsert a category tree from a YAML file.

Ids derive from the slug path, so running the same file twice updates rows in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			nodes, err := seed.Parse(f)
			if err != nil {
				return err
			}
			flat, err := seed.Flatten(nodes)
			if err != nil {
				return err
			}

			if dryRun {
				for _, c := range flat {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\n", c.ID, c.Level, c.Slug, c.Name)
				}
				return nil
			}

			if err := opts.requireDatabase(); err != nil {
				return err
			}
			pool, err := bootstrap.NewDbPool(cmd.Context(), config.DatabaseConfig{URL: opts.databaseURL, Timeout: opts.timeout})
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := seed.Upsert(cmd.Context(), pool, flat, batchSize)
			if err != nil {
				return err
			}
			opts.logger.InfoContext(cmd.Context(), "Categories seeded", "count", n, "file", file)
			return nil
		},
	}
	categories.Flags().StringVarP(&file, "file", "f", "", "YAML file with the category tree")
	categories.Flags().IntVar(&batchSize, "batch-size", seed.DefaultBatchSize, "rows per round trip")
	categories.Flags().BoolVar(&dryRun, "dry-run", false, "print the categories instead of writing them")
	_ = categories.MarkFlagRequired("file")

	cmd.AddCommand(categories)
	return cmd
}
