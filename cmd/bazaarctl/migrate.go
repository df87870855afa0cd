package main

import (
	"github.com/abgdnv/bazaar/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the storefront schema",
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireDatabase(); err != nil {
				return err
			}
			if err := migrations.Up(opts.databaseURL); err != nil {
				return err
			}
			opts.logger.InfoContext(cmd.Context(), "Migrations applied")
			return nil
		},
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.requireDatabase(); err != nil {
				return err
			}
			if err := migrations.Down(opts.databaseURL); err != nil {
				return err
			}
			opts.logger.InfoContext(cmd.Context(), "Migrations rolled back")
			return nil
		},
	}
	cmd.AddCommand(up, down)
	return cmd
}
