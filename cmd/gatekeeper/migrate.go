package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Database.AutoMigrate = true
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}
