package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("storage driver %q has no schema to migrate", cfg.Storage.Driver)
			}
			return db.Close()
		},
	}
}
