package cli

import (
	"fmt"

	"levelup-sidequest/internal/app"

	"github.com/spf13/cobra"
)

func newGenerateUIDsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate-uids",
		Short: "Assign UIDs to registrants stored without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			n, err := app.NewRegistrationService(st.registrants, logger).BackfillUIDs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated UIDs for %d registrants.\n", n)
			return nil
		},
	}
}
