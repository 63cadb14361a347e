package billing

import (
	"fmt"

	"github.com/occusafe/occusafe/adapter/cli"
	"github.com/spf13/cobra"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List features unlocked for the organization",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, orgID, err := cli.Billing()
		if err != nil {
			return err
		}

		features, err := app.BillingService.ListFeatures(cmd.Context(), orgID)
		if err != nil {
			return err
		}
		if len(features) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No features unlocked.")
			return nil
		}
		for _, f := range features {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", f)
		}
		return nil
	},
}
