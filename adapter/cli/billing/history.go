package billing

import (
	"fmt"
	"time"

	"github.com/occusafe/occusafe/adapter/cli"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show tier changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, orgID, err := cli.Billing()
		if err != nil {
			return err
		}

		changes, err := app.BillingService.TierHistory(cmd.Context(), orgID)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tier changes.")
			return nil
		}
		for _, c := range changes {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s -> %s  (+%d features)\n",
				c.ChangedAt.Local().Format(time.DateTime), c.FromTier, c.ToTier, len(c.UnlockedFeatures))
		}
		return nil
	},
}
