package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/occusafe/occusafe/adapter/cli"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show subscription status",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, orgID, err := cli.Billing()
		if err != nil {
			return err
		}

		view, err := app.BillingService.Status(cmd.Context(), orgID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Organization: %s\n", view.OrganizationID)
		fmt.Fprintf(out, "Tier: %s (%s)\n", tierLabel(view.Tier), view.Status)
		if view.SuggestedUpgrade != nil {
			fmt.Fprintf(out, "Next tier: %s\n", tierLabel(*view.SuggestedUpgrade))
		}
		if view.TrialEndsAt != nil {
			fmt.Fprintf(out, "Trial ends: %s\n", view.TrialEndsAt.Local().Format(time.RFC1123))
		}
		if view.CurrentPeriodEnd != nil {
			fmt.Fprintf(out, "Renews: %s\n", view.CurrentPeriodEnd.Local().Format(time.RFC1123))
		}
		if cli.Verbose() {
			names := make([]string, 0, len(view.Features))
			for _, f := range view.Features {
				names = append(names, f.String())
			}
			fmt.Fprintf(out, "Features: %s\n", strings.Join(names, ", "))
		}
		return nil
	},
}
