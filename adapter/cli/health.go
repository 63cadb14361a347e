package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check CLI wiring health",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, orgID, err := Billing()
		if err != nil {
			return err
		}
		if err := a.BillingService.Resolver().Catalog().Verify(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok (organization %s)\n", orgID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
