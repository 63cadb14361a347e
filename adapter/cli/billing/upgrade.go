package billing

import (
	"errors"
	"fmt"

	"github.com/occusafe/occusafe/adapter/cli"
	"github.com/occusafe/occusafe/internal/billing/domain"
	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <tier>",
	Short: "Upgrade the organization to a higher tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := domain.ParseTier(args[0])
		if err != nil {
			return err
		}

		app, orgID, err := cli.Billing()
		if err != nil {
			return err
		}

		ok, err := app.BillingService.Upgrade(cmd.Context(), orgID, target)
		switch {
		case errors.Is(err, domain.ErrDowngradeNotAllowed):
			return fmt.Errorf("cannot move to %s: %w", tierLabel(target), err)
		case errors.Is(err, domain.ErrPersistenceFailure):
			return fmt.Errorf("upgrade was not saved, please retry: %w", err)
		case err != nil:
			return err
		case !ok:
			return errors.New("upgrade was not applied")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Organization is on %s.\n", tierLabel(target))
		return nil
	},
}
