package main

import (
	"github.com/spf13/cobra"
)

func checkoutCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Create Stripe checkout and portal links for a user",
	}
	cmd.AddCommand(checkoutSubscriptionCmd(cfgPath))
	cmd.AddCommand(checkoutTopUpCmd(cfgPath))
	cmd.AddCommand(checkoutPortalCmd(cfgPath))
	return cmd
}

func checkoutSubscriptionCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "subscription <userId> <tier>",
		Short: "Start a subscription checkout for a purchasable tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.reconcile.CreateSubscriptionCheckout(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func checkoutTopUpCmd(cfgPath *string) *cobra.Command {
	var amountCents int64

	cmd := &cobra.Command{
		Use:   "topup <userId>",
		Short: "Start a one-time top-up checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.reconcile.CreateTopUpCheckout(cmd.Context(), args[0], amountCents)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().Int64Var(&amountCents, "amount", 0, "amount in cents")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func checkoutPortalCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "portal <userId>",
		Short: "Create a billing portal session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			url, err := a.reconcile.CreatePortalSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"url": url})
		},
	}
}
