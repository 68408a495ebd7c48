package main

import (
	"github.com/spf13/cobra"
)

func adminCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Inspect admin adjustments",
	}
	cmd.AddCommand(adminHistoryCmd(cfgPath))
	return cmd
}

func adminHistoryCmd(cfgPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <userId>",
		Short: "Print a user's audited adjustments, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			history, err := a.adjust.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), history)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}
