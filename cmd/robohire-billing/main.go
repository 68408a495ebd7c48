// cmd/robohire-billing/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "robohire-billing",
		Short:         "RoboHire billing: metering, payments reconciliation and usage analytics",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default: configs/config.yaml lookup)")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(migrateCmd(&cfgPath))
	rootCmd.AddCommand(reconcileCmd(&cfgPath))
	rootCmd.AddCommand(analyticsCmd(&cfgPath))
	rootCmd.AddCommand(checkoutCmd(&cfgPath))
	rootCmd.AddCommand(adminCmd(&cfgPath))
	rootCmd.AddCommand(workersCmd(&cfgPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
