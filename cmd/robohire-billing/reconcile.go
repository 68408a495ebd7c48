package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func reconcileCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile local billing state against Stripe",
	}
	cmd.AddCommand(reconcileEventsCmd(cfgPath))
	cmd.AddCommand(reconcileUserCmd(cfgPath))
	cmd.AddCommand(reconcileTopUpCmd(cfgPath))
	return cmd
}

func reconcileEventsCmd(cfgPath *string) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Replay Stripe events missed by the webhook endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.reconcile.CatchUp(cmd.Context(), from)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&since, "since", "24h", "lookback as a duration, a date (2006-01-02) or an RFC3339 time")
	return cmd
}

func reconcileUserCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "user <userId>",
		Short: "Resync one user's subscription from Stripe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.reconcile.SyncUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func reconcileTopUpCmd(cfgPath *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "topup <sessionId>",
		Short: "Verify a top-up checkout session and credit it once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.reconcile.VerifyTopUp(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "expected session owner")
	return cmd
}

// parseSince accepts a lookback duration ("36h"), a UTC date or an RFC3339 time.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("since is required")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("since duration must be positive: %s", s)
		}
		return now.Add(-d).UTC(), nil
	}
	if t, err := parseDay(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q: want a duration, date or RFC3339 time", s)
	}
	return t.UTC(), nil
}

func parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
