package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"robohire-billing/internal/analytics"
)

func analyticsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Usage analytics reports",
	}
	cmd.AddCommand(analyticsReportCmd(cfgPath))
	cmd.AddCommand(analyticsExportCmd(cfgPath))
	cmd.AddCommand(analyticsSearchCmd(cfgPath))
	return cmd
}

type rangeFlags struct {
	from, to string
	userID   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first day, inclusive (2006-01-02); defaults to 30 days before --to")
	cmd.Flags().StringVar(&f.to, "to", "", "last day, inclusive (2006-01-02); defaults to today")
	cmd.Flags().StringVar(&f.userID, "user", "", "restrict to one user")
}

// params turns inclusive day flags into a half-open [From, To) range.
func (f *rangeFlags) params(now time.Time) (analytics.Params, error) {
	var p analytics.Params
	to := now.UTC().Truncate(24 * time.Hour)
	if f.to != "" {
		t, err := parseDay(f.to)
		if err != nil {
			return p, fmt.Errorf("invalid --to: %w", err)
		}
		to = t
	}
	p.To = to.AddDate(0, 0, 1)
	p.From = p.To.AddDate(0, 0, -30)
	if f.from != "" {
		t, err := parseDay(f.from)
		if err != nil {
			return p, fmt.Errorf("invalid --from: %w", err)
		}
		p.From = t
	}
	if !p.To.After(p.From) {
		return p, fmt.Errorf("--from must not be after --to")
	}
	p.UserID = f.userID
	return p, nil
}

func analyticsReportCmd(cfgPath *string) *cobra.Command {
	var (
		rf      rangeFlags
		groupBy string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "report <type>",
		Short: "Print a usage report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rf.params(time.Now())
			if err != nil {
				return err
			}
			p.GroupBy = groupBy
			p.Limit = limit

			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.analytics.Report(cmd.Context(), analytics.ReportType(args[0]), p)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&groupBy, "group-by", "", "breakdown dimension")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum breakdown rows")
	return cmd
}

func analyticsExportCmd(cfgPath *string) *cobra.Command {
	var (
		rf  rangeFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every usage report for a range into an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rf.params(time.Now())
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			buf, err := a.analytics.Export(cmd.Context(), p)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("usage-%s-%s.xlsx", p.From.Format("20060102"), p.To.AddDate(0, 0, -1).Format("20060102"))
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, buf.Len())
			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	return cmd
}

func analyticsSearchCmd(cfgPath *string) *cobra.Command {
	var (
		rf   rangeFlags
		q    analytics.SearchQuery
		page int
	)

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search indexed usage logs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rf.params(time.Now())
			if err != nil {
				return err
			}
			q.From, q.To, q.UserID = p.From, p.To, p.UserID
			if len(args) == 1 {
				q.Text = args[0]
			}
			if page > 1 {
				q.Offset = (page - 1) * q.Size
			}

			a, err := bootstrap(cmd.Context(), *cfgPath, bootOptions{retries: 3})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.analytics.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&q.Action, "action", "", "interview or resume_match")
	cmd.Flags().StringVar(&q.Status, "status", "", "success or error")
	cmd.Flags().IntVar(&q.Size, "size", 20, "results per page")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}
