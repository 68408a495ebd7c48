package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/database"
	"robohire-billing/internal/common/payments"
	"robohire-billing/internal/server"
)

func serveCmd(cfgPath *string) *cobra.Command {
	var (
		migrate bool
		retries int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Zeebe workers and the webhook/ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *cfgPath, bootOptions{zeebe: true, retries: retries})
			if err != nil {
				return err
			}
			defer a.close()

			if migrate {
				if err := database.Migrate(a.pg.DB); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				a.zapLog.Info("Database migrations applied")
			}

			workers, err := a.startWorkers()
			if err != nil {
				return err
			}
			defer func() {
				a.zapLog.Info("Shutdown signal received, stopping workers...")
				for _, w := range workers {
					w.Stop()
				}
			}()

			srv := server.New(server.Options{
				Address:         a.cfg.Server.Address,
				MaxWebhookBytes: a.cfg.Server.MaxWebhookBytes,
				ShutdownTimeout: config.GetDuration(a.cfg.Server.ShutdownTimeout),
				Verifier:        payments.NewWebhookVerifier(a.cfg.Stripe.WebhookSecret),
				Events:          a.reconcile,
				Checks:          a.checks(),
				Logger:          a.log.WithFields(map[string]interface{}{"component": "server"}),
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending database migrations before starting")
	cmd.Flags().IntVar(&retries, "retries", 5, "connection attempts per dependency")
	return cmd
}

// pingFunc adapts a health function to server.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func (a *app) checks() map[string]server.Pinger {
	checks := map[string]server.Pinger{
		"postgres": a.pg,
		"redis":    a.redis,
	}
	if a.es != nil {
		checks["elasticsearch"] = a.es
	}
	if a.zeebe != nil {
		checks["zeebe"] = pingFunc(a.zeebe.HealthCheck)
	}
	return checks
}
