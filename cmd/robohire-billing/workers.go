package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/validation"
	accountadjust "robohire-billing/internal/workers/admin/account-adjust"
	reportgenerate "robohire-billing/internal/workers/analytics/report-generate"
	entitlementcheck "robohire-billing/internal/workers/billing/entitlement-check"
	subscriptionsync "robohire-billing/internal/workers/billing/subscription-sync"
	topupcredit "robohire-billing/internal/workers/billing/topup-credit"
	usageconsume "robohire-billing/internal/workers/billing/usage-consume"
	usagereset "robohire-billing/internal/workers/billing/usage-reset"
	paymentfailed "robohire-billing/internal/workers/communication/payment-failed"
	customersync "robohire-billing/internal/workers/crm/customer-sync"
	"robohire-billing/pkg/registry"
)

type jobHandler interface {
	camunda.JobHandler
	IsEnabled() bool
}

type workerDef struct {
	name        string
	taskType    string
	category    string
	description string
	schema      func() validation.JSONSchema
	build       func(a *app) (jobHandler, error)
}

var workerDefs = []workerDef{
	{
		name: entitlementcheck.WorkerName, taskType: entitlementcheck.TaskType, category: "billing",
		description: "Report a user's tier, remaining allowance and whether an action is permitted",
		schema:      entitlementcheck.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return entitlementcheck.NewHandler(entitlementcheck.HandlerOptions{AppConfig: a.cfg, Service: a.usage, Logger: a.log})
		},
	},
	{
		name: usageconsume.WorkerName, taskType: usageconsume.TaskType, category: "billing",
		description: "Meter one interview or resume match against allowance then balance",
		schema:      usageconsume.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return usageconsume.NewHandler(usageconsume.HandlerOptions{AppConfig: a.cfg, Usage: a.usage, Recorder: a.analytics, Logger: a.log})
		},
	},
	{
		name: usagereset.WorkerName, taskType: usagereset.TaskType, category: "billing",
		description: "Zero a user's period counters",
		schema:      usagereset.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return usagereset.NewHandler(usagereset.HandlerOptions{AppConfig: a.cfg, Service: a.usage, Logger: a.log})
		},
	},
	{
		name: topupcredit.WorkerName, taskType: topupcredit.TaskType, category: "billing",
		description: "Verify a top-up checkout session and credit the balance exactly once",
		schema:      topupcredit.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return topupcredit.NewHandler(topupcredit.HandlerOptions{AppConfig: a.cfg, Service: a.reconcile, Logger: a.log})
		},
	},
	{
		name: subscriptionsync.WorkerName, taskType: subscriptionsync.TaskType, category: "billing",
		description: "Pull a user's subscription from Stripe and apply tier and status",
		schema:      subscriptionsync.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return subscriptionsync.NewHandler(subscriptionsync.HandlerOptions{AppConfig: a.cfg, Service: a.reconcile, Logger: a.log})
		},
	},
	{
		name: accountadjust.WorkerName, taskType: accountadjust.TaskType, category: "admin",
		description: "Apply an audited admin adjustment to a user account",
		schema:      accountadjust.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			opts := accountadjust.HandlerOptions{AppConfig: a.cfg, Service: a.adjust, Logger: a.log}
			if a.keycloak != nil {
				opts.Actors = a.keycloak
			}
			return accountadjust.NewHandler(opts)
		},
	},
	{
		name: reportgenerate.WorkerName, taskType: reportgenerate.TaskType, category: "analytics",
		description: "Build a usage analytics report",
		schema:      reportgenerate.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return reportgenerate.NewHandler(reportgenerate.HandlerOptions{AppConfig: a.cfg, Service: a.analytics, Logger: a.log})
		},
	},
	{
		name: paymentfailed.WorkerName, taskType: paymentfailed.TaskType, category: "communication",
		description: "Email the customer about a failed invoice and alert operations",
		schema:      paymentfailed.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return paymentfailed.NewHandler(paymentfailed.HandlerOptions{AppConfig: a.cfg, Notifier: a.notifier, Logger: a.log})
		},
	},
	{
		name: customersync.WorkerName, taskType: customersync.TaskType, category: "crm",
		description: "Upsert the user as a Zoho CRM contact",
		schema:      customersync.GetInputSchema,
		build: func(a *app) (jobHandler, error) {
			return customersync.NewHandler(customersync.HandlerOptions{AppConfig: a.cfg, Users: a.store, Logger: a.log})
		},
	},
}

func (a *app) startWorkers() ([]*camunda.CamundaWorker, error) {
	var started []*camunda.CamundaWorker

	for _, d := range workerDefs {
		if !config.IsWorkerEnabled(a.cfg, d.name) {
			a.zapLog.Info("worker disabled", zap.String("worker", d.name))
			continue
		}
		h, err := d.build(a)
		if err != nil {
			for _, w := range started {
				w.Stop()
			}
			return nil, fmt.Errorf("failed to create %s handler: %w", d.name, err)
		}
		if !h.IsEnabled() {
			continue
		}
		w := camunda.NewWorker(a.zeebe.GetClient(), d.taskType, config.GetWorkerConfig(a.cfg, d.name), h, a.obs, a.zapLog)
		started = append(started, w)
		a.zapLog.Info("worker started", zap.String("worker", d.name), zap.String("taskType", d.taskType))
	}

	a.zapLog.Info("Workers registered", zap.Int("count", len(started)))
	return started, nil
}

func buildCatalog(cfg *config.Config, now time.Time) *registry.Catalog {
	c := &registry.Catalog{
		Service:     cfg.App.Name,
		Version:     Version,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	for _, d := range workerDefs {
		wc := config.GetWorkerConfig(cfg, d.name)
		c.Workers = append(c.Workers, registry.Worker{
			Name:          d.name,
			TaskType:      d.taskType,
			Category:      d.category,
			Description:   d.description,
			Enabled:       wc.Enabled,
			Timeout:       config.GetDuration(wc.Timeout).String(),
			MaxJobsActive: wc.MaxJobsActive,
			Retries:       wc.MaxRetries,
			InputSchema:   d.schema(),
		})
	}
	return c
}

func workersCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Print the job types this service handles with their input schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			return buildCatalog(cfg, time.Now()).Write(cmd.OutOrStdout())
		},
	}
}
