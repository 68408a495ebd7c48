package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"robohire-billing/internal/analytics"
	"robohire-billing/internal/billing/adjust"
	"robohire-billing/internal/billing/reconcile"
	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/billing/usage"
	"robohire-billing/internal/common/auth"
	awsclient "robohire-billing/internal/common/aws"
	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/database"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/observability"
	"robohire-billing/internal/common/payments"
	"robohire-billing/internal/notify"
)

// app holds every client and service one command invocation needs.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	obs    *observability.Observability

	pg     *database.PostgresClient
	redis  *database.RedisClient
	es     *database.ElasticsearchClient
	zeebe  *camunda.Client
	stripe *payments.StripeClient

	store     *store.Store
	notifier  *notify.Notifier
	usage     *usage.Service
	adjust    *adjust.Service
	reconcile *reconcile.Service
	analytics *analytics.Service
	keycloak  *auth.KeycloakClient
}

type bootOptions struct {
	// zeebe connects the workflow engine; only serve needs it.
	zeebe bool
	// retries bounds connection attempts per dependency.
	retries int
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func bootstrap(ctx context.Context, cfgPath string, opts bootOptions) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if opts.retries <= 0 {
		opts.retries = 1
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	a := &app{cfg: cfg, zapLog: zapLog, log: logger.NewZapAdapter(zapLog)}

	if a.obs, err = observability.New(cfg.App.Name); err != nil {
		a.log.Warn("otel metrics disabled", map[string]interface{}{"error": err})
		a.obs = observability.NewNoop()
	}

	if err := a.connect(ctx, opts); err != nil {
		a.close()
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context, opts bootOptions) error {
	cfg := a.cfg

	err := retryWithBackoff(ctx, func() error {
		pg, err := dial(ctx, func() (*database.PostgresClient, error) {
			return database.NewPostgres(cfg.Database.Postgres)
		})
		a.pg = pg
		return err
	}, opts.retries, 2*time.Second, a.zapLog, "PostgreSQL connection")
	if err != nil {
		return err
	}
	a.zapLog.Info("PostgreSQL connected successfully")

	err = retryWithBackoff(ctx, func() error {
		rdb, err := dial(ctx, func() (*database.RedisClient, error) {
			return database.NewRedis(cfg.Database.Redis)
		})
		a.redis = rdb
		return err
	}, opts.retries, 2*time.Second, a.zapLog, "Redis connection")
	if err != nil {
		return err
	}
	a.zapLog.Info("Redis connected successfully")

	if cfg.Database.Elasticsearch.Enabled() {
		err = retryWithBackoff(ctx, func() error {
			var err error
			if a.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch); err != nil {
				return err
			}
			return a.es.Ping(ctx)
		}, opts.retries, 2*time.Second, a.zapLog, "Elasticsearch connection")
		if err != nil {
			return err
		}
		a.zapLog.Info("Elasticsearch connected successfully")
	}

	if opts.zeebe {
		err = retryWithBackoff(ctx, func() error {
			var err error
			a.zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, opts.retries, 2*time.Second, a.zapLog, "Zeebe client initialization")
		if err != nil {
			return err
		}
		a.zapLog.Info("Zeebe client connected successfully")
	}
	return nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	a.store = store.New(a.pg.DB)
	a.stripe = payments.NewStripeClient(cfg.Stripe)

	notifyOpts := notify.Options{Logger: a.log}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.Alerts.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return fmt.Errorf("aws config: %w", err)
		}
		if cfg.Notifications.Email.Enabled {
			notifyOpts.Email = awsclient.NewSESClient(awsCfg)
			notifyOpts.FromEmail = cfg.Notifications.Email.FromEmail
		}
		if cfg.Notifications.Alerts.Enabled {
			notifyOpts.Publisher = awsclient.NewSNSClient(awsCfg)
			notifyOpts.TopicARN = cfg.Notifications.Alerts.TopicARN
		}
	}
	a.notifier = notify.New(notifyOpts)

	a.usage = usage.NewService(usage.Options{
		Store: a.store,
		Cache: usage.NewRedisCache(a.redis.Client, config.GetSeconds(cfg.Billing.EntitlementCacheTTL)),
		Pricing: usage.Pricing{
			InterviewCents:   cfg.Billing.OverageCents.Interview,
			ResumeMatchCents: cfg.Billing.OverageCents.ResumeMatch,
		},
		Grace:  time.Duration(cfg.Billing.PastDueGraceHours) * time.Hour,
		Logger: a.log.WithFields(map[string]interface{}{"component": "usage"}),
	})

	a.adjust = adjust.NewService(adjust.Options{
		Store:               a.store,
		Cache:               a.usage,
		Alerter:             a.notifier,
		AlertThresholdCents: cfg.Billing.LargeAdjustmentCents,
		Logger:              a.log.WithFields(map[string]interface{}{"component": "adjust"}),
	})

	reconcileOpts := reconcile.Options{
		Store:   a.store,
		Gateway: a.stripe,
		Prices:  tiers.PriceBook(cfg.Stripe.Prices),
		Limits: reconcile.TopUpLimits{
			MinCents: cfg.Stripe.TopUpMinCents,
			MaxCents: cfg.Stripe.TopUpMaxCents,
			Currency: cfg.Stripe.Currency,
		},
		Cache:         a.usage,
		Notifier:      a.notifier,
		Locker:        reconcile.NewRedisEventLocker(a.redis.Client, config.GetSeconds(cfg.Billing.EventLockTTL)),
		Observability: a.obs,
		Logger:        a.log.WithFields(map[string]interface{}{"component": "reconcile"}),
	}
	if a.zeebe != nil {
		reconcileOpts.Workflows = a.zeebe
	}
	a.reconcile = reconcile.NewService(reconcileOpts)

	analyticsOpts := analytics.Options{
		Store:    a.store,
		Cache:    a.redis.Client,
		CacheTTL: config.GetSeconds(cfg.Analytics.CacheTTL),
		Logger:   a.log.WithFields(map[string]interface{}{"component": "analytics"}),
	}
	if a.es != nil {
		analyticsOpts.Search = analytics.NewUsageIndex(a.es.Client, cfg.Analytics.UsageIndex)
	}
	a.analytics = analytics.NewService(analyticsOpts)

	if kc := cfg.Auth.Keycloak; kc.URL != "" {
		a.keycloak = auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret)
	}
	return nil
}

func (a *app) close() {
	if a.zeebe != nil {
		if err := a.zeebe.Close(); err != nil {
			a.zapLog.Warn("closing zeebe client", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.obs.Shutdown(ctx)
		cancel()
	}
	_ = a.zapLog.Sync()
}
