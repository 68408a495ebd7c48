// Package server exposes health, metrics and the payment provider webhook over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"robohire-billing/internal/billing/reconcile"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v76"
)

const (
	DefaultMaxWebhookBytes = 64 << 10
	DefaultShutdownTimeout = 10 * time.Second
	readyTimeout           = 2 * time.Second
)

type EventProcessor interface {
	ProcessEvent(ctx context.Context, ev *stripe.Event) (reconcile.Outcome, error)
}

type Verifier interface {
	Verify(payload []byte, signature string) (*stripe.Event, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Address         string
	MaxWebhookBytes int64
	ShutdownTimeout time.Duration
	Verifier        Verifier
	Events          EventProcessor
	// Checks are pinged by /ready, keyed by dependency name.
	Checks map[string]Pinger
	Logger logger.Logger
}

type Server struct {
	router   *gin.Engine
	opts     Options
	logger   logger.Logger
	maxBytes int64
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	maxBytes := opts.MaxWebhookBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxWebhookBytes
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, opts: opts, logger: log, maxBytes: maxBytes}

	router.GET("/health", s.handleHealth)
	router.GET("/ready", s.handleReady)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/webhooks/stripe", s.handleStripeWebhook)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.opts.Address})
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	failures := gin.H{}
	for name, p := range s.opts.Checks {
		if err := p.Ping(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failures": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleStripeWebhook(c *gin.Context) {
	status, body := s.processWebhook(c)
	metrics.WebhookRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	c.JSON(status, body)
}

func (s *Server) processWebhook(c *gin.Context) (int, gin.H) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"}
		}
		return http.StatusBadRequest, gin.H{"error": "unreadable payload"}
	}

	event, err := s.opts.Verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("webhook rejected", map[string]interface{}{"error": err})
		return errors.HTTPStatus(err), gin.H{"error": errors.CodeOf(err)}
	}

	outcome, err := s.opts.Events.ProcessEvent(c.Request.Context(), event)
	if err != nil {
		return errors.HTTPStatus(err), gin.H{"error": errors.CodeOf(err), "eventId": event.ID}
	}
	return http.StatusOK, gin.H{"received": true, "outcome": string(outcome)}
}
