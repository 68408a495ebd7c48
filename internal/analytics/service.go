// Package analytics records AI usage and aggregates it into reports.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/metrics"
	"robohire-billing/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 5 * time.Minute

// UsageSearch is the secondary usage log store.
type UsageSearch interface {
	Index(ctx context.Context, log *models.UsageLog) error
	Search(ctx context.Context, q SearchQuery) (*SearchResult, error)
}

type ReportResult struct {
	Type        ReportType  `json:"type"`
	Params      Params      `json:"params"`
	Data        interface{} `json:"data"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Cached      bool        `json:"cached"`
}

type Options struct {
	Store    *store.Store
	Search   UsageSearch
	Cache    redis.Cmdable
	CacheTTL time.Duration
	Logger   logger.Logger
}

type Service struct {
	store  *store.Store
	search UsageSearch
	cache  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		store:  opts.Store,
		search: opts.Search,
		cache:  opts.Cache,
		ttl:    ttl,
		logger: log,
		now:    time.Now,
	}
}

// RecordUsage stores a usage log row. Indexing into search is best effort.
func (s *Service) RecordUsage(ctx context.Context, l *models.UsageLog) error {
	if l == nil || l.Action == "" {
		return errors.NewValidationError("usage log action is required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now().UTC()
	}
	if l.Status == "" {
		l.Status = models.UsageStatusSuccess
	}
	if l.Status != models.UsageStatusSuccess && l.Status != models.UsageStatusError {
		return errors.NewValidationError(fmt.Sprintf("unknown usage status %q", l.Status))
	}
	if l.TotalTokens == 0 {
		l.TotalTokens = l.PromptTokens + l.CompletionTokens
	}

	if err := s.store.InsertUsageLog(ctx, l); err != nil {
		return errors.WrapDatabase("insert usage log", err)
	}

	if s.search != nil {
		if err := s.search.Index(ctx, l); err != nil {
			metrics.UsageIndexFailures.Inc()
			s.logger.Warn("usage log not indexed", map[string]interface{}{
				"usageLogId": l.ID,
				"error":      err,
			})
		}
	}
	return nil
}

// Report runs a registered report, serving repeated requests from the cache.
func (s *Service) Report(ctx context.Context, reportType ReportType, p Params) (*ReportResult, error) {
	key := ReportCacheKey(reportType, p)

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached ReportResult
			if json.Unmarshal(raw, &cached) == nil {
				cached.Cached = true
				return &cached, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("report cache read failed", map[string]interface{}{"key": key, "error": err})
		}
	}

	data, err := Run(ctx, s.store.DB(), reportType, p)
	if err != nil {
		return nil, err
	}
	result := &ReportResult{Type: reportType, Params: p, Data: data, GeneratedAt: s.now().UTC()}

	if s.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("report cache write failed", map[string]interface{}{"key": key, "error": err})
			}
		}
	}
	return result, nil
}

func (s *Service) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if s.search == nil {
		return nil, errors.NewSearchQueryFailedError("usage", fmt.Errorf("search is not configured"))
	}
	return s.search.Search(ctx, q)
}

func ReportCacheKey(reportType ReportType, p Params) string {
	return fmt.Sprintf("analytics:%s:%s:%s:%s:%s:%d",
		reportType,
		p.From.UTC().Format(time.RFC3339),
		p.To.UTC().Format(time.RFC3339),
		p.UserID, p.GroupBy, p.Limit)
}
