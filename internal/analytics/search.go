package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	DefaultSearchSize = 20
	MaxSearchSize     = 100
)

type SearchQuery struct {
	UserID string    `json:"userId,omitempty"`
	Action string    `json:"action,omitempty"`
	Status string    `json:"status,omitempty"`
	Text   string    `json:"text,omitempty"`
	From   time.Time `json:"from,omitempty"`
	To     time.Time `json:"to,omitempty"`
	Offset int       `json:"offset,omitempty"`
	Size   int       `json:"size,omitempty"`
}

type SearchResult struct {
	Total int64             `json:"total"`
	Took  int64             `json:"took"`
	Logs  []models.UsageLog `json:"logs"`
}

// UsageIndex stores usage logs in Elasticsearch for ad-hoc search.
type UsageIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewUsageIndex(client *elasticsearch.Client, index string) *UsageIndex {
	if index == "" {
		index = "usage-logs"
	}
	return &UsageIndex{client: client, index: index}
}

func (u *UsageIndex) Index(ctx context.Context, log *models.UsageLog) error {
	body, err := json.Marshal(log)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      u.index,
		DocumentID: log.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, u.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index usage log: %s", res.String())
	}
	return nil
}

func (u *UsageIndex) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	body, err := json.Marshal(BuildSearchQuery(q))
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(u.index, err)
	}

	from, size := page(q)
	req := esapi.SearchRequest{
		Index: []string{u.index},
		Body:  strings.NewReader(string(body)),
		From:  &from,
		Size:  &size,
	}
	res, err := req.Do(ctx, u.client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(u.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(u.index, fmt.Errorf("%s", res.String()))
	}

	var r struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.UsageLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchQueryFailedError(u.index, err)
	}

	out := &SearchResult{Total: r.Hits.Total.Value, Took: r.Took, Logs: make([]models.UsageLog, 0, len(r.Hits.Hits))}
	for _, h := range r.Hits.Hits {
		out.Logs = append(out.Logs, h.Source)
	}
	return out, nil
}

func page(q SearchQuery) (int, int) {
	from, size := q.Offset, q.Size
	if from < 0 {
		from = 0
	}
	if size < 1 {
		size = DefaultSearchSize
	}
	if size > MaxSearchSize {
		size = MaxSearchSize
	}
	return from, size
}

// BuildSearchQuery renders the bool query for a usage log search, newest first.
func BuildSearchQuery(q SearchQuery) map[string]interface{} {
	filterClauses := []interface{}{}
	mustClauses := []interface{}{}

	terms := []struct{ field, value string }{
		{"userId", q.UserID},
		{"action", q.Action},
		{"status", q.Status},
	}
	for _, t := range terms {
		if t.value != "" {
			filterClauses = append(filterClauses, map[string]interface{}{
				"term": map[string]interface{}{t.field: t.value},
			})
		}
	}

	if !q.From.IsZero() || !q.To.IsZero() {
		window := map[string]interface{}{}
		if !q.From.IsZero() {
			window["gte"] = q.From.UTC().Format(time.RFC3339)
		}
		if !q.To.IsZero() {
			window["lt"] = q.To.UTC().Format(time.RFC3339)
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{"createdAt": window},
		})
	}

	if q.Text != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"errorMessage^2", "module", "model"},
				"type":   "best_fields",
			},
		})
	}

	boolQuery := map[string]interface{}{"filter": filterClauses}
	if len(mustClauses) > 0 {
		boolQuery["must"] = mustClauses
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []interface{}{
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
		},
	}
}
