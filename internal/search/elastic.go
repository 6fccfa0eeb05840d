package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// searchFields — поля полнотекстового поиска; имя весит больше остальных.
var searchFields = []string{"name^2", "code", "description", "location"}

// indexMapping явная схема индекса cameras.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "long"},
      "owner_id":    {"type": "long"},
      "code":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "name":        {"type": "text"},
      "description": {"type": "text"},
      "location":    {"type": "text"},
      "is_active":   {"type": "boolean"},
      "created_at":  {"type": "date"},
      "updated_at":  {"type": "date"}
    }
  }
}`

// ElasticConfig настройки подключения к Elasticsearch.
type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	// Refresh передаётся в запросы записи: "true", "false" или "wait_for" (по умолчанию).
	Refresh string
	// Transport позволяет подменить HTTP-транспорт (тесты).
	Transport http.RoundTripper
}

// ElasticIndex — реализация Index поверх Elasticsearch.
type ElasticIndex struct {
	client  *elasticsearch.Client
	index   string
	refresh string
}

// NewElasticIndex создаёт клиента. Сетевых запросов не делает.
func NewElasticIndex(cfg ElasticConfig) (*ElasticIndex, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("elasticsearch index name is empty")
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	refresh := cfg.Refresh
	if refresh == "" {
		refresh = "wait_for"
	}
	return &ElasticIndex{client: client, index: cfg.Index, refresh: refresh}, nil
}

// EnsureIndex создаёт индекс с маппингом, если его ещё нет.
func (e *ElasticIndex) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{e.index}}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("%w: indices.exists: %s", ErrUnavailable, res.Status())
	}

	res, err = esapi.IndicesCreateRequest{
		Index: e.index,
		Body:  bytes.NewReader([]byte(indexMapping)),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(res)
	if res.IsError() {
		return responseError("indices.create", res)
	}
	return nil
}

func (e *ElasticIndex) IndexDocument(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %d: %w", doc.ID, err)
	}
	res, err := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: strconv.FormatInt(doc.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    e.refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(res)
	if res.IsError() {
		return responseError("index", res)
	}
	return nil
}

func (e *ElasticIndex) UpdateDocument(ctx context.Context, doc Document) error {
	body, err := json.Marshal(map[string]any{"doc": doc})
	if err != nil {
		return fmt.Errorf("marshal document %d: %w", doc.ID, err)
	}
	res, err := esapi.UpdateRequest{
		Index:      e.index,
		DocumentID: strconv.FormatInt(doc.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    e.refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(res)
	if res.StatusCode == http.StatusNotFound {
		return ErrDocumentMissing
	}
	if res.IsError() {
		return responseError("update", res)
	}
	return nil
}

func (e *ElasticIndex) DeleteDocument(ctx context.Context, id int64) error {
	res, err := esapi.DeleteRequest{
		Index:      e.index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    e.refresh,
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(res)
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete", res)
	}
	return nil
}

func (e *ElasticIndex) SearchByText(ctx context.Context, term string, from, size int) ([]int64, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":    term,
				"fields":   searchFields,
				"operator": "and",
			},
		},
		"sort":    []any{"_score", map[string]any{"id": "asc"}},
		"_source": false,
	}
	return e.searchIDs(ctx, "search", query, &from, &size)
}

func (e *ElasticIndex) DocumentIDs(ctx context.Context, afterID int64, size int) ([]int64, error) {
	query := map[string]any{
		"query": map[string]any{
			"range": map[string]any{"id": map[string]any{"gt": afterID}},
		},
		"sort":    []any{map[string]any{"id": "asc"}},
		"_source": false,
	}
	return e.searchIDs(ctx, "scan", query, nil, &size)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticIndex) searchIDs(ctx context.Context, op string, query map[string]any, from, size *int) ([]int64, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal %s query: %w", op, err)
	}
	res, err := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
		From:  from,
		Size:  size,
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, responseError(op, res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, op, err)
	}
	ids := make([]int64, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			// чужой документ в индексе — пропускаем
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func responseError(op string, res *esapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("%w: %s: %s %s", ErrUnavailable, op, res.Status(), bytes.TrimSpace(msg))
}

func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
