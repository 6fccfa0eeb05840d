package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeES — минимальный сервер, говорящий на REST-протоколе Elasticsearch.
type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request, body []byte)
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
	f.mu.Unlock()

	// клиент v8 проверяет, что отвечает настоящий Elasticsearch
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.handle(w, r, body)
}

func (f *fakeES) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFakeES(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body []byte)) (*ElasticIndex, *fakeES) {
	t.Helper()
	return newFakeESWithRefresh(t, "", handle)
}

func newFakeESWithRefresh(t *testing.T, refresh string, handle func(w http.ResponseWriter, r *http.Request, body []byte)) (*ElasticIndex, *fakeES) {
	t.Helper()
	f := &fakeES{handle: handle}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	idx, err := NewElasticIndex(ElasticConfig{
		Addresses: []string{srv.URL},
		Index:     "cameras_index",
		Refresh:   refresh,
	})
	require.NoError(t, err)
	return idx, f
}

func TestNewElasticIndex_EmptyIndexName(t *testing.T) {
	_, err := NewElasticIndex(ElasticConfig{Addresses: []string{"http://localhost:9200"}})
	assert.Error(t, err)
}

func TestElasticIndex_IndexDocument(t *testing.T) {
	idx, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := idx.IndexDocument(context.Background(), Document{ID: 7, OwnerID: 3, Code: "c-7", Name: "Gate", CreatedAt: created})
	require.NoError(t, err)

	req := f.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/cameras_index/_doc/7", req.Path)
	assert.Contains(t, req.Query, "refresh=wait_for")

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(req.Body), &doc))
	assert.Equal(t, int64(7), doc.ID)
	assert.Equal(t, "Gate", doc.Name)
	assert.True(t, created.Equal(doc.CreatedAt))
}

func TestElasticIndex_UpdateDocument(t *testing.T) {
	status := http.StatusOK
	idx, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, idx.UpdateDocument(context.Background(), Document{ID: 7, Name: "Gate 2"}))
	req := f.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/cameras_index/_update/7", req.Path)
	assert.Contains(t, req.Query, "refresh=wait_for")
	assert.Contains(t, req.Body, `"doc":`)
	assert.Contains(t, req.Body, `"Gate 2"`)

	status = http.StatusNotFound
	err := idx.UpdateDocument(context.Background(), Document{ID: 8})
	assert.ErrorIs(t, err, ErrDocumentMissing)

	status = http.StatusInternalServerError
	err = idx.UpdateDocument(context.Background(), Document{ID: 8})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestElasticIndex_DeleteDocumentIsIdempotent(t *testing.T) {
	status := http.StatusOK
	idx, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, idx.DeleteDocument(context.Background(), 9))
	assert.Equal(t, http.MethodDelete, f.last().Method)
	assert.Equal(t, "/cameras_index/_doc/9", f.last().Path)
	assert.Contains(t, f.last().Query, "refresh=wait_for")

	status = http.StatusNotFound
	assert.NoError(t, idx.DeleteDocument(context.Background(), 9))

	status = http.StatusInternalServerError
	assert.ErrorIs(t, idx.DeleteDocument(context.Background(), 9), ErrUnavailable)
}

func TestElasticIndex_SearchByText(t *testing.T) {
	idx, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"12"},{"_id":"not-a-number"},{"_id":"3"}]}}`))
	})

	ids, err := idx.SearchByText(context.Background(), "cam a", 20, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 3}, ids)

	req := f.last()
	assert.Equal(t, "/cameras_index/_search", req.Path)
	assert.Contains(t, req.Query, "from=20")
	assert.Contains(t, req.Query, "size=10")

	var q map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.Body), &q))
	mm := q["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "cam a", mm["query"])
	assert.Equal(t, "and", mm["operator"])
	assert.Equal(t, false, q["_source"])
}

func TestElasticIndex_DocumentIDs(t *testing.T) {
	idx, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"4"},{"_id":"5"}]}}`))
	})

	ids, err := idx.DocumentIDs(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, ids)
	assert.Contains(t, f.last().Body, `"range":{"id":{"gt":3}}`)
	assert.NotContains(t, f.last().Query, "from=")
}

func TestElasticIndex_SearchErrorIsUnavailable(t *testing.T) {
	idx, _ := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	_, err := idx.SearchByText(context.Background(), "x", 0, 10)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "boom")
}

func TestElasticIndex_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	idx, err := NewElasticIndex(ElasticConfig{Addresses: []string{addr}, Index: "cameras_index"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, idx.IndexDocument(ctx, Document{ID: 1}), ErrUnavailable)
	_, err = idx.SearchByText(ctx, "x", 0, 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestElasticIndex_EnsureIndex(t *testing.T) {
	exists := false
	idx, f := newFakeES(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		switch r.Method {
		case http.MethodHead:
			if exists {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			exists = true
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	require.NoError(t, idx.EnsureIndex(context.Background()))
	req := f.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/cameras_index", req.Path)
	assert.True(t, strings.Contains(req.Body, `"owner_id"`))

	// второй вызов — индекс уже есть, создание не требуется
	n := len(f.requests)
	require.NoError(t, idx.EnsureIndex(context.Background()))
	assert.Len(t, f.requests, n+1)
	assert.Equal(t, http.MethodHead, f.last().Method)
}

func TestElasticIndex_ExplicitRefreshIsPassedThrough(t *testing.T) {
	idx, f := newFakeESWithRefresh(t, "false", func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":"updated"}`))
	})

	require.NoError(t, idx.IndexDocument(context.Background(), Document{ID: 1, Name: "Gate"}))
	assert.Contains(t, f.last().Query, "refresh=false")
	assert.NotContains(t, f.last().Query, "wait_for")
}
