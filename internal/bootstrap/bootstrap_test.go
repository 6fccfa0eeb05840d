package bootstrap

import (
	"CamKeeper/internal/config"
	"CamKeeper/internal/model"
	"CamKeeper/internal/search"
	"CamKeeper/internal/service"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	l, sync, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, l)
	sync()

	_, _, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestOpen_SQLiteAndMemoryIndex(t *testing.T) {
	cfg := &config.Config{
		DatabaseDSN:   filepath.Join(t.TempDir(), "cams.db"),
		SearchBackend: config.SearchMemory,
		StoreTimeout:  time.Second,
		IndexTimeout:  time.Second,
		AdminLogins:   []string{"root"},
	}

	app, cleanup, err := Open(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	_, ok := app.Index.(*search.MemoryIndex)
	assert.True(t, ok)

	u, err := app.Users.Register(context.Background(), "root", "rootroot")
	require.NoError(t, err)
	assert.True(t, u.IsSuperuser)

	res, err := app.Cameras.Create(context.Background(), &model.Principal{UserID: u.ID}, service.CameraInput{Name: "Gate"})
	require.NoError(t, err)
	assert.False(t, res.Degraded())
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{SearchBackend: config.SearchMemory}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestOpenIndex_ElasticCreatesIndex(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = r.URL.Path == "/cams"
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	}))
	defer srv.Close()

	idx, err := OpenIndex(context.Background(), &config.Config{
		SearchBackend: config.SearchElastic,
		ElasticURLs:   []string{srv.URL},
		ElasticIndex:  "cams",
		IndexTimeout:  time.Second,
	})
	require.NoError(t, err)
	assert.IsType(t, &search.ElasticIndex{}, idx)
	assert.True(t, created)
}

func TestOpenIndex_ElasticUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := OpenIndex(context.Background(), &config.Config{
		SearchBackend: config.SearchElastic,
		ElasticURLs:   []string{addr},
		ElasticIndex:  "cams",
		IndexTimeout:  time.Second,
	})
	assert.ErrorIs(t, err, search.ErrUnavailable)
}

func TestOpen_ElasticDownAtStartup(t *testing.T) {
	prev := ensureRetryInterval
	ensureRetryInterval = 20 * time.Millisecond
	t.Cleanup(func() { ensureRetryInterval = prev })

	var down, created atomic.Bool
	down.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{}`))
			return
		}
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/cams":
			created.Store(true)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		DatabaseDSN:   filepath.Join(t.TempDir(), "cams.db"),
		SearchBackend: config.SearchElastic,
		ElasticURLs:   []string{srv.URL},
		ElasticIndex:  "cams",
		StoreTimeout:  time.Second,
		IndexTimeout:  time.Second,
	}
	app, cleanup, err := Open(ctx, cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	u, err := app.Users.Register(ctx, "owner", "password")
	require.NoError(t, err)
	res, err := app.Cameras.Create(ctx, &model.Principal{UserID: u.ID}, service.CameraInput{Name: "Gate"})
	require.NoError(t, err)
	assert.True(t, res.Degraded())

	down.Store(false)
	assert.Eventually(t, created.Load, 2*time.Second, 20*time.Millisecond)
}
