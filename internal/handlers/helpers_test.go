package handlers_test

import (
	"CamKeeper/internal/config"
	"CamKeeper/internal/handlers"
	"CamKeeper/internal/middleware"
	"CamKeeper/internal/model"
	"CamKeeper/internal/repo"
	"CamKeeper/internal/search"
	"CamKeeper/internal/service"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Local light mocks
type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	args := m.Called(ctx, login)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ repo.UserRepository = (*mockUserRepo)(nil)

// switchableIndex отвечает ErrUnavailable, пока down == true.
type switchableIndex struct {
	search.Index
	down atomic.Bool
}

func (s *switchableIndex) IndexDocument(ctx context.Context, doc search.Document) error {
	if s.down.Load() {
		return search.ErrUnavailable
	}
	return s.Index.IndexDocument(ctx, doc)
}

func (s *switchableIndex) UpdateDocument(ctx context.Context, doc search.Document) error {
	if s.down.Load() {
		return search.ErrUnavailable
	}
	return s.Index.UpdateDocument(ctx, doc)
}

func (s *switchableIndex) DeleteDocument(ctx context.Context, id int64) error {
	if s.down.Load() {
		return search.ErrUnavailable
	}
	return s.Index.DeleteDocument(ctx, id)
}

func (s *switchableIndex) SearchByText(ctx context.Context, term string, from, size int) ([]int64, error) {
	if s.down.Load() {
		return nil, search.ErrUnavailable
	}
	return s.Index.SearchByText(ctx, term, from, size)
}

func (s *switchableIndex) DocumentIDs(ctx context.Context, afterID int64, size int) ([]int64, error) {
	if s.down.Load() {
		return nil, search.ErrUnavailable
	}
	return s.Index.DocumentIDs(ctx, afterID, size)
}

func testConfig() *config.Config {
	return &config.Config{AuthSecret: "test-secret", TokenTTL: time.Hour}
}

// newUserTestRouter собирает роутер с замоканным репозиторием пользователей.
func newUserTestRouter(t *testing.T, ur repo.UserRepository) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	logger := zap.NewNop().Sugar()

	userSvc := service.NewUserService(ur)
	// для user-тестов камеры не используются
	camSvc := service.NewCameraService(nil, search.NewMemoryIndex(), logger, service.Options{})

	h := handlers.NewHandler(userSvc, camSvc, logger, cfg)
	return h.Router, cfg
}

type testEnv struct {
	router http.Handler
	cfg    *config.Config
	users  repo.UserRepository
	mem    *search.MemoryIndex
	idx    *switchableIndex
}

// newTestEnv — полный стек поверх SQLite в памяти и MemoryIndex.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: "file:h_" + name + "?mode=memory&cache=shared"}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.Migrate(db))

	cfg := testConfig()
	log := zap.NewNop().Sugar()
	users := repo.NewUserRepository(db)
	mem := search.NewMemoryIndex()
	idx := &switchableIndex{Index: mem}

	userSvc := service.NewUserService(users, "root")
	camSvc := service.NewCameraService(repo.NewCameraRepository(db), idx, log, service.Options{
		StoreTimeout: 2 * time.Second,
		IndexTimeout: 2 * time.Second,
	})
	h := handlers.NewHandler(userSvc, camSvc, log, cfg)
	return &testEnv{router: h.Router, cfg: cfg, users: users, mem: mem, idx: idx}
}

// user создаёт пользователя напрямую в БД.
func (e *testEnv) user(t *testing.T, login string, superuser bool) model.Principal {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), &model.User{Login: login, Password: "x", IsSuperuser: superuser})
	require.NoError(t, err)
	return model.Principal{UserID: u.ID, IsSuperuser: u.IsSuperuser}
}

// do выполняет запрос от имени p (nil — анонимно).
func (e *testEnv) do(t *testing.T, p *model.Principal, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	if p != nil {
		addAuthCookie(t, req, *p, e.cfg.AuthSecret)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func addAuthCookie(t *testing.T, req *http.Request, p model.Principal, secret string) {
	t.Helper()
	rr := httptest.NewRecorder()
	_, err := middleware.SetLoginCookie(rr, p, secret, time.Hour)
	require.NoError(t, err)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
