package handlers

import (
	"CamKeeper/internal/config"
	"CamKeeper/internal/middleware"
	"CamKeeper/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	userService *service.UserService,
	cameraService *service.CameraService,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(config.AuthSecret))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Handlers
	userHandler := NewUserHandler(userService, logger, config)
	cameraHandler := NewCameraHandler(cameraService, logger)

	// User routes
	r.Post("/api/user/register", userHandler.Register)
	r.Post("/api/user/login", userHandler.Login)
	r.Get("/api/user/me", userHandler.Me)

	// Camera routes
	r.Route("/api/cameras", func(r chi.Router) {
		r.Post("/", cameraHandler.Create)
		r.Get("/", cameraHandler.List)
		r.Get("/{id}", cameraHandler.Get)
		r.Put("/{id}", cameraHandler.Update)
		r.Delete("/{id}", cameraHandler.SoftDelete)
		r.Delete("/{id}/hard", cameraHandler.HardDelete)
		r.Post("/{id}/reconcile", cameraHandler.Reconcile)
	})

	// Admin
	r.Post("/api/admin/reconcile", cameraHandler.Sweep)

	return &Handler{Router: r}
}
