package handlers

import (
	"CamKeeper/internal/config"
	"CamKeeper/internal/middleware"
	"CamKeeper/internal/model"
	"CamKeeper/internal/service"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// UserHandler регистрация, вход и профиль.
type UserHandler struct {
	UserService *service.UserService
	Logger      *zap.SugaredLogger
	Config      *config.Config
}

func NewUserHandler(userService *service.UserService, logger *zap.SugaredLogger, cfg *config.Config) *UserHandler {
	return &UserHandler{UserService: userService, Logger: logger, Config: cfg}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type userDTO struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	IsSuperuser bool   `json:"is_superuser"`
}

func toUserDTO(u *model.User) userDTO {
	return userDTO{ID: u.ID, Login: u.Login, IsSuperuser: u.IsSuperuser}
}

// Register создаёт пользователя и сразу выдаёт cookie.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.UserService.Register(r.Context(), req.Login, req.Password)
	if err != nil {
		fail(w, h.Logger, "Register", err)
		return
	}

	if _, err := h.setCookie(w, user); err != nil {
		h.Logger.Errorw("Register: token error", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.Logger.Infow("user registered", "user_id", user.ID, "login", user.Login)
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

// Login проверяет пароль, ставит cookie и возвращает токен в теле.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.UserService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		fail(w, h.Logger, "Login", err)
		return
	}

	token, err := h.setCookie(w, user)
	if err != nil {
		h.Logger.Errorw("Login: token error", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokenTTL().Seconds()),
	})
}

// Me возвращает текущего пользователя.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.UserService.GetByID(r.Context(), p.UserID)
	if err != nil {
		fail(w, h.Logger, "Me", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user))
}

func (h *UserHandler) setCookie(w http.ResponseWriter, user *model.User) (string, error) {
	p := model.Principal{UserID: user.ID, IsSuperuser: user.IsSuperuser}
	return middleware.SetLoginCookie(w, p, h.Config.AuthSecret, h.tokenTTL())
}

func (h *UserHandler) tokenTTL() time.Duration {
	if h.Config.TokenTTL <= 0 {
		return time.Hour
	}
	return h.Config.TokenTTL
}
