package handlers

import (
	"CamKeeper/internal/middleware"
	"CamKeeper/internal/model"
	"CamKeeper/internal/service"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IndexStatusHeader — заголовок с состоянием индекса после записи.
const IndexStatusHeader = "X-Index-Status"

// CameraHandler CRUD, поиск и сверка камер.
type CameraHandler struct {
	CameraService *service.CameraService
	Logger        *zap.SugaredLogger
}

func NewCameraHandler(cameraService *service.CameraService, logger *zap.SugaredLogger) *CameraHandler {
	return &CameraHandler{CameraService: cameraService, Logger: logger}
}

type createCameraRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	IsActive    *bool  `json:"is_active"`
}

type updateCameraRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	IsActive    *bool   `json:"is_active"`
}

type cameraDTO struct {
	ID          int64             `json:"id"`
	OwnerID     int64             `json:"owner_id"`
	Code        string            `json:"code"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	IsActive    bool              `json:"is_active"`
	IsDeleted   bool              `json:"is_deleted"`
	State       model.CameraState `json:"state"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// cameraWriteDTO — ответ изменяющей операции.
type cameraWriteDTO struct {
	cameraDTO
	IndexStatus service.IndexStatus `json:"index_status"`
	IndexError  string              `json:"index_error,omitempty"`
}

type hardDeleteDTO struct {
	ID          int64               `json:"id"`
	Deleted     bool                `json:"deleted"`
	IndexStatus service.IndexStatus `json:"index_status"`
	IndexError  string              `json:"index_error,omitempty"`
}

type reconcileDTO struct {
	ID     int64                   `json:"id"`
	Action service.ReconcileAction `json:"action"`
}

func toCameraDTO(c *model.Camera) cameraDTO {
	return cameraDTO{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Code:        c.Code,
		Name:        c.Name,
		Description: c.Description,
		Location:    c.Location,
		IsActive:    c.IsActive,
		IsDeleted:   c.IsDeleted,
		State:       c.State(),
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func indexErrorText(res service.WriteResult) string {
	if res.IndexError == nil {
		return ""
	}
	return res.IndexError.Error()
}

func (h *CameraHandler) writeResult(w http.ResponseWriter, status int, res service.WriteResult) {
	w.Header().Set(IndexStatusHeader, string(res.IndexStatus))
	writeJSON(w, status, cameraWriteDTO{
		cameraDTO:   toCameraDTO(res.Camera),
		IndexStatus: res.IndexStatus,
		IndexError:  indexErrorText(res),
	})
}

// principal возвращает субъекта запроса или nil; сервис сам ответит ErrUnauthorized.
func principal(r *http.Request) *model.Principal {
	p, _ := middleware.GetPrincipalFromContext(r.Context())
	return p
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}

// Create POST /api/cameras
func (h *CameraHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.CameraService.Create(r.Context(), principal(r), service.CameraInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		IsActive:    req.IsActive,
	})
	if err != nil {
		fail(w, h.Logger, "CreateCamera", err)
		return
	}
	h.writeResult(w, http.StatusCreated, res)
}

// List GET /api/cameras?q=&skip=&limit=&owner=
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	q, err := parseListQuery(r, p)
	if err != nil {
		fail(w, h.Logger, "ListCameras", err)
		return
	}

	cams, err := h.CameraService.List(r.Context(), p, q)
	if err != nil {
		fail(w, h.Logger, "ListCameras", err)
		return
	}
	out := make([]cameraDTO, 0, len(cams))
	for i := range cams {
		out = append(out, toCameraDTO(&cams[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseListQuery(r *http.Request, p *model.Principal) (service.ListQuery, error) {
	v := r.URL.Query()
	q := service.ListQuery{Text: v.Get("q")}

	var err error
	if q.Offset, err = intParam(v.Get("skip"), "skip"); err != nil {
		return q, err
	}
	if q.Limit, err = intParam(v.Get("limit"), "limit"); err != nil {
		return q, err
	}

	switch owner := v.Get("owner"); owner {
	case "":
	case "me":
		if p != nil {
			id := p.UserID
			q.OwnerID = &id
		}
	default:
		id, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			return q, &service.ValidationError{Field: "owner", Reason: "must be 'me' or a user id"}
		}
		q.OwnerID = &id
	}
	return q, nil
}

func intParam(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: field, Reason: "must be an integer"}
	}
	return n, nil
}

// Get GET /api/cameras/{id}
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, h.Logger, "GetCamera", err)
		return
	}
	cam, err := h.CameraService.Get(r.Context(), principal(r), id)
	if err != nil {
		fail(w, h.Logger, "GetCamera", err)
		return
	}
	writeJSON(w, http.StatusOK, toCameraDTO(cam))
}

// Update PUT /api/cameras/{id}
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, h.Logger, "UpdateCamera", err)
		return
	}
	var req updateCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.CameraService.Update(r.Context(), principal(r), id, service.CameraPatch{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		IsActive:    req.IsActive,
	})
	if err != nil {
		fail(w, h.Logger, "UpdateCamera", err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

// SoftDelete DELETE /api/cameras/{id}
func (h *CameraHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, h.Logger, "SoftDeleteCamera", err)
		return
	}
	res, err := h.CameraService.SoftDelete(r.Context(), principal(r), id)
	if err != nil {
		fail(w, h.Logger, "SoftDeleteCamera", err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

// HardDelete DELETE /api/cameras/{id}/hard
func (h *CameraHandler) HardDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, h.Logger, "HardDeleteCamera", err)
		return
	}
	res, err := h.CameraService.HardDelete(r.Context(), principal(r), id)
	if err != nil {
		fail(w, h.Logger, "HardDeleteCamera", err)
		return
	}
	w.Header().Set(IndexStatusHeader, string(res.IndexStatus))
	writeJSON(w, http.StatusOK, hardDeleteDTO{
		ID:          id,
		Deleted:     true,
		IndexStatus: res.IndexStatus,
		IndexError:  indexErrorText(res),
	})
}

// Reconcile POST /api/cameras/{id}/reconcile (суперпользователь)
func (h *CameraHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if err := service.AuthorizeOperator(principal(r)); err != nil {
		fail(w, h.Logger, "ReconcileCamera", err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		fail(w, h.Logger, "ReconcileCamera", err)
		return
	}
	action, err := h.CameraService.Reconcile(r.Context(), id)
	if err != nil {
		fail(w, h.Logger, "ReconcileCamera", err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileDTO{ID: id, Action: action})
}

// Sweep POST /api/admin/reconcile (суперпользователь)
func (h *CameraHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if err := service.AuthorizeOperator(principal(r)); err != nil {
		fail(w, h.Logger, "Sweep", err)
		return
	}
	stats, err := h.CameraService.Sweep(r.Context())
	if err != nil && !errors.Is(err, service.ErrSearchUnavailable) && !errors.Is(err, service.ErrTransient) {
		fail(w, h.Logger, "Sweep", err)
		return
	}
	if err != nil {
		// частичный проход: статистика всё равно нужна оператору
		h.Logger.Warnw("Sweep: interrupted", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "stats": stats})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
