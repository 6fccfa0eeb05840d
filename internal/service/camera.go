package service

import (
	"CamKeeper/internal/model"
	"CamKeeper/internal/repo"
	"CamKeeper/internal/search"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxCodeLen     = 100
	maxNameLen     = 255
	maxLocationLen = 255
)

// IndexStatus — состояние поискового индекса после записи.
// IndexDiverged означает «успех с деградацией»: строка в БД зафиксирована,
// документ в индексе не обновлён и будет исправлен сверкой.
type IndexStatus string

const (
	IndexConsistent IndexStatus = "consistent"
	IndexDiverged   IndexStatus = "diverged"
)

// WriteResult — результат изменяющей операции.
type WriteResult struct {
	Camera      *model.Camera
	IndexStatus IndexStatus
	// IndexError — причина расхождения, nil для IndexConsistent.
	IndexError error
}

// Degraded сообщает, что индекс разошёлся с хранилищем.
func (r WriteResult) Degraded() bool {
	return r.IndexStatus == IndexDiverged
}

// CameraInput — поля новой камеры.
type CameraInput struct {
	Code        string
	Name        string
	Description string
	Location    string
	IsActive    *bool
}

// CameraPatch — частичное обновление; nil означает «не менять».
type CameraPatch struct {
	Name        *string
	Description *string
	Location    *string
	IsActive    *bool
}

// Options ограничения по времени и параметры сверки.
type Options struct {
	StoreTimeout time.Duration
	IndexTimeout time.Duration
	SweepBatch   int
	SweepWorkers int
}

// CameraService синхронизирует камеры между БД и поисковым индексом.
// Порядок всегда один: сначала БД (авторитетно), затем индекс (может деградировать).
// Сервис не хранит изменяемого состояния между запросами.
type CameraService struct {
	repo   repo.CameraRepository
	index  search.Index
	logger *zap.SugaredLogger
	opts   Options
}

// NewCameraService создаёт сервис камер.
func NewCameraService(r repo.CameraRepository, idx search.Index, logger *zap.SugaredLogger, opts Options) *CameraService {
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 100
	}
	if opts.SweepWorkers <= 0 {
		opts.SweepWorkers = 4
	}
	return &CameraService{repo: r, index: idx, logger: logger, opts: opts}
}

// Create сохраняет камеру и индексирует её.
func (s *CameraService) Create(ctx context.Context, p *model.Principal, in CameraInput) (WriteResult, error) {
	if err := Authenticated(p); err != nil {
		return WriteResult{}, err
	}
	cam, err := in.toCamera(p.UserID)
	if err != nil {
		return WriteResult{}, err
	}

	if err := s.insert(ctx, cam); err != nil {
		return WriteResult{}, err
	}

	doc := search.DocumentFromCamera(cam)
	res := s.indexStep(ctx, cam, "create", func(ictx context.Context) error {
		return s.index.IndexDocument(ictx, doc)
	})
	return s.settle(ctx, res, "create")
}

func (s *CameraService) insert(ctx context.Context, cam *model.Camera) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.repo.GetByCode(sctx, cam.Code); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return storeErr(err)
	}

	// точность timestamptz в PostgreSQL — микросекунды
	now := time.Now().UTC().Truncate(time.Microsecond)
	cam.CreatedAt, cam.UpdatedAt = now, now

	if err := s.repo.Create(sctx, cam); err != nil {
		// гонка двух вставок с одним code — проигравший получает нарушение уникальности
		if _, lookupErr := s.repo.GetByCode(sctx, cam.Code); lookupErr == nil {
			return ErrAlreadyExists
		}
		return storeErr(err)
	}
	return nil
}

// Update меняет поля живой камеры. Документ обновляется частично, а если его нет
// в индексе (прошлый сбой) — создаётся заново.
func (s *CameraService) Update(ctx context.Context, p *model.Principal, id int64, patch CameraPatch) (WriteResult, error) {
	if err := Authenticated(p); err != nil {
		return WriteResult{}, err
	}
	updates, err := patch.toUpdates()
	if err != nil {
		return WriteResult{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	cam, err := s.repo.UpdateFields(sctx, id, updates)
	cancel()
	if err != nil {
		return WriteResult{}, storeErr(err)
	}

	doc := search.DocumentFromCamera(cam)
	res := s.indexStep(ctx, cam, "update", func(ictx context.Context) error {
		err := s.index.UpdateDocument(ictx, doc)
		if errors.Is(err, search.ErrDocumentMissing) {
			return s.index.IndexDocument(ictx, doc)
		}
		return err
	})
	return s.settle(ctx, res, "update")
}

// SoftDelete помечает камеру удалённой и убирает документ из индекса.
func (s *CameraService) SoftDelete(ctx context.Context, p *model.Principal, id int64) (WriteResult, error) {
	if err := Authenticated(p); err != nil {
		return WriteResult{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	cam, err := s.repo.SetDeleted(sctx, id)
	cancel()
	if err != nil {
		return WriteResult{}, storeErr(err)
	}

	return s.indexStep(ctx, cam, "soft_delete", func(ictx context.Context) error {
		return s.index.DeleteDocument(ictx, id)
	}), nil
}

// HardDelete физически удаляет строку (владелец или суперпользователь) и документ.
func (s *CameraService) HardDelete(ctx context.Context, p *model.Principal, id int64) (WriteResult, error) {
	if err := Authenticated(p); err != nil {
		return WriteResult{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	cam, err := s.repo.GetByID(sctx, id)
	if err != nil {
		return WriteResult{}, storeErr(err)
	}
	if err := AuthorizeHardDelete(p, cam); err != nil {
		return WriteResult{}, err
	}
	if err := s.repo.DeleteByID(sctx, id); err != nil {
		// NotFound здесь — конкурентное удаление успело раньше
		return WriteResult{}, storeErr(err)
	}

	return s.indexStep(ctx, cam, "hard_delete", func(ictx context.Context) error {
		return s.index.DeleteDocument(ictx, id)
	}), nil
}

// indexStep выполняет запись в индекс. Ошибка не прерывает операцию,
// а переводит результат в IndexDiverged.
func (s *CameraService) indexStep(ctx context.Context, cam *model.Camera, op string, fn func(context.Context) error) WriteResult {
	ictx, cancel := s.indexCtx(ctx)
	defer cancel()

	if err := fn(ictx); err != nil {
		s.logger.Warnw("search index diverged", "op", op, "camera_id", cam.ID, "error", err)
		return WriteResult{Camera: cam, IndexStatus: IndexDiverged, IndexError: err}
	}
	return WriteResult{Camera: cam, IndexStatus: IndexConsistent}
}

// settle перечитывает строку после записи в индекс.
// Если конкурентное удаление успело между шагами, документ убирается и
// возвращается ErrNotFound; если строку успели изменить, документ переиндексируется.
func (s *CameraService) settle(ctx context.Context, res WriteResult, op string) (WriteResult, error) {
	id := res.Camera.ID

	sctx, cancel := s.storeCtx(ctx)
	cur, err := s.repo.GetByID(sctx, id)
	cancel()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		// строка уже зафиксирована, перепроверка не критична
		s.logger.Warnw("recheck after index write failed", "op", op, "camera_id", id, "error", err)
		return res, nil

	case err != nil || !cur.Live():
		s.logger.Infow("camera vanished between steps", "op", op, "camera_id", id)
		s.indexStep(ctx, res.Camera, op+"_vanished", func(ictx context.Context) error {
			return s.index.DeleteDocument(ictx, id)
		})
		return WriteResult{}, ErrNotFound

	case res.IndexStatus == IndexConsistent && !sameContent(cur, res.Camera):
		s.logger.Infow("camera changed between steps, reindexing", "op", op, "camera_id", id)
		doc := search.DocumentFromCamera(cur)
		return s.indexStep(ctx, cur, op+"_reindex", func(ictx context.Context) error {
			return s.index.IndexDocument(ictx, doc)
		}), nil
	}
	return res, nil
}

// sameContent сравнивает индексируемые поля двух версий строки.
func sameContent(a, b *model.Camera) bool {
	return a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.Code == b.Code &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.Location == b.Location &&
		a.IsActive == b.IsActive
}

func (s *CameraService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.StoreTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *CameraService) indexCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.IndexTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.IndexTimeout)
	}
	return context.WithCancel(ctx)
}

func (in CameraInput) toCamera(ownerID int64) (*model.Camera, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if len(name) > maxNameLen {
		return nil, invalid("name", "is too long")
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = uuid.NewString()
	}
	if len(code) > maxCodeLen {
		return nil, invalid("code", "is too long")
	}
	location := strings.TrimSpace(in.Location)
	if len(location) > maxLocationLen {
		return nil, invalid("location", "is too long")
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &model.Camera{
		OwnerID:     ownerID,
		Code:        code,
		Name:        name,
		Description: in.Description,
		Location:    location,
		IsActive:    active,
	}, nil
}

func (p CameraPatch) toUpdates() (map[string]any, error) {
	updates := make(map[string]any, 4)
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, invalid("name", "must not be empty")
		}
		if len(name) > maxNameLen {
			return nil, invalid("name", "is too long")
		}
		updates["name"] = name
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.Location != nil {
		location := strings.TrimSpace(*p.Location)
		if len(location) > maxLocationLen {
			return nil, invalid("location", "is too long")
		}
		updates["location"] = location
	}
	if p.IsActive != nil {
		updates["is_active"] = *p.IsActive
	}
	if len(updates) == 0 {
		return nil, invalid("body", "has no fields to update")
	}
	return updates, nil
}
