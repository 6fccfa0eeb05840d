package service

import (
	"CamKeeper/internal/model"
	"CamKeeper/internal/repo"
	"context"
	"strings"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ListQuery параметры чтения списка. Text != "" направляет запрос в поисковый индекс.
type ListQuery struct {
	Text    string
	OwnerID *int64
	Offset  int
	Limit   int
}

// Get читает камеру из БД. Мягко удалённые камеры невидимы.
func (s *CameraService) Get(ctx context.Context, p *model.Principal, id int64) (*model.Camera, error) {
	if err := Authenticated(p); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	cam, err := s.repo.GetByID(sctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if !cam.Live() {
		return nil, ErrNotFound
	}
	return cam, nil
}

// List возвращает живые камеры. С текстом — ранжированный результат индекса,
// без текста — выборка из БД в порядке создания. Недоступный индекс даёт
// ErrSearchUnavailable, подмены на выборку из БД нет.
func (s *CameraService) List(ctx context.Context, p *model.Principal, q ListQuery) ([]model.Camera, error) {
	if err := Authenticated(p); err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		return nil, invalid("skip", "must not be negative")
	}
	if q.Limit < 0 {
		return nil, invalid("limit", "must not be negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}

	if text := strings.TrimSpace(q.Text); text != "" {
		return s.searchLive(ctx, text, q)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	cams, err := s.repo.ListLive(sctx, repo.ListFilter{OwnerID: q.OwnerID, Offset: q.Offset, Limit: q.Limit})
	if err != nil {
		return nil, storeErr(err)
	}
	return cams, nil
}

func (s *CameraService) searchLive(ctx context.Context, text string, q ListQuery) ([]model.Camera, error) {
	ictx, icancel := s.indexCtx(ctx)
	ids, err := s.index.SearchByText(ictx, text, q.Offset, q.Limit)
	icancel()
	if err != nil {
		s.logger.Warnw("search failed", "query", text, "error", err)
		return nil, searchErr(err)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rows, err := s.repo.GetLiveByIDs(sctx, ids)
	if err != nil {
		return nil, storeErr(err)
	}

	// порядок релевантности задаёт индекс; строки, которых уже нет или
	// которые мягко удалены, отбрасываются
	byID := make(map[int64]model.Camera, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}
	out := make([]model.Camera, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			continue
		}
		if q.OwnerID != nil && c.OwnerID != *q.OwnerID {
			continue
		}
		out = append(out, c)
	}
	if len(out) < len(ids) {
		s.logger.Debugw("search hits without live rows", "query", text, "hits", len(ids), "live", len(out))
	}
	return out, nil
}
