package service

import (
	"CamKeeper/internal/search"
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ReconcileAction — что сделала сверка с документом.
type ReconcileAction string

const (
	ReconcileIndexed ReconcileAction = "indexed"
	ReconcileRemoved ReconcileAction = "removed"
)

// SweepStats итог полного прохода сверки.
type SweepStats struct {
	Rows    int `json:"rows"`
	Indexed int `json:"indexed"`
	Removed int `json:"removed"`
	Orphans int `json:"orphans"`
	Failed  int `json:"failed"`
}

// Reconcile приводит документ id к состоянию строки в БД: живая камера
// индексируется заново, мягко удалённая или отсутствующая — убирается из индекса.
// Идемпотентна и безопасна для камеры в любом состоянии.
func (s *CameraService) Reconcile(ctx context.Context, id int64) (ReconcileAction, error) {
	sctx, cancel := s.storeCtx(ctx)
	cam, err := s.repo.GetByID(sctx, id)
	cancel()
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", storeErr(err)
	}

	ictx, icancel := s.indexCtx(ctx)
	defer icancel()

	if err == nil && cam.Live() {
		if err := s.index.IndexDocument(ictx, search.DocumentFromCamera(cam)); err != nil {
			return "", searchErr(err)
		}
		if s.stillLive(ctx, id) {
			return ReconcileIndexed, nil
		}
		// удаление успело между чтением и записью документа
		s.logger.Infow("camera deleted during reconcile", "camera_id", id)
	}

	if err := s.index.DeleteDocument(ictx, id); err != nil {
		return "", searchErr(err)
	}
	return ReconcileRemoved, nil
}

// stillLive перечитывает строку после записи документа. Ошибка БД здесь
// не отменяет уже сделанную индексацию: расхождение поправит следующая сверка.
func (s *CameraService) stillLive(ctx context.Context, id int64) bool {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	cur, err := s.repo.GetByID(sctx, id)
	switch {
	case err == nil:
		return cur.Live()
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false
	default:
		s.logger.Warnw("recheck after reconcile failed", "camera_id", id, "error", err)
		return true
	}
}

// Sweep сверяет весь индекс с БД. Первый проход обходит все строки (включая
// мягко удалённые), второй — все документы индекса и удаляет осиротевшие.
// Ошибки по отдельным камерам считаются в Failed и не прерывают проход.
func (s *CameraService) Sweep(ctx context.Context) (SweepStats, error) {
	var (
		stats SweepStats
		mu    sync.Mutex
	)

	var after int64
	for {
		sctx, cancel := s.storeCtx(ctx)
		rows, err := s.repo.ListAfter(sctx, after, s.opts.SweepBatch)
		cancel()
		if err != nil {
			return stats, storeErr(err)
		}
		if len(rows) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.SweepWorkers)
		for i := range rows {
			id := rows[i].ID
			g.Go(func() error {
				action, err := s.Reconcile(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				stats.Rows++
				switch {
				case err != nil:
					stats.Failed++
					s.logger.Warnw("reconcile failed", "camera_id", id, "error", err)
				case action == ReconcileIndexed:
					stats.Indexed++
				default:
					stats.Removed++
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return stats, err
		}
		after = rows[len(rows)-1].ID
	}

	if err := s.removeOrphans(ctx, &stats); err != nil {
		return stats, err
	}

	s.logger.Infow("sweep finished",
		"rows", stats.Rows,
		"indexed", stats.Indexed,
		"removed", stats.Removed,
		"orphans", stats.Orphans,
		"failed", stats.Failed,
	)
	return stats, nil
}

// removeOrphans удаляет документы, для которых нет живой строки
// (например, жёсткое удаление, после которого индекс был недоступен).
func (s *CameraService) removeOrphans(ctx context.Context, stats *SweepStats) error {
	var after int64
	for {
		ictx, icancel := s.indexCtx(ctx)
		ids, err := s.index.DocumentIDs(ictx, after, s.opts.SweepBatch)
		icancel()
		if err != nil {
			return searchErr(err)
		}
		if len(ids) == 0 {
			return nil
		}

		sctx, cancel := s.storeCtx(ctx)
		live, err := s.repo.GetLiveByIDs(sctx, ids)
		cancel()
		if err != nil {
			return storeErr(err)
		}
		liveSet := make(map[int64]struct{}, len(live))
		for _, c := range live {
			liveSet[c.ID] = struct{}{}
		}

		for _, id := range ids {
			if _, ok := liveSet[id]; ok {
				continue
			}
			ictx, icancel := s.indexCtx(ctx)
			err := s.index.DeleteDocument(ictx, id)
			icancel()
			if err != nil {
				stats.Failed++
				s.logger.Warnw("orphan removal failed", "camera_id", id, "error", err)
				continue
			}
			stats.Orphans++
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		after = ids[len(ids)-1]
	}
}
