package repo

import (
	"CamKeeper/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

// ListFilter параметры выборки живых камер.
type ListFilter struct {
	OwnerID *int64
	Offset  int
	Limit   int
}

// CameraRepository — авторитетное хранилище камер.
// Отсутствующая запись всегда сообщается как gorm.ErrRecordNotFound.
type CameraRepository interface {
	Create(ctx context.Context, cam *model.Camera) error

	// GetByID возвращает камеру в любом состоянии, включая мягко удалённые.
	GetByID(ctx context.Context, id int64) (*model.Camera, error)
	GetByCode(ctx context.Context, code string) (*model.Camera, error)

	// UpdateFields обновляет только живую камеру и возвращает её состояние после commit.
	UpdateFields(ctx context.Context, id int64, updates map[string]any) (*model.Camera, error)

	// SetDeleted переводит живую камеру в состояние soft_deleted.
	SetDeleted(ctx context.Context, id int64) (*model.Camera, error)

	// DeleteByID физически удаляет строку.
	DeleteByID(ctx context.Context, id int64) error

	// ListLive — живые камеры в порядке создания (id по возрастанию).
	ListLive(ctx context.Context, f ListFilter) ([]model.Camera, error)

	// GetLiveByIDs — живые камеры из списка id, порядок не гарантируется.
	GetLiveByIDs(ctx context.Context, ids []int64) ([]model.Camera, error)

	// ListAfter — постраничный обход всех строк (включая мягко удалённые) с id > afterID.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Camera, error)
}

type cameraRepo struct {
	db *gorm.DB
}

// NewCameraRepository создаёт реализацию репозитория для Camera.
func NewCameraRepository(db *gorm.DB) CameraRepository {
	return &cameraRepo{db: db}
}

func (r *cameraRepo) Create(ctx context.Context, cam *model.Camera) error {
	return r.db.WithContext(ctx).Create(cam).Error
}

func (r *cameraRepo) GetByID(ctx context.Context, id int64) (*model.Camera, error) {
	var cam model.Camera
	if err := r.db.WithContext(ctx).First(&cam, id).Error; err != nil {
		return nil, err
	}
	return &cam, nil
}

func (r *cameraRepo) GetByCode(ctx context.Context, code string) (*model.Camera, error) {
	var cam model.Camera
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&cam).Error; err != nil {
		return nil, err
	}
	return &cam, nil
}

func (r *cameraRepo) UpdateFields(ctx context.Context, id int64, updates map[string]any) (*model.Camera, error) {
	patch := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC().Truncate(time.Microsecond)
	return r.mutateLive(ctx, id, patch)
}

func (r *cameraRepo) SetDeleted(ctx context.Context, id int64) (*model.Camera, error) {
	return r.mutateLive(ctx, id, map[string]any{
		"is_deleted": true,
		"is_active":  false,
		"updated_at": time.Now().UTC().Truncate(time.Microsecond),
	})
}

// mutateLive применяет patch к живой строке и перечитывает её в той же транзакции.
// Отменённый до commit контекст откатывает транзакцию целиком.
func (r *cameraRepo) mutateLive(ctx context.Context, id int64, patch map[string]any) (*model.Camera, error) {
	var cam model.Camera
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Camera{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(patch)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&cam, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &cam, nil
}

func (r *cameraRepo) DeleteByID(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Camera{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *cameraRepo) ListLive(ctx context.Context, f ListFilter) ([]model.Camera, error) {
	q := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []model.Camera
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cameraRepo) GetLiveByIDs(ctx context.Context, ids []int64) ([]model.Camera, error) {
	if len(ids) == 0 {
		return []model.Camera{}, nil
	}
	var out []model.Camera
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cameraRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]model.Camera, error) {
	var out []model.Camera
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
