package model

import "time"

// CameraState — явное состояние жизненного цикла камеры.
type CameraState string

const (
	CameraLive        CameraState = "live"
	CameraSoftDeleted CameraState = "soft_deleted"
)

// Camera — серверная модель камеры. Источник истины для поискового индекса.
type Camera struct {
	ID      int64 `gorm:"primaryKey;autoIncrement"`
	OwnerID int64 `gorm:"not null;index"` // ссылка на users.id

	// Связи
	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Code        string `gorm:"size:100;not null;uniqueIndex"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Location    string `gorm:"size:255"`

	IsActive  bool `gorm:"not null"`
	IsDeleted bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// State возвращает состояние камеры, выведенное из флага мягкого удаления.
func (c *Camera) State() CameraState {
	if c.IsDeleted {
		return CameraSoftDeleted
	}
	return CameraLive
}

// Live сообщает, должна ли камера присутствовать в поисковом индексе.
func (c *Camera) Live() bool {
	return c.State() == CameraLive
}
