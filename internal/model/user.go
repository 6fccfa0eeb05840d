package model

import "time"

// User — пользователь сервера.
type User struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Login       string `gorm:"size:150;not null;uniqueIndex"`
	Password    string `gorm:"size:255;not null"` // bcrypt-хэш
	IsSuperuser bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
