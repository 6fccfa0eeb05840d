// Package search содержит производную проекцию камер в полнотекстовый индекс.
// Индекс никогда не считается источником истины: всё его содержимое можно
// пересобрать из таблицы cameras.
package search

import (
	"CamKeeper/internal/model"
	"context"
	"errors"
	"time"
)

var (
	// ErrDocumentMissing — частичное обновление документа, которого нет в индексе.
	ErrDocumentMissing = errors.New("search document missing")
	// ErrUnavailable — индекс недоступен или ответил ошибкой.
	ErrUnavailable = errors.New("search index unavailable")
)

// Document — поисковый документ камеры. Ключ совпадает с cameras.id.
type Document struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DocumentFromCamera строит документ из авторитетной строки.
func DocumentFromCamera(c *model.Camera) Document {
	return Document{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Code:        c.Code,
		Name:        c.Name,
		Description: c.Description,
		Location:    c.Location,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

// Index — контракт поискового индекса.
type Index interface {
	// IndexDocument создаёт или полностью заменяет документ.
	IndexDocument(ctx context.Context, doc Document) error

	// UpdateDocument частично обновляет существующий документ.
	// Если документа нет — ErrDocumentMissing.
	UpdateDocument(ctx context.Context, doc Document) error

	// DeleteDocument идемпотентен: отсутствие документа не ошибка.
	DeleteDocument(ctx context.Context, id int64) error

	// SearchByText возвращает id по убыванию релевантности.
	// Документ подходит, только если содержит все слова запроса.
	SearchByText(ctx context.Context, term string, from, size int) ([]int64, error)

	// DocumentIDs — постраничный обход id документов (id > afterID, по возрастанию).
	DocumentIDs(ctx context.Context, afterID int64, size int) ([]int64, error)
}
