package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Ошибки сервисного слоя. Сопоставляются через errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrSearchUnavailable = errors.New("search unavailable")
	ErrTransient         = errors.New("transient failure")
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// storeErr переводит ошибку хранилища в сервисную: отсутствие строки — ErrNotFound,
// всё остальное (таймаут, обрыв соединения, отмена) — ErrTransient.
func storeErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func searchErr(err error) error {
	return fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
}
