package model

import (
	"errors"
	"fmt"
)

// ErrValidation — базовая ошибка нарушения инварианта записи.
// Все *ValidationError сопоставляются с ней через errors.Is.
var ErrValidation = errors.New("ошибка валидации")

// ValidationError — нарушение инварианта реплея.
// Возвращается вызывающему коду в момент создания/обновления, никогда не исправляется молча.
type ValidationError struct {
	Field   string // Поле, не прошедшее проверку
	Message string // Человекочитаемое описание
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is позволяет сопоставлять ошибку с ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
