// Пакет service — бизнес-логика каталога реплеев.
package service

import "errors"

// Ошибки сервисного слоя.
var (
	// ErrNotFound — реплей не найден.
	ErrNotFound = errors.New("реплей не найден")

	// ErrUploadLimitReached — владелец исчерпал недельный лимит загрузок.
	ErrUploadLimitReached = errors.New("превышен недельный лимит загрузок")
)
