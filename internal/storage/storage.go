// Пакет storage — контракт файлового хранилища артефактов реплеев.
// Ссылка на артефакт (ref) имеет вид "<uuid>/<имя файла>": каталог
// обеспечивает уникальность, имя файла сохраняется для экспорта и поиска.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound — артефакт по ссылке не найден.
var ErrNotFound = errors.New("артефакт не найден")

// ErrInvalidRef — ссылка не соответствует формату "<uuid>/<имя файла>".
var ErrInvalidRef = errors.New("некорректная ссылка на артефакт")

// Store — файловое хранилище артефактов.
type Store interface {
	// Put сохраняет содержимое r под именем name и возвращает ссылку.
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	// Read возвращает содержимое артефакта или ErrNotFound.
	Read(ctx context.Context, ref string) ([]byte, error)
	// Delete удаляет артефакт; отсутствующий — ErrNotFound.
	Delete(ctx context.Context, ref string) error
}

// maxNameLen — ограничение длины имени файла в ссылке (в символах).
const maxNameLen = 100

// NewRef генерирует новую уникальную ссылку для файла filename.
func NewRef(filename string) string {
	return uuid.New().String() + "/" + SanitizeFilename(filename)
}

// ValidateRef проверяет формат ссылки: ровно два сегмента, первый — UUID.
func ValidateRef(ref string) error {
	dir, name, ok := strings.Cut(ref, "/")
	if !ok || name == "" || strings.Contains(name, "/") || name == "." || name == ".." {
		return ErrInvalidRef
	}
	if _, err := uuid.Parse(dir); err != nil {
		return ErrInvalidRef
	}
	return nil
}

// SanitizeFilename убирает небезопасные символы из имени файла.
// Оставляет буквы, цифры, дефис, подчёркивание и точку.
func SanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))

	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}

	s := strings.Trim(result.String(), ".")
	if s == "" {
		return "replay"
	}
	// Ограничение в символах: кириллица занимает больше одного байта.
	if r := []rune(s); len(r) > maxNameLen {
		s = string(r[len(r)-maxNameLen:])
	}
	return s
}
