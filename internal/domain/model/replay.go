// replay.go — запись реплея (ReplayRecord) и её инварианты.
package model

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Временные параметры жизненного цикла.
const (
	// ExpiryPeriod — срок, после которого реплей скрывается из списков по умолчанию
	ExpiryPeriod = 14 * 24 * time.Hour
	// CleanupAge — возраст, после которого не отклонённый реплей отклоняется sweep'ом
	CleanupAge = 28 * 24 * time.Hour
	// UnknownVersion — версия игры, если метаданные не удалось извлечь
	UnknownVersion = "unknown"
)

// Replay — запись реплея в каталоге.
type Replay struct {
	// ID — UUID реплея
	ID string
	// Title — название (обязательное)
	Title string
	// Description — описание (опционально)
	Description string
	// CategoryID — ссылка на категорию (внешняя сущность)
	CategoryID string
	// OwnerID — ссылка на загрузившего пользователя (внешняя сущность)
	OwnerID string

	// League — лига игроков
	League League
	// Players — формат матча
	Players PlayerFormat
	// ExpansionPack — дополнение игры
	ExpansionPack ExpansionPack

	// Расы, присутствующие в реплее
	Protoss bool
	Terran  bool
	Zerg    bool

	// Status — статус жизненного цикла
	Status Status

	// ReplayFile — ссылка на артефакт в файловом хранилище ("" = отсутствует)
	ReplayFile string
	// GameLength — длительность игры в секундах (0 = неизвестна)
	GameLength int
	// Version — версия движка игры ("unknown" = неизвестна)
	Version string

	// AverageRating — средняя оценка по комментариям (0 = оценок ещё нет)
	AverageRating float64

	// CreatedAt — время создания записи
	CreatedAt time.Time
	// ExpiresAt — крайний срок показа в списках (CreatedAt + 14 дней)
	ExpiresAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// HasArtifact сообщает, прикреплён ли к реплею загруженный файл.
func (r *Replay) HasArtifact() bool {
	return r.ReplayFile != ""
}

// Filename возвращает имя файла артефакта (без каталога хранилища).
func (r *Replay) Filename() string {
	if r.ReplayFile == "" {
		return ""
	}
	return path.Base(r.ReplayFile)
}

// IsExpired — чистый предикат: срок показа истёк к моменту now.
func (r *Replay) IsExpired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// FormattedGameLength возвращает длительность игры в формате ЧЧ:ММ:СС.
func (r *Replay) FormattedGameLength() string {
	d := time.Duration(r.GameLength) * time.Second
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Validate проверяет все инварианты записи.
// Возвращает первый найденный *ValidationError или nil.
func (r *Replay) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return NewValidationError("title", "не может быть пустым")
	}
	if r.CategoryID == "" {
		return NewValidationError("category_id", "обязательное поле")
	}
	if r.OwnerID == "" {
		return NewValidationError("user_id", "обязательное поле")
	}
	if !r.League.Valid() {
		return NewValidationError("league", "недопустимое значение %q", r.League)
	}
	if !r.Players.Valid() {
		return NewValidationError("players", "недопустимое значение %q", r.Players)
	}
	if !r.ExpansionPack.Valid() {
		return NewValidationError("expansion_pack", "недопустимое значение %q", r.ExpansionPack)
	}
	if !r.Status.Valid() {
		return NewValidationError("status", "недопустимое значение %q", r.Status)
	}
	if r.ExpiresAt.IsZero() {
		return NewValidationError("expires_at", "обязательное поле")
	}
	if r.Status.RequiresArtifact() && !r.HasArtifact() {
		return NewValidationError("replay_file", "обязателен для статуса %s", r.Status)
	}
	if r.Players == Players1v1 && r.Protoss && r.Terran && r.Zerg {
		return NewValidationError("players", "в игре 1v1 не может быть всех трёх рас")
	}
	return nil
}
