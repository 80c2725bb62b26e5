package service

import (
	"context"
	"time"

	"github.com/bigkaa/replaystore/internal/domain/model"
)

// ReplayRepository — хранилище записей реплеев.
// Реализации: repository.ReplayRepository (PostgreSQL) и
// repository.MemoryReplayRepository.
type ReplayRepository interface {
	Create(ctx context.Context, rp *model.Replay) error
	GetByID(ctx context.Context, id string) (*model.Replay, error)
	// GetByIDs возвращает записи из набора id в порядке created_at DESC, id DESC.
	// Отсутствующие id пропускаются без ошибки.
	GetByIDs(ctx context.Context, ids []string) ([]*model.Replay, error)
	Search(ctx context.Context, spec model.FilterSpec, now time.Time) ([]*model.Replay, int, error)
	ListCleanupCandidates(ctx context.Context, createdBefore time.Time) ([]*model.Replay, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	MarkRejected(ctx context.Context, id string) error
	UpdateGameDetails(ctx context.Context, id string, gameLength int, version string) error
	UpdateAverageRating(ctx context.Context, id string, rating float64) error
	CountByOwnerSince(ctx context.Context, ownerID string, since time.Time) (int, error)
}

// MetadataExtractor извлекает длительность игры (в секундах) и версию
// клиента из содержимого файла реплея.
type MetadataExtractor interface {
	Extract(data []byte) (lengthSeconds int, version string, err error)
}

// RatingAggregator вычисляет среднюю оценку реплея (0 — оценок нет).
type RatingAggregator interface {
	AverageRating(ctx context.Context, replayID string) (float64, error)
}

// Authorizer решает, может ли пользователь выполнять привилегированные действия.
type Authorizer interface {
	IsPrivileged(actor model.Actor) bool
}

// RoleAuthorizer — привилегированным считается пользователь с ролью admin.
type RoleAuthorizer struct{}

// IsPrivileged реализует Authorizer.
func (RoleAuthorizer) IsPrivileged(actor model.Actor) bool {
	return actor.Role == model.RoleAdmin
}
