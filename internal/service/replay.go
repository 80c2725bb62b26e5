// replay.go — загрузка новых реплеев и обновление игровых данных.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/repository"
	"github.com/bigkaa/replaystore/internal/storage"
)

// uploadWindow — окно, в котором действует недельный лимит загрузок.
const uploadWindow = 7 * 24 * time.Hour

var uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rc_uploads_total",
	Help: "Количество попыток загрузки реплеев.",
}, []string{"result"})

// CreateInput — данные для загрузки нового реплея.
type CreateInput struct {
	Title         string
	Description   string
	CategoryID    string
	OwnerID       string
	League        model.League
	Players       model.PlayerFormat
	ExpansionPack model.ExpansionPack
	Protoss       bool
	Terran        bool
	Zerg          bool
	// Filename — исходное имя загруженного файла
	Filename string
	// Data — содержимое файла реплея
	Data []byte
}

// ReplayService — создание реплеев.
type ReplayService struct {
	repo        ReplayRepository
	store       storage.Store
	extractor   MetadataExtractor
	cache       *CacheService
	weeklyLimit int
	logger      *slog.Logger
	now         func() time.Time
}

// NewReplayService создаёт сервис реплеев.
// extractor и cache могут быть nil. weeklyLimit = 0 отключает лимит загрузок.
func NewReplayService(
	repo ReplayRepository,
	store storage.Store,
	extractor MetadataExtractor,
	cache *CacheService,
	weeklyLimit int,
	logger *slog.Logger,
) *ReplayService {
	return &ReplayService{
		repo:        repo,
		store:       store,
		extractor:   extractor,
		cache:       cache,
		weeklyLimit: weeklyLimit,
		logger:      logger.With(slog.String("component", "replay_service")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create сохраняет артефакт и создаёт запись со статусом new.
//
// Порядок:
//  1. Валидация полей (до обращения к хранилищу)
//  2. Проверка недельного лимита владельца
//  3. Сохранение артефакта
//  4. Извлечение длительности и версии (ошибка → значения по умолчанию)
//  5. Создание записи; при ошибке артефакт удаляется
func (s *ReplayService) Create(ctx context.Context, in CreateInput) (*model.Replay, error) {
	now := s.now()

	rp := &model.Replay{
		ID:            uuid.New().String(),
		Title:         strings.TrimSpace(in.Title),
		Description:   in.Description,
		CategoryID:    in.CategoryID,
		OwnerID:       in.OwnerID,
		League:        in.League,
		Players:       in.Players,
		ExpansionPack: in.ExpansionPack,
		Protoss:       in.Protoss,
		Terran:        in.Terran,
		Zerg:          in.Zerg,
		Status:        model.StatusNew,
		Version:       model.UnknownVersion,
		CreatedAt:     now,
		ExpiresAt:     now.Add(model.ExpiryPeriod),
	}

	if len(in.Data) == 0 {
		uploadsTotal.WithLabelValues("invalid").Inc()
		return nil, model.NewValidationError("replay_file", "файл реплея обязателен")
	}
	// Имя файла подставляется временно: настоящая ссылка появится после Put.
	rp.ReplayFile = storage.SanitizeFilename(in.Filename)
	if err := rp.Validate(); err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if s.weeklyLimit > 0 {
		n, err := s.repo.CountByOwnerSince(ctx, rp.OwnerID, now.Add(-uploadWindow))
		if err != nil {
			return nil, fmt.Errorf("подсчёт загрузок владельца: %w", err)
		}
		if n >= s.weeklyLimit {
			uploadsTotal.WithLabelValues("limited").Inc()
			return nil, ErrUploadLimitReached
		}
	}

	ref, err := s.store.Put(ctx, in.Filename, bytes.NewReader(in.Data))
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("сохранение артефакта: %w", err)
	}
	rp.ReplayFile = ref
	rp.GameLength, rp.Version = s.extract(rp.ID, in.Data)

	if err := s.repo.Create(ctx, rp); err != nil {
		if delErr := s.store.Delete(ctx, ref); delErr != nil {
			s.logger.Error("Не удалось удалить артефакт после ошибки создания записи",
				slog.String("replay_id", rp.ID),
				slog.String("ref", ref),
				slog.String("error", delErr.Error()),
			)
		}
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("создание записи реплея: %w", err)
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("Реплей загружен",
		slog.String("replay_id", rp.ID),
		slog.String("owner_id", rp.OwnerID),
		slog.String("ref", ref),
		slog.Int("size", len(in.Data)),
	)
	return rp, nil
}

// RefreshGameDetails заново извлекает длительность и версию из артефакта.
func (s *ReplayService) RefreshGameDetails(ctx context.Context, id string) (*model.Replay, error) {
	rp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("загрузка реплея %s: %w", id, err)
	}
	if !rp.HasArtifact() {
		return rp, nil
	}

	data, err := s.store.Read(ctx, rp.ReplayFile)
	if err != nil {
		return nil, fmt.Errorf("чтение артефакта реплея %s: %w", id, err)
	}

	length, version := s.extract(id, data)
	if err := s.repo.UpdateGameDetails(ctx, id, length, version); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление игровых данных %s: %w", id, err)
	}
	s.cache.Delete(id)

	rp.GameLength, rp.Version = length, version
	return rp, nil
}

// extract вызывает extractor; любая ошибка заменяется значениями по умолчанию.
func (s *ReplayService) extract(id string, data []byte) (int, string) {
	if s.extractor == nil {
		return 0, model.UnknownVersion
	}
	length, version, err := s.extractor.Extract(data)
	if err != nil {
		s.logger.Debug("Не удалось извлечь метаданные реплея",
			slog.String("replay_id", id),
			slog.String("error", err.Error()),
		)
		return 0, model.UnknownVersion
	}
	if version == "" {
		version = model.UnknownVersion
	}
	return length, version
}
