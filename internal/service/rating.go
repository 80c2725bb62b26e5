package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/replaystore/internal/repository"
)

// RatingService пересчитывает среднюю оценку реплея.
type RatingService struct {
	repo       ReplayRepository
	aggregator RatingAggregator
	cache      *CacheService
	logger     *slog.Logger
}

// NewRatingService создаёт сервис рейтинга. cache может быть nil.
func NewRatingService(repo ReplayRepository, aggregator RatingAggregator, cache *CacheService, logger *slog.Logger) *RatingService {
	return &RatingService{
		repo:       repo,
		aggregator: aggregator,
		cache:      cache,
		logger:     logger.With(slog.String("component", "rating")),
	}
}

// Refresh пересчитывает average_rating реплея id. Статус не меняется.
func (s *RatingService) Refresh(ctx context.Context, id string) (float64, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("загрузка реплея %s: %w", id, err)
	}

	avg, err := s.aggregator.AverageRating(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("вычисление рейтинга %s: %w", id, err)
	}

	if err := s.repo.UpdateAverageRating(ctx, id, avg); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("сохранение рейтинга %s: %w", id, err)
	}
	s.cache.Delete(id)

	s.logger.Debug("Рейтинг пересчитан",
		slog.String("replay_id", id),
		slog.Float64("average_rating", avg),
	)
	return avg, nil
}
