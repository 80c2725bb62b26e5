// search.go — сервис поиска и получения записей реплеев.
// Координирует repository, LRU cache и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/repository"
)

// Prometheus-метрики поиска.
var (
	searchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_search_total",
		Help: "Общее количество поисковых запросов.",
	})
	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_search_duration_seconds",
		Help:    "Длительность поисковых запросов.",
		Buckets: prometheus.DefBuckets,
	})
)

// SearchResult — страница результатов поиска.
type SearchResult struct {
	// Items — записи текущей страницы
	Items []*model.Replay
	// Total — общее количество совпадений
	Total int
	// Page — номер страницы (после нормализации)
	Page int
	// PageSize — размер страницы
	PageSize int
	// HasMore — есть ли следующая страница
	HasMore bool
}

// SearchService — сервис поиска реплеев и получения одной записи.
type SearchService struct {
	repo   ReplayRepository
	cache  *CacheService
	logger *slog.Logger
	now    func() time.Time
}

// NewSearchService создаёт сервис поиска.
func NewSearchService(repo ReplayRepository, cache *CacheService, logger *slog.Logger) *SearchService {
	return &SearchService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "search_service")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Search выполняет поиск относительно текущего времени.
func (s *SearchService) Search(ctx context.Context, spec model.FilterSpec) (*SearchResult, error) {
	return s.SearchAt(ctx, spec, s.now())
}

// SearchAt выполняет поиск относительно явно заданного момента now.
// Фильтр истёкших записей сравнивает expires_at именно с этим моментом.
func (s *SearchService) SearchAt(ctx context.Context, spec model.FilterSpec, now time.Time) (*SearchResult, error) {
	start := time.Now()
	searchTotal.Inc()

	if spec.Page < 1 {
		spec.Page = 1
	}

	items, total, err := s.repo.Search(ctx, spec, now)
	if err != nil {
		return nil, fmt.Errorf("поиск реплеев: %w", err)
	}

	duration := time.Since(start)
	searchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск выполнен",
		slog.Int("page", spec.Page),
		slog.Int("total", total),
		slog.Int("returned", len(items)),
		slog.Duration("duration", duration),
	)

	return &SearchResult{
		Items:    items,
		Total:    total,
		Page:     spec.Page,
		PageSize: model.PageSize,
		HasMore:  spec.Offset()+len(items) < total,
	}, nil
}

// GetReplay возвращает запись по id.
// Сначала проверяет LRU-кэш, при промахе обращается к хранилищу и кэширует результат.
func (s *SearchService) GetReplay(ctx context.Context, id string) (*model.Replay, error) {
	if s.cache != nil {
		if rp, ok := s.cache.Get(id); ok {
			s.logger.Debug("Кэш hit для реплея", slog.String("replay_id", id))
			return rp, nil
		}
	}

	rp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение реплея: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(id, rp)
	}
	return rp, nil
}
