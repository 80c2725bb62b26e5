package repository

import (
	"context"
	"fmt"
	"sync"
)

// RatingRepository — агрегатор оценок по таблице comments.
// Таблица комментариев принадлежит внешней подсистеме; здесь — только чтение.
type RatingRepository struct {
	db DBTX
}

// NewRatingRepository создаёт агрегатор оценок поверх PostgreSQL.
func NewRatingRepository(db DBTX) *RatingRepository {
	return &RatingRepository{db: db}
}

// AverageRating возвращает среднюю оценку реплея. Нет оценок — 0.
func (r *RatingRepository) AverageRating(ctx context.Context, replayID string) (float64, error) {
	if len(validUUIDs([]string{replayID})) == 0 {
		return 0, nil
	}

	var avg float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8 FROM comments WHERE replay_id = $1 AND rating IS NOT NULL`,
		replayID,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("ошибка вычисления средней оценки: %w", err)
	}
	return avg, nil
}

// MemoryRatingRepository — in-memory агрегатор оценок для драйвера memory и тестов.
type MemoryRatingRepository struct {
	mu      sync.RWMutex
	ratings map[string][]int
}

// NewMemoryRatingRepository создаёт пустой агрегатор.
func NewMemoryRatingRepository() *MemoryRatingRepository {
	return &MemoryRatingRepository{ratings: make(map[string][]int)}
}

// Add добавляет оценку к реплею.
func (m *MemoryRatingRepository) Add(replayID string, rating int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[replayID] = append(m.ratings[replayID], rating)
}

// AverageRating возвращает среднюю оценку реплея. Нет оценок — 0.
func (m *MemoryRatingRepository) AverageRating(_ context.Context, replayID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := m.ratings[replayID]
	if len(values) == 0 {
		return 0, nil
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values)), nil
}
