package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bigkaa/replaystore/internal/domain/model"
)

// MemoryReplayRepository — in-memory хранилище записей.
// Потокобезопасно (sync.RWMutex). Возвращает копии записей,
// чтобы вызывающий код не мог изменить состояние хранилища напрямую.
type MemoryReplayRepository struct {
	mu      sync.RWMutex
	replays map[string]*model.Replay
	now     func() time.Time
}

// NewMemoryReplayRepository создаёт пустое in-memory хранилище.
func NewMemoryReplayRepository() *MemoryReplayRepository {
	return &MemoryReplayRepository{
		replays: make(map[string]*model.Replay),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Count возвращает количество записей в хранилище.
func (m *MemoryReplayRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.replays)
}

// Create добавляет запись. Повторный id — ErrConflict.
func (m *MemoryReplayRepository) Create(_ context.Context, rp *model.Replay) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.replays[rp.ID]; ok {
		return fmt.Errorf("%w: реплей с таким ID уже существует", ErrConflict)
	}
	rp.UpdatedAt = m.now()
	cp := *rp
	m.replays[rp.ID] = &cp
	return nil
}

// GetByID возвращает копию записи или ErrNotFound.
func (m *MemoryReplayRepository) GetByID(_ context.Context, id string) (*model.Replay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rp, ok := m.replays[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rp
	return &cp, nil
}

// GetByIDs загружает записи по набору id в порядке created_at DESC, id DESC.
func (m *MemoryReplayRepository) GetByIDs(_ context.Context, ids []string) ([]*model.Replay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	var result []*model.Replay
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rp, ok := m.replays[id]; ok {
			cp := *rp
			result = append(result, &cp)
		}
	}
	model.SortNewestFirst(result)
	return result, nil
}

// Search применяет FilterSpec к снимку хранилища.
func (m *MemoryReplayRepository) Search(_ context.Context, spec model.FilterSpec, now time.Time) ([]*model.Replay, int, error) {
	page, total := spec.Apply(m.snapshot(), now)
	return page, total, nil
}

// ListCleanupCandidates возвращает не отклонённые записи, созданные раньше createdBefore.
func (m *MemoryReplayRepository) ListCleanupCandidates(_ context.Context, createdBefore time.Time) ([]*model.Replay, error) {
	var result []*model.Replay
	for _, rp := range m.snapshot() {
		if rp.Status != model.StatusRejected && rp.CreatedAt.Before(createdBefore) {
			result = append(result, rp)
		}
	}
	model.SortNewestFirst(result)
	return result, nil
}

// UpdateStatus безусловно устанавливает статус.
func (m *MemoryReplayRepository) UpdateStatus(_ context.Context, id string, status model.Status) error {
	return m.update(id, func(rp *model.Replay) {
		rp.Status = status
	})
}

// MarkRejected переводит запись в rejected и отвязывает артефакт.
func (m *MemoryReplayRepository) MarkRejected(_ context.Context, id string) error {
	return m.update(id, func(rp *model.Replay) {
		rp.Status = model.StatusRejected
		rp.ReplayFile = ""
	})
}

// UpdateGameDetails сохраняет длительность игры и версию движка.
func (m *MemoryReplayRepository) UpdateGameDetails(_ context.Context, id string, gameLength int, version string) error {
	return m.update(id, func(rp *model.Replay) {
		rp.GameLength = gameLength
		rp.Version = version
	})
}

// UpdateAverageRating сохраняет пересчитанную среднюю оценку.
func (m *MemoryReplayRepository) UpdateAverageRating(_ context.Context, id string, rating float64) error {
	return m.update(id, func(rp *model.Replay) {
		rp.AverageRating = rating
	})
}

// CountByOwnerSince возвращает количество записей владельца, созданных не раньше since.
func (m *MemoryReplayRepository) CountByOwnerSince(_ context.Context, ownerID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, rp := range m.replays {
		if rp.OwnerID == ownerID && !rp.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryReplayRepository) update(id string, fn func(rp *model.Replay)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rp, ok := m.replays[id]
	if !ok {
		return ErrNotFound
	}
	fn(rp)
	rp.UpdatedAt = m.now()
	return nil
}

// snapshot возвращает копии всех записей.
func (m *MemoryReplayRepository) snapshot() []*model.Replay {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.Replay, 0, len(m.replays))
	for _, rp := range m.replays {
		cp := *rp
		result = append(result, &cp)
	}
	return result
}
