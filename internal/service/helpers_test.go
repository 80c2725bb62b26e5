package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/repository"
	"github.com/bigkaa/replaystore/internal/storage"
	"github.com/bigkaa/replaystore/internal/storage/filestore"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var adminActor = model.Actor{Subject: "moderator", Role: model.RoleAdmin}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock repository ---

// mockReplayRepo — in-memory хранилище с возможностью подменить отдельные методы.
type mockReplayRepo struct {
	*repository.MemoryReplayRepository

	getByIDsFn     func(ctx context.Context, ids []string) ([]*model.Replay, error)
	listCleanupFn  func(ctx context.Context, createdBefore time.Time) ([]*model.Replay, error)
	createFn       func(ctx context.Context, rp *model.Replay) error
	updateStatusFn func(ctx context.Context, id string, status model.Status) error
	markRejectedFn func(ctx context.Context, id string) error
}

func newMockReplayRepo() *mockReplayRepo {
	return &mockReplayRepo{MemoryReplayRepository: repository.NewMemoryReplayRepository()}
}

func (m *mockReplayRepo) GetByIDs(ctx context.Context, ids []string) ([]*model.Replay, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return m.MemoryReplayRepository.GetByIDs(ctx, ids)
}

func (m *mockReplayRepo) ListCleanupCandidates(ctx context.Context, createdBefore time.Time) ([]*model.Replay, error) {
	if m.listCleanupFn != nil {
		return m.listCleanupFn(ctx, createdBefore)
	}
	return m.MemoryReplayRepository.ListCleanupCandidates(ctx, createdBefore)
}

func (m *mockReplayRepo) Create(ctx context.Context, rp *model.Replay) error {
	if m.createFn != nil {
		return m.createFn(ctx, rp)
	}
	return m.MemoryReplayRepository.Create(ctx, rp)
}

func (m *mockReplayRepo) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return m.MemoryReplayRepository.UpdateStatus(ctx, id, status)
}

func (m *mockReplayRepo) MarkRejected(ctx context.Context, id string) error {
	if m.markRejectedFn != nil {
		return m.markRejectedFn(ctx, id)
	}
	return m.MemoryReplayRepository.MarkRejected(ctx, id)
}

// mustGet возвращает текущее состояние записи из хранилища.
func (m *mockReplayRepo) mustGet(t *testing.T, id string) *model.Replay {
	t.Helper()
	rp, err := m.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return rp
}

// --- Mock storage ---

// failingStore оборачивает хранилище и позволяет вернуть ошибку из отдельных операций.
type failingStore struct {
	storage.Store

	putErr    error
	readErr   error
	deleteErr error
	deleted   []string
}

func (f *failingStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	return f.Store.Put(ctx, name, r)
}

func (f *failingStore) Read(ctx context.Context, ref string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.Store.Read(ctx, ref)
}

func (f *failingStore) Delete(ctx context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, ref)
}

func newTestStore(t *testing.T) *failingStore {
	t.Helper()
	fs, err := filestore.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return &failingStore{Store: fs}
}

// --- Прочие заглушки ---

type stubExtractor struct {
	length  int
	version string
	err     error
}

func (s stubExtractor) Extract(_ []byte) (int, string, error) {
	return s.length, s.version, s.err
}

type stubAggregator struct {
	avg float64
	err error
}

func (s stubAggregator) AverageRating(_ context.Context, _ string) (float64, error) {
	return s.avg, s.err
}

// --- Тестовые данные ---

// seedReplay создаёт запись возрастом age. При withArtifact артефакт
// сохраняется в store с содержимым "replay-<n>". mods применяются до сохранения.
func seedReplay(t *testing.T, repo *mockReplayRepo, store storage.Store, n int, age time.Duration, withArtifact bool, mods ...func(rp *model.Replay)) *model.Replay {
	t.Helper()

	created := testNow.Add(-age)
	rp := &model.Replay{
		ID:            fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		Title:         fmt.Sprintf("Replay %d", n),
		CategoryID:    "cat-1",
		OwnerID:       "user-1",
		League:        model.LeagueGold,
		Players:       model.Players1v1,
		ExpansionPack: model.ExpansionLotV,
		Status:        model.StatusNew,
		Version:       model.UnknownVersion,
		CreatedAt:     created,
		ExpiresAt:     created.Add(model.ExpiryPeriod),
	}

	if withArtifact {
		ref, err := store.Put(context.Background(), fmt.Sprintf("game%d.SC2Replay", n),
			bytes.NewReader([]byte(fmt.Sprintf("replay-%d", n))))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		rp.ReplayFile = ref
	}
	for _, mod := range mods {
		mod(rp)
	}

	if err := repo.MemoryReplayRepository.Create(context.Background(), rp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rp
}

func newTestLifecycle(repo ReplayRepository, store storage.Store, cache *CacheService) *LifecycleController {
	return NewLifecycleController(repo, store, RoleAuthorizer{}, cache, testLogger())
}
