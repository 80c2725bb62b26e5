package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/storage"
)

// TestReject_Twice проверяет идемпотентность: повторное отклонение
// оставляет то же терминальное состояние и не возвращает ошибку.
func TestReject_Twice(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	lc := newTestLifecycle(repo, store, nil)
	ctx := context.Background()

	rp := seedReplay(t, repo, store, 1, time.Hour, true)
	ref := rp.ReplayFile

	if err := lc.Reject(ctx, rp); err != nil {
		t.Fatalf("Reject() ошибка: %v", err)
	}
	if rp.Status != model.StatusRejected || rp.HasArtifact() {
		t.Errorf("после Reject: status=%s replay_file=%q", rp.Status, rp.ReplayFile)
	}
	if _, err := store.Read(ctx, ref); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("артефакт должен быть удалён, Read() = %v", err)
	}

	if err := lc.Reject(ctx, rp); err != nil {
		t.Fatalf("повторный Reject() ошибка: %v", err)
	}

	got := repo.mustGet(t, rp.ID)
	if got.Status != model.StatusRejected || got.HasArtifact() {
		t.Errorf("в хранилище: status=%s replay_file=%q", got.Status, got.ReplayFile)
	}
}

// TestReject_MissingArtifactIgnored проверяет, что отсутствие артефакта
// в хранилище не мешает отклонению.
func TestReject_MissingArtifactIgnored(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	lc := newTestLifecycle(repo, store, nil)
	ctx := context.Background()

	rp := seedReplay(t, repo, store, 1, time.Hour, true)
	if err := store.Store.Delete(ctx, rp.ReplayFile); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := lc.Reject(ctx, rp); err != nil {
		t.Fatalf("Reject() ошибка: %v", err)
	}
	if got := repo.mustGet(t, rp.ID); got.Status != model.StatusRejected {
		t.Errorf("Status = %s, ожидался rejected", got.Status)
	}
}

// TestReject_DeleteFailureStillPersists — ошибка удаления артефакта
// логируется, но статус всё равно сохраняется.
func TestReject_DeleteFailureStillPersists(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	lc := newTestLifecycle(repo, store, nil)

	rp := seedReplay(t, repo, store, 1, time.Hour, true)
	store.deleteErr = errors.New("диск недоступен")

	if err := lc.Reject(context.Background(), rp); err != nil {
		t.Fatalf("Reject() ошибка: %v", err)
	}
	got := repo.mustGet(t, rp.ID)
	if got.Status != model.StatusRejected || got.HasArtifact() {
		t.Errorf("status=%s replay_file=%q, ожидался rejected без артефакта", got.Status, got.ReplayFile)
	}
	if len(store.deleted) != 1 {
		t.Errorf("Delete вызван %d раз, ожидался 1", len(store.deleted))
	}
}

func TestReject_PersistFailure(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	lc := newTestLifecycle(repo, store, nil)

	rp := seedReplay(t, repo, store, 1, time.Hour, true)
	repo.markRejectedFn = func(_ context.Context, _ string) error {
		return errors.New("connection reset")
	}

	if err := lc.Reject(context.Background(), rp); err == nil {
		t.Fatal("ожидалась ошибка сохранения")
	}
	if rp.Status != model.StatusNew {
		t.Errorf("Status = %s, запись не должна меняться при ошибке", rp.Status)
	}
}

func TestReject_InvalidatesCache(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	cache := NewCacheService(10, time.Minute)
	lc := newTestLifecycle(repo, store, cache)

	rp := seedReplay(t, repo, store, 1, time.Hour, true)
	cache.Set(rp.ID, rp)

	if err := lc.Reject(context.Background(), rp); err != nil {
		t.Fatalf("Reject() ошибка: %v", err)
	}
	if _, ok := cache.Get(rp.ID); ok {
		t.Error("запись должна быть удалена из кэша")
	}
}

func TestRejectByID_NotFound(t *testing.T) {
	repo := newMockReplayRepo()
	lc := newTestLifecycle(repo, newTestStore(t), nil)

	if _, err := lc.RejectByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
}

// TestMarkDownloaded_NonPrivileged — для обычного пользователя no-op.
func TestMarkDownloaded_NonPrivileged(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	lc := newTestLifecycle(repo, store, nil)

	rp := seedReplay(t, repo, store, 1, time.Hour, true)

	for _, actor := range []model.Actor{model.Anonymous, {Subject: "u", Role: model.RoleReadonly}} {
		changed, err := lc.MarkDownloaded(context.Background(), rp, actor)
		if err != nil {
			t.Fatalf("MarkDownloaded() ошибка: %v", err)
		}
		if changed {
			t.Errorf("role=%q: changed = true, ожидался false", actor.Role)
		}
	}
	if got := repo.mustGet(t, rp.ID); got.Status != model.StatusNew {
		t.Errorf("Status = %s, ожидался new", got.Status)
	}
}

// TestMarkDownloaded_FromAnyStatus — привилегированный пользователь
// переводит запись в downloaded из любого статуса.
func TestMarkDownloaded_FromAnyStatus(t *testing.T) {
	for i, status := range model.Statuses {
		t.Run(string(status), func(t *testing.T) {
			repo := newMockReplayRepo()
			store := newTestStore(t)
			lc := newTestLifecycle(repo, store, nil)

			rp := seedReplay(t, repo, store, i, time.Hour, true)
			if err := repo.UpdateStatus(context.Background(), rp.ID, status); err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
			rp.Status = status

			changed, err := lc.MarkDownloaded(context.Background(), rp, adminActor)
			if err != nil {
				t.Fatalf("MarkDownloaded() ошибка: %v", err)
			}
			if !changed {
				t.Error("changed = false, ожидался true")
			}
			if got := repo.mustGet(t, rp.ID); got.Status != model.StatusDownloaded {
				t.Errorf("Status = %s, ожидался downloaded", got.Status)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	lc := newTestLifecycle(repo, store, nil)

	fresh := seedReplay(t, repo, store, 1, 24*time.Hour, false)
	old := seedReplay(t, repo, store, 2, 15*24*time.Hour, false)

	if lc.Expired(fresh, testNow) {
		t.Error("реплей возрастом 1 день не должен считаться истёкшим")
	}
	if !lc.Expired(old, testNow) {
		t.Error("реплей возрастом 15 дней должен считаться истёкшим")
	}
}
