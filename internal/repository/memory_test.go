package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bigkaa/replaystore/internal/domain/model"
)

func memReplay(n int, age time.Duration) *model.Replay {
	created := testNow.Add(-age)
	return &model.Replay{
		ID:            fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		Title:         fmt.Sprintf("Replay %d", n),
		CategoryID:    "cat-1",
		OwnerID:       "user-1",
		League:        model.LeagueGold,
		Players:       model.Players1v1,
		ExpansionPack: model.ExpansionLotV,
		Status:        model.StatusNew,
		ReplayFile:    fmt.Sprintf("obj-%d/game%d.SC2Replay", n, n),
		Version:       model.UnknownVersion,
		CreatedAt:     created,
		ExpiresAt:     created.Add(model.ExpiryPeriod),
	}
}

func TestMemory_CreateGet(t *testing.T) {
	repo := NewMemoryReplayRepository()
	ctx := context.Background()

	rp := memReplay(1, time.Hour)
	if err := repo.Create(ctx, rp); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if rp.UpdatedAt.IsZero() {
		t.Error("UpdatedAt не установлен")
	}

	if err := repo.Create(ctx, memReplay(1, time.Hour)); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный Create: ожидался ErrConflict, получено %v", err)
	}

	got, err := repo.GetByID(ctx, rp.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	got.Title = "изменено снаружи"

	again, _ := repo.GetByID(ctx, rp.ID)
	if again.Title != rp.Title {
		t.Error("GetByID должен возвращать копию записи")
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
}

func TestMemory_GetByIDsOrderAndMissing(t *testing.T) {
	repo := NewMemoryReplayRepository()
	ctx := context.Background()

	a, b, c := memReplay(1, 3*time.Hour), memReplay(2, 2*time.Hour), memReplay(3, time.Hour)
	for _, rp := range []*model.Replay{a, b, c} {
		_ = repo.Create(ctx, rp)
	}

	got, err := repo.GetByIDs(ctx, []string{a.ID, "missing", c.ID, b.ID, a.ID})
	if err != nil {
		t.Fatalf("GetByIDs() ошибка: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, ожидалось 3 (без отсутствующих и дубликатов)", len(got))
	}
	if got[0].ID != c.ID || got[1].ID != b.ID || got[2].ID != a.ID {
		t.Errorf("порядок %s,%s,%s, ожидался от новых к старым", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestMemory_Updates(t *testing.T) {
	repo := NewMemoryReplayRepository()
	ctx := context.Background()
	rp := memReplay(1, time.Hour)
	_ = repo.Create(ctx, rp)

	if err := repo.UpdateStatus(ctx, rp.ID, model.StatusSuggested); err != nil {
		t.Fatalf("UpdateStatus() ошибка: %v", err)
	}
	if err := repo.UpdateGameDetails(ctx, rp.ID, 754, "5.0.13"); err != nil {
		t.Fatalf("UpdateGameDetails() ошибка: %v", err)
	}
	if err := repo.UpdateAverageRating(ctx, rp.ID, 4.5); err != nil {
		t.Fatalf("UpdateAverageRating() ошибка: %v", err)
	}

	got, _ := repo.GetByID(ctx, rp.ID)
	if got.Status != model.StatusSuggested || got.GameLength != 754 || got.Version != "5.0.13" || got.AverageRating != 4.5 {
		t.Errorf("после обновлений: %+v", got)
	}

	if err := repo.MarkRejected(ctx, rp.ID); err != nil {
		t.Fatalf("MarkRejected() ошибка: %v", err)
	}
	got, _ = repo.GetByID(ctx, rp.ID)
	if got.Status != model.StatusRejected || got.HasArtifact() {
		t.Errorf("после MarkRejected: status=%s replay_file=%q", got.Status, got.ReplayFile)
	}

	if err := repo.UpdateStatus(ctx, "missing", model.StatusNew); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
}

func TestMemory_ListCleanupCandidates(t *testing.T) {
	repo := NewMemoryReplayRepository()
	ctx := context.Background()

	old := memReplay(1, 30*24*time.Hour)
	oldRejected := memReplay(2, 40*24*time.Hour)
	oldRejected.Status = model.StatusRejected
	oldRejected.ReplayFile = ""
	fresh := memReplay(3, 10*24*time.Hour)
	for _, rp := range []*model.Replay{old, oldRejected, fresh} {
		_ = repo.Create(ctx, rp)
	}

	got, err := repo.ListCleanupCandidates(ctx, testNow.Add(-model.CleanupAge))
	if err != nil {
		t.Fatalf("ListCleanupCandidates() ошибка: %v", err)
	}
	if len(got) != 1 || got[0].ID != old.ID {
		t.Errorf("ожидался только старый не отклонённый реплей, получено %d", len(got))
	}
}

func TestMemory_SearchMatchesFilterSpec(t *testing.T) {
	repo := NewMemoryReplayRepository()
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		_ = repo.Create(ctx, memReplay(i, time.Duration(i+1)*time.Minute))
	}

	spec := model.FilterSpec{Page: 2, Statuses: []model.Status{model.StatusNew}}
	page, total, err := repo.Search(ctx, spec, testNow)
	if err != nil {
		t.Fatalf("Search() ошибка: %v", err)
	}
	if total != 30 || len(page) != 5 {
		t.Errorf("total=%d len=%d, ожидалось 30 и 5", total, len(page))
	}
}

func TestMemory_CountByOwnerSince(t *testing.T) {
	repo := NewMemoryReplayRepository()
	ctx := context.Background()

	recent := memReplay(1, 2*24*time.Hour)
	old := memReplay(2, 8*24*time.Hour)
	other := memReplay(3, time.Hour)
	other.OwnerID = "user-2"
	for _, rp := range []*model.Replay{recent, old, other} {
		_ = repo.Create(ctx, rp)
	}

	n, err := repo.CountByOwnerSince(ctx, "user-1", testNow.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("CountByOwnerSince() ошибка: %v", err)
	}
	if n != 1 {
		t.Errorf("CountByOwnerSince = %d, ожидалось 1", n)
	}
}

func TestMemoryRating(t *testing.T) {
	r := NewMemoryRatingRepository()
	ctx := context.Background()

	if avg, _ := r.AverageRating(ctx, "x"); avg != 0 {
		t.Errorf("без оценок = %v, ожидался 0", avg)
	}
	r.Add("x", 3)
	r.Add("x", 4)
	if avg, _ := r.AverageRating(ctx, "x"); avg != 3.5 {
		t.Errorf("AverageRating = %v, ожидалось 3.5", avg)
	}
}
