package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/repository"
)

// TestSearchService_SearchAt — 30 gold + 5 silver, фильтр new+gold, первая страница.
func TestSearchService_SearchAt(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	for i := 0; i < 30; i++ {
		seedReplay(t, repo, store, i, time.Duration(i+1)*time.Minute, false)
	}
	for i := 30; i < 35; i++ {
		seedReplay(t, repo, store, i, time.Duration(i)*time.Second, false, func(rp *model.Replay) {
			rp.League = model.LeagueSilver
		})
	}

	svc := NewSearchService(repo, nil, testLogger())
	spec := model.FilterSpec{Page: 1, Statuses: []model.Status{model.StatusNew}, League: model.LeagueGold}

	result, err := svc.SearchAt(context.Background(), spec, testNow)
	if err != nil {
		t.Fatalf("SearchAt ошибка: %v", err)
	}
	if result.Total != 30 {
		t.Errorf("Total = %d, ожидался 30", result.Total)
	}
	if len(result.Items) != model.PageSize {
		t.Fatalf("Items count = %d, ожидался %d", len(result.Items), model.PageSize)
	}
	if !result.HasMore {
		t.Error("HasMore = false, ожидался true")
	}
	for i, rp := range result.Items {
		if rp.League != model.LeagueGold || rp.Status != model.StatusNew {
			t.Errorf("Items[%d]: league=%s status=%s", i, rp.League, rp.Status)
		}
		if i > 0 && rp.CreatedAt.After(result.Items[i-1].CreatedAt) {
			t.Errorf("Items[%d]: нарушен порядок created_at DESC", i)
		}
	}
}

func TestSearchService_NormalizesPage(t *testing.T) {
	var gotSpec model.FilterSpec
	repo := newMockReplayRepo()
	svc := NewSearchService(&searchSpy{mockReplayRepo: repo, spec: &gotSpec}, nil, testLogger())

	result, err := svc.SearchAt(context.Background(), model.FilterSpec{Page: -2}, testNow)
	if err != nil {
		t.Fatalf("SearchAt ошибка: %v", err)
	}
	if result.Page != 1 || gotSpec.Page != 1 {
		t.Errorf("Page = %d (repo: %d), ожидалась 1", result.Page, gotSpec.Page)
	}
	if result.HasMore {
		t.Error("HasMore = true для пустого результата")
	}
}

// searchSpy запоминает FilterSpec, переданный в хранилище.
type searchSpy struct {
	*mockReplayRepo
	spec *model.FilterSpec
}

func (s *searchSpy) Search(ctx context.Context, spec model.FilterSpec, now time.Time) ([]*model.Replay, int, error) {
	*s.spec = spec
	return s.mockReplayRepo.Search(ctx, spec, now)
}

// TestSearchService_GetReplay_CacheHit — повторный запрос обслуживается из кэша.
func TestSearchService_GetReplay_CacheHit(t *testing.T) {
	repo := newMockReplayRepo()
	store := newTestStore(t)
	rp := seedReplay(t, repo, store, 1, time.Hour, true)

	counting := &countingRepo{mockReplayRepo: repo}
	cache := NewCacheService(100, 5*time.Minute)
	svc := NewSearchService(counting, cache, testLogger())

	for i := 0; i < 3; i++ {
		got, err := svc.GetReplay(context.Background(), rp.ID)
		if err != nil {
			t.Fatalf("GetReplay ошибка: %v", err)
		}
		if got.ID != rp.ID {
			t.Errorf("ID = %s, ожидался %s", got.ID, rp.ID)
		}
	}
	if counting.getByID != 1 {
		t.Errorf("GetByID вызван %d раз, ожидался 1", counting.getByID)
	}
}

type countingRepo struct {
	*mockReplayRepo
	getByID int
}

func (c *countingRepo) GetByID(ctx context.Context, id string) (*model.Replay, error) {
	c.getByID++
	return c.mockReplayRepo.GetByID(ctx, id)
}

func TestSearchService_GetReplay_NotFound(t *testing.T) {
	svc := NewSearchService(newMockReplayRepo(), NewCacheService(10, time.Minute), testLogger())

	_, err := svc.GetReplay(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено %v", err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		t.Error("ошибка хранилища не должна протекать в сервисный слой")
	}
}
