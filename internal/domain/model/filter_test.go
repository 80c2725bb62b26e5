package model

import (
	"fmt"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// newTestReplay создаёт запись, созданную за age до testNow.
func newTestReplay(n int, age time.Duration) *Replay {
	created := testNow.Add(-age)
	return &Replay{
		ID:            fmt.Sprintf("00000000-0000-4000-8000-%012d", n),
		Title:         fmt.Sprintf("Replay %d", n),
		CategoryID:    "cat-1",
		OwnerID:       "user-1",
		League:        LeagueGold,
		Players:       Players1v1,
		ExpansionPack: ExpansionLotV,
		Status:        StatusNew,
		ReplayFile:    fmt.Sprintf("obj-%d/game%d.SC2Replay", n, n),
		CreatedAt:     created,
		ExpiresAt:     created.Add(ExpiryPeriod),
	}
}

func TestDefaultFilterSpec(t *testing.T) {
	f := DefaultFilterSpec()
	if f.Page != 1 {
		t.Errorf("Page = %d, ожидалась 1", f.Page)
	}
	if len(f.Statuses) != 2 || f.Statuses[0] != StatusNew || f.Statuses[1] != StatusSuggested {
		t.Errorf("Statuses = %v, ожидались [new suggested]", f.Statuses)
	}
	if f.IncludeExpired {
		t.Error("IncludeExpired = true по умолчанию")
	}
}

func TestOffset(t *testing.T) {
	tests := []struct {
		page int
		want int
	}{
		{-3, 0}, {0, 0}, {1, 0}, {2, 25}, {4, 75},
	}
	for _, tt := range tests {
		if got := (FilterSpec{Page: tt.page}).Offset(); got != tt.want {
			t.Errorf("Offset(page=%d) = %d, ожидалось %d", tt.page, got, tt.want)
		}
	}
}

// TestApply_GoldNewFirstPage — 30 gold + 5 silver, фильтр new+gold,
// первая страница: 25 записей, все gold и new, от новых к старым.
func TestApply_GoldNewFirstPage(t *testing.T) {
	var records []*Replay
	for i := 0; i < 30; i++ {
		records = append(records, newTestReplay(i, time.Duration(i)*time.Hour))
	}
	for i := 30; i < 35; i++ {
		r := newTestReplay(i, time.Duration(i-30)*time.Minute)
		r.League = LeagueSilver
		records = append(records, r)
	}

	f := FilterSpec{Page: 1, Statuses: []Status{StatusNew}, League: LeagueGold}
	page, total := f.Apply(records, testNow)

	if total != 30 {
		t.Errorf("total = %d, ожидалось 30", total)
	}
	if len(page) != PageSize {
		t.Fatalf("len(page) = %d, ожидалось %d", len(page), PageSize)
	}
	for i, r := range page {
		if r.League != LeagueGold || r.Status != StatusNew {
			t.Errorf("page[%d]: league=%s status=%s", i, r.League, r.Status)
		}
		if i > 0 && r.CreatedAt.After(page[i-1].CreatedAt) {
			t.Errorf("page[%d] новее page[%d]: нарушен порядок created_at DESC", i, i-1)
		}
	}
	if page[0].ID != newTestReplay(0, 0).ID {
		t.Errorf("первой должна быть самая новая запись, получено %s", page[0].ID)
	}

	f.Page = 2
	page2, _ := f.Apply(records, testNow)
	if len(page2) != 5 {
		t.Errorf("вторая страница: %d записей, ожидалось 5", len(page2))
	}
}

func TestApply_ExcludesExpired(t *testing.T) {
	fresh := newTestReplay(1, 24*time.Hour)
	old := newTestReplay(2, 20*24*time.Hour)
	boundary := newTestReplay(3, ExpiryPeriod) // expires_at == now

	f := FilterSpec{}
	page, _ := f.Apply([]*Replay{fresh, old, boundary}, testNow)
	if len(page) != 1 || page[0].ID != fresh.ID {
		t.Fatalf("ожидалась только свежая запись, получено %d", len(page))
	}
	for _, r := range page {
		if !r.ExpiresAt.After(testNow) {
			t.Errorf("%s: expires_at не позже now", r.ID)
		}
	}

	f.IncludeExpired = true
	page, _ = f.Apply([]*Replay{fresh, old, boundary}, testNow)
	if len(page) != 3 {
		t.Errorf("с IncludeExpired ожидалось 3 записи, получено %d", len(page))
	}
}

func TestApply_Rating(t *testing.T) {
	a := newTestReplay(1, time.Hour)
	b := newTestReplay(2, 2*time.Hour)
	c := newTestReplay(3, 3*time.Hour)
	c.AverageRating = 3.5
	records := []*Replay{a, b, c}

	page, _ := FilterSpec{Rating: "0"}.Apply(records, testNow)
	if len(page) != 2 || page[0].ID != a.ID || page[1].ID != b.ID {
		t.Errorf("rating=0: ожидались записи без оценок, получено %d", len(page))
	}

	page, _ = FilterSpec{Rating: "3"}.Apply(records, testNow)
	if len(page) != 1 || page[0].ID != c.ID {
		t.Errorf("rating=3: ожидалась запись с 3.5, получено %d", len(page))
	}

	page, _ = FilterSpec{Rating: "0.0"}.Apply(records, testNow)
	if len(page) != 2 {
		t.Errorf("rating=0.0 должен трактоваться как ноль, получено %d", len(page))
	}

	page, _ = FilterSpec{Rating: "high"}.Apply(records, testNow)
	if len(page) != 3 {
		t.Errorf("нечисловой рейтинг должен игнорироваться, получено %d", len(page))
	}

	for _, raw := range []string{"NaN", "nan", "Inf", "-Inf", "+infinity"} {
		if _, _, ok := (FilterSpec{Rating: raw}).RatingFilter(); ok {
			t.Errorf("RatingFilter(%q): ok = true, ожидалось false", raw)
		}
		page, _ = FilterSpec{Rating: raw}.Apply(records, testNow)
		if len(page) != 3 {
			t.Errorf("rating=%s должен игнорироваться, получено %d", raw, len(page))
		}
	}
}

func TestApply_QueryAcrossFields(t *testing.T) {
	byTitle := newTestReplay(1, time.Hour)
	byTitle.Title = "Epic BaneLing bust"
	byDesc := newTestReplay(2, time.Hour)
	byDesc.Description = "baneling flood on Goldenaura"
	byFile := newTestReplay(3, time.Hour)
	byFile.ReplayFile = "obj/banelings-final.SC2Replay"
	none := newTestReplay(4, time.Hour)

	page, total := FilterSpec{Query: "BANELING"}.Apply([]*Replay{byTitle, byDesc, byFile, none}, testNow)
	if total != 3 {
		t.Fatalf("total = %d, ожидалось 3", total)
	}
	for _, r := range page {
		if r.ID == none.ID {
			t.Error("запись без совпадения попала в результат")
		}
	}

	// Каталог объекта хранилища не участвует в поиске
	page, _ = FilterSpec{Query: "obj-4"}.Apply([]*Replay{none}, testNow)
	if len(page) != 0 {
		t.Error("поиск не должен учитывать каталог артефакта")
	}
}

func TestApply_EqualityFilters(t *testing.T) {
	a := newTestReplay(1, time.Hour)
	b := newTestReplay(2, time.Hour)
	b.Players = Players2v2
	b.CategoryID = "cat-2"
	c := newTestReplay(3, time.Hour)
	c.Status = StatusBroadcasted

	records := []*Replay{a, b, c}

	if page, _ := (FilterSpec{Players: Players2v2}).Apply(records, testNow); len(page) != 1 || page[0].ID != b.ID {
		t.Errorf("фильтр players: получено %d", len(page))
	}
	if page, _ := (FilterSpec{CategoryID: "cat-1"}).Apply(records, testNow); len(page) != 2 {
		t.Errorf("фильтр category: получено %d, ожидалось 2", len(page))
	}
	if page, _ := (FilterSpec{ExpansionPack: ExpansionLotV}).Apply(records, testNow); len(page) != 3 {
		t.Errorf("фильтр expansion: получено %d, ожидалось 3", len(page))
	}
	if page, _ := DefaultFilterSpec().Apply(records, testNow); len(page) != 2 {
		t.Errorf("статусы по умолчанию: получено %d, ожидалось 2", len(page))
	}
}

func TestApply_Deterministic(t *testing.T) {
	var records []*Replay
	for i := 0; i < 10; i++ {
		// одинаковое время создания — порядок задаётся id
		records = append(records, newTestReplay(i, time.Hour))
	}

	f := FilterSpec{}
	first, _ := f.Apply(records, testNow)
	second, _ := f.Apply(records, testNow)

	if len(first) != len(second) {
		t.Fatalf("размеры различаются: %d и %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("позиция %d: %s != %s", i, first[i].ID, second[i].ID)
		}
	}
	if first[0].ID != newTestReplay(9, 0).ID {
		t.Errorf("при равном created_at первым должен идти больший id, получено %s", first[0].ID)
	}

	// Исходный срез не переупорядочен
	for i, r := range records {
		if r.ID != newTestReplay(i, 0).ID {
			t.Fatal("Apply изменил порядок исходного среза")
		}
	}
}

func TestApply_PageBeyondEnd(t *testing.T) {
	page, total := FilterSpec{Page: 3}.Apply([]*Replay{newTestReplay(1, time.Hour)}, testNow)
	if len(page) != 0 || total != 1 {
		t.Errorf("len=%d total=%d, ожидалось 0 и 1", len(page), total)
	}
}
