// filter.go — FilterSpec и чистый in-memory вычислитель запроса.
//
// Порядок применения фильтров:
//  1. Текстовый поиск (title OR description OR имя файла, без учёта регистра)
//  2. Статусы (членство в наборе)
//  3. Точные фильтры: лига, формат, категория, дополнение
//  4. Рейтинг: "0" — точное совпадение с нулём, иначе — нижняя граница
//  5. Срок показа: expires_at строго позже now (если не include_expired)
//  6. Сортировка created_at DESC, id DESC и окно страницы по 25 записей
//
// SQL-версия того же запроса — repository.buildSearchWhere.
package model

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PageSize — фиксированный размер страницы списка реплеев.
const PageSize = 25

// FilterSpec — параметры поиска и листинга реплеев.
// Пустое значение поля означает «фильтр не применяется».
type FilterSpec struct {
	// Page — номер страницы (с 1)
	Page int
	// Statuses — допустимые статусы (пустой срез = любые)
	Statuses []Status
	// Query — подстрока для поиска по title/description/имени файла
	Query string
	// League — точное совпадение лиги
	League League
	// Players — точное совпадение формата
	Players PlayerFormat
	// CategoryID — точное совпадение категории
	CategoryID string
	// ExpansionPack — точное совпадение дополнения
	ExpansionPack ExpansionPack
	// Rating — "0" = без оценок, иначе минимальная средняя оценка
	Rating string
	// IncludeExpired — включать реплеи с истёкшим сроком показа
	IncludeExpired bool
}

// DefaultFilterSpec возвращает параметры листинга по умолчанию:
// первая страница, статусы new и suggested, без истёкших.
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		Page:     1,
		Statuses: []Status{StatusNew, StatusSuggested},
	}
}

// Offset возвращает смещение первой записи страницы.
// Страницы меньше 1 нормализуются к первой.
func (f FilterSpec) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}

// RatingFilter разбирает фильтр рейтинга.
// exact=true — требуется average_rating == 0, иначе average_rating >= value.
// ok=false — фильтр пустой или не является конечным числом и не применяется
// ("NaN" и "Inf" strconv разбирает, но как границу их не принимаем).
func (f FilterSpec) RatingFilter() (value float64, exact bool, ok bool) {
	raw := strings.TrimSpace(f.Rating)
	if raw == "" {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, false
	}
	if v == 0 {
		return 0, true, true
	}
	return v, false, true
}

// Match проверяет запись по всем фильтрам, кроме пагинации.
// Чистая функция: не изменяет запись.
func (f FilterSpec) Match(r *Replay, now time.Time) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) &&
			!strings.Contains(strings.ToLower(r.Filename()), q) {
			return false
		}
	}

	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}

	if f.League != "" && r.League != f.League {
		return false
	}
	if f.Players != "" && r.Players != f.Players {
		return false
	}
	if f.CategoryID != "" && r.CategoryID != f.CategoryID {
		return false
	}
	if f.ExpansionPack != "" && r.ExpansionPack != f.ExpansionPack {
		return false
	}

	if value, exact, ok := f.RatingFilter(); ok {
		if exact && r.AverageRating != 0 {
			return false
		}
		if !exact && r.AverageRating < value {
			return false
		}
	}

	if !f.IncludeExpired && !r.ExpiresAt.After(now) {
		return false
	}

	return true
}

// Apply применяет фильтры к набору записей и возвращает страницу
// и общее количество совпадений. Исходный срез не изменяется.
func (f FilterSpec) Apply(records []*Replay, now time.Time) (page []*Replay, total int) {
	matched := make([]*Replay, 0, len(records))
	for _, r := range records {
		if f.Match(r, now) {
			matched = append(matched, r)
		}
	}

	SortNewestFirst(matched)

	total = len(matched)
	offset := f.Offset()
	if offset >= total {
		return nil, total
	}
	end := offset + PageSize
	if end > total {
		end = total
	}
	return matched[offset:end], total
}

// SortNewestFirst сортирует записи по created_at DESC, при равенстве — по id DESC.
// Это стабильный порядок хранилища, на который опираются листинг и batch-операции.
func SortNewestFirst(records []*Replay) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
