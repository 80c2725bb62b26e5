package service

// Outcome — результат обработки одной записи в пакетной операции.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// ManifestItem — итог по одной записи.
type ManifestItem struct {
	ID      string  `json:"id"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// Manifest — упорядоченный список итогов пакетной операции.
// Порядок совпадает с порядком обработки записей.
type Manifest struct {
	Items []ManifestItem `json:"items"`
}

func (m *Manifest) add(id string, outcome Outcome, err error) {
	item := ManifestItem{ID: id, Outcome: outcome}
	if err != nil {
		item.Error = err.Error()
	}
	m.Items = append(m.Items, item)
}

// Count возвращает количество записей с указанным итогом.
func (m *Manifest) Count(outcome Outcome) int {
	n := 0
	for _, item := range m.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// Get возвращает итог по id.
func (m *Manifest) Get(id string) (ManifestItem, bool) {
	for _, item := range m.Items {
		if item.ID == id {
			return item, true
		}
	}
	return ManifestItem{}, false
}
