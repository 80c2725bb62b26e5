// bulk.go — пакетные операции: смена статуса и экспорт архива.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/replaystore/internal/api/errors"
	"github.com/bigkaa/replaystore/internal/api/middleware"
	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/service"
)

// maxBulkIDs — максимальное количество id в одном пакетном запросе.
const maxBulkIDs = 500

// bulkRequest — тело пакетных запросов.
type bulkRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status,omitempty"`
}

// manifestResponse — итоги пакетной операции.
type manifestResponse struct {
	Items   []service.ManifestItem `json:"items"`
	OK      int                    `json:"ok"`
	Failed  int                    `json:"failed"`
	Skipped int                    `json:"skipped"`
}

func toManifestResponse(m *service.Manifest) manifestResponse {
	items := m.Items
	if items == nil {
		items = []service.ManifestItem{}
	}
	return manifestResponse{
		Items:   items,
		OK:      m.Count(service.OutcomeOK),
		Failed:  m.Count(service.OutcomeFailed),
		Skipped: m.Count(service.OutcomeSkipped),
	}
}

// decodeBulkRequest разбирает и проверяет тело пакетного запроса.
func decodeBulkRequest(w http.ResponseWriter, r *http.Request) (*bulkRequest, bool) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return nil, false
	}
	if len(req.IDs) == 0 {
		apierrors.ValidationError(w, "ids: требуется хотя бы один id")
		return nil, false
	}
	if len(req.IDs) > maxBulkIDs {
		apierrors.ValidationError(w, fmt.Sprintf("ids: не более %d элементов", maxBulkIDs))
		return nil, false
	}
	return &req, true
}

// BulkStatus — POST /api/v1/replays/bulk/status. Только admin.
func (h *APIHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}

	manifest, err := h.batch.BulkChangeStatus(r.Context(), req.IDs, model.Status(req.Status))
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при смене статуса")
		return
	}
	writeJSON(w, http.StatusOK, toManifestResponse(manifest))
}

// BulkExport — POST /api/v1/replays/bulk/export.
// Возвращает zip-архив; сводка манифеста передаётся в заголовках X-Export-*.
func (h *APIHandler) BulkExport(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	result, err := h.batch.BulkExport(r.Context(), req.IDs, actor)
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при экспорте реплеев")
		return
	}

	filename := fmt.Sprintf("replays-%s.zip", h.now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Archive)))
	w.Header().Set("X-Export-Included", strconv.Itoa(result.Included()))
	w.Header().Set("X-Export-Skipped", strconv.Itoa(result.Manifest.Count(service.OutcomeSkipped)))
	w.Header().Set("X-Export-Failed", strconv.Itoa(result.Manifest.Count(service.OutcomeFailed)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Archive)
}
