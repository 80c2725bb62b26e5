// maintenance.go — ручной запуск обслуживающих операций.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/replaystore/internal/api/errors"
)

// cleanupResponse — итог ручного запуска очистки.
type cleanupResponse struct {
	Candidates int              `json:"candidates"`
	Rejected   int              `json:"rejected"`
	Errors     int              `json:"errors"`
	DurationMs int64            `json:"duration_ms"`
	Manifest   manifestResponse `json:"manifest"`
}

// RunCleanup — POST /api/v1/maintenance/cleanup. Только admin.
// Выполняет один цикл очистки синхронно.
func (h *APIHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	if h.cleanup == nil {
		apierrors.InternalError(w, "Очистка не настроена")
		return
	}

	result, err := h.cleanup.Sweep(r.Context(), h.now())
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при очистке")
		return
	}

	writeJSON(w, http.StatusOK, cleanupResponse{
		Candidates: result.Candidates,
		Rejected:   result.Rejected,
		Errors:     result.Errors,
		DurationMs: result.Duration.Milliseconds(),
		Manifest:   toManifestResponse(result.Manifest),
	})
}
