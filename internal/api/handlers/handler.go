// handler.go — основной обработчик API каталога реплеев.
// Делегирует запросы в сервисный слой и переводит ошибки сервисов в HTTP-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/replaystore/internal/api/errors"
	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/service"
)

// CleanupRunner — запуск одного цикла очистки.
type CleanupRunner interface {
	Sweep(ctx context.Context, now time.Time) (*service.SweepResult, error)
}

// Deps — зависимости APIHandler.
type Deps struct {
	Search    *service.SearchService
	Replays   *service.ReplayService
	Lifecycle *service.LifecycleController
	Batch     *service.BatchService
	Rating    *service.RatingService
	Cleanup   CleanupRunner
	// MaxUploadSize — ограничение тела multipart-загрузки в байтах
	MaxUploadSize int64
}

// APIHandler — обработчик бизнес-endpoints /api/v1.
type APIHandler struct {
	search        *service.SearchService
	replays       *service.ReplayService
	lifecycle     *service.LifecycleController
	batch         *service.BatchService
	rating        *service.RatingService
	cleanup       CleanupRunner
	maxUploadSize int64
	logger        *slog.Logger
	now           func() time.Time
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(deps Deps, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		search:        deps.Search,
		replays:       deps.Replays,
		lifecycle:     deps.Lifecycle,
		batch:         deps.Batch,
		rating:        deps.Rating,
		cleanup:       deps.Cleanup,
		maxUploadSize: deps.MaxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и возвращаются как 500 с сообщением msg.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		apierrors.ValidationError(w, ve.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Реплей не найден")
	case errors.Is(err, service.ErrUploadLimitReached):
		apierrors.UploadLimitReached(w, "Превышен лимит загрузок за неделю")
	default:
		h.logger.Error(msg, slog.String("error", err.Error()))
		apierrors.InternalError(w, msg)
	}
}
