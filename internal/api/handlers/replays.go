// replays.go — обработчики /api/v1/replays: поиск, карточка, загрузка,
// отклонение и пересчёт производных полей.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/replaystore/internal/api/errors"
	"github.com/bigkaa/replaystore/internal/api/middleware"
	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/service"
)

// replayFileField — имя multipart-поля с файлом реплея.
const replayFileField = "replay_file"

// replayResponse — представление реплея в API.
type replayResponse struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	CategoryID          string    `json:"category_id"`
	UserID              string    `json:"user_id"`
	League              string    `json:"league"`
	Players             string    `json:"players"`
	ExpansionPack       string    `json:"expansion_pack"`
	Protoss             bool      `json:"protoss"`
	Terran              bool      `json:"terran"`
	Zerg                bool      `json:"zerg"`
	Status              string    `json:"status"`
	Filename            string    `json:"filename,omitempty"`
	GameLength          int       `json:"game_length"`
	FormattedGameLength string    `json:"formatted_game_length"`
	Version             string    `json:"version"`
	AverageRating       float64   `json:"average_rating"`
	CreatedAt           time.Time `json:"created_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	Expired             bool      `json:"expired"`
}

// listResponse — страница результатов поиска.
type listResponse struct {
	Items    []replayResponse `json:"items"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	HasMore  bool             `json:"has_more"`
}

func toReplayResponse(rp *model.Replay, now time.Time) replayResponse {
	return replayResponse{
		ID:                  rp.ID,
		Title:               rp.Title,
		Description:         rp.Description,
		CategoryID:          rp.CategoryID,
		UserID:              rp.OwnerID,
		League:              string(rp.League),
		Players:             string(rp.Players),
		ExpansionPack:       string(rp.ExpansionPack),
		Protoss:             rp.Protoss,
		Terran:              rp.Terran,
		Zerg:                rp.Zerg,
		Status:              string(rp.Status),
		Filename:            rp.Filename(),
		GameLength:          rp.GameLength,
		FormattedGameLength: rp.FormattedGameLength(),
		Version:             rp.Version,
		AverageRating:       rp.AverageRating,
		CreatedAt:           rp.CreatedAt,
		ExpiresAt:           rp.ExpiresAt,
		Expired:             rp.IsExpired(now),
	}
}

// ListReplays — GET /api/v1/replays.
func (h *APIHandler) ListReplays(w http.ResponseWriter, r *http.Request) {
	spec, err := parseFilterSpec(r.URL.Query())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка разбора параметров поиска")
		return
	}

	result, err := h.search.Search(r.Context(), spec)
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при поиске реплеев")
		return
	}

	now := h.now()
	resp := listResponse{
		Items:    make([]replayResponse, 0, len(result.Items)),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		HasMore:  result.HasMore,
	}
	for _, rp := range result.Items {
		resp.Items = append(resp.Items, toReplayResponse(rp, now))
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseFilterSpec строит FilterSpec из query-параметров.
// Некорректный номер страницы трактуется как первая страница.
// Параметр statuses отсутствует — статусы по умолчанию, пустой — любые.
func parseFilterSpec(q url.Values) (model.FilterSpec, error) {
	spec := model.DefaultFilterSpec()

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		spec.Page = p
	}

	if _, ok := q["statuses"]; ok {
		spec.Statuses = nil
		for _, raw := range strings.Split(q.Get("statuses"), ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			s, err := model.ParseStatus(raw)
			if err != nil {
				return spec, model.NewValidationError("statuses", "неизвестный статус %q", raw)
			}
			spec.Statuses = append(spec.Statuses, s)
		}
	}

	if v := q.Get("league"); v != "" {
		l, err := model.ParseLeague(v)
		if err != nil {
			return spec, model.NewValidationError("league", "неизвестная лига %q", v)
		}
		spec.League = l
	}
	if v := q.Get("players"); v != "" {
		p, err := model.ParsePlayerFormat(v)
		if err != nil {
			return spec, model.NewValidationError("players", "неизвестный формат %q", v)
		}
		spec.Players = p
	}
	if v := q.Get("expansion_pack"); v != "" {
		e, err := model.ParseExpansionPack(v)
		if err != nil {
			return spec, model.NewValidationError("expansion_pack", "неизвестное дополнение %q", v)
		}
		spec.ExpansionPack = e
	}

	spec.CategoryID = q.Get("category_id")
	spec.Rating = q.Get("rating")
	spec.Query = q.Get("query")
	if spec.Query == "" {
		spec.Query = q.Get("q")
	}
	spec.IncludeExpired = q.Get("include_expired") == "true"

	return spec, nil
}

// GetReplay — GET /api/v1/replays/{id}.
func (h *APIHandler) GetReplay(w http.ResponseWriter, r *http.Request) {
	rp, err := h.search.GetReplay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при получении реплея")
		return
	}
	writeJSON(w, http.StatusOK, toReplayResponse(rp, h.now()))
}

// CreateReplay — POST /api/v1/replays (multipart/form-data).
func (h *APIHandler) CreateReplay(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor.Subject == "" {
		apierrors.Unauthorized(w, "Загрузка доступна только аутентифицированным пользователям")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			apierrors.FileTooLarge(w, "Размер загрузки превышает допустимый")
			return
		}
		apierrors.ValidationError(w, "Некорректное multipart-тело запроса")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(replayFileField)
	if err != nil {
		apierrors.ValidationError(w, "replay_file: файл обязателен")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Ошибка чтения загружаемого файла", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка чтения загружаемого файла")
		return
	}

	in := service.CreateInput{
		Title:         r.FormValue("title"),
		Description:   r.FormValue("description"),
		CategoryID:    r.FormValue("category_id"),
		OwnerID:       actor.Subject,
		League:        model.League(r.FormValue("league")),
		Players:       model.PlayerFormat(r.FormValue("players")),
		ExpansionPack: model.ExpansionPack(r.FormValue("expansion_pack")),
		Protoss:       formBool(r, "protoss"),
		Terran:        formBool(r, "terran"),
		Zerg:          formBool(r, "zerg"),
		Filename:      header.Filename,
		Data:          data,
	}

	rp, err := h.replays.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при загрузке реплея")
		return
	}
	writeJSON(w, http.StatusCreated, toReplayResponse(rp, h.now()))
}

// formBool читает булево поле формы ("true", "1", "on").
func formBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.FormValue(key)) {
	case "true", "1", "on":
		return true
	}
	return false
}

// RejectReplay — POST /api/v1/replays/{id}/reject. Только admin.
func (h *APIHandler) RejectReplay(w http.ResponseWriter, r *http.Request) {
	rp, err := h.lifecycle.RejectByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при отклонении реплея")
		return
	}
	writeJSON(w, http.StatusOK, toReplayResponse(rp, h.now()))
}

// ratingResponse — результат пересчёта средней оценки.
type ratingResponse struct {
	ID            string  `json:"id"`
	AverageRating float64 `json:"average_rating"`
}

// RefreshRating — POST /api/v1/replays/{id}/rating/refresh.
func (h *APIHandler) RefreshRating(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	avg, err := h.rating.Refresh(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при пересчёте оценки")
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{ID: id, AverageRating: avg})
}

// RefreshDetails — POST /api/v1/replays/{id}/details/refresh. Только admin.
func (h *APIHandler) RefreshDetails(w http.ResponseWriter, r *http.Request) {
	rp, err := h.replays.RefreshGameDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Внутренняя ошибка при обновлении метаданных")
		return
	}
	writeJSON(w, http.StatusOK, toReplayResponse(rp, h.now()))
}
