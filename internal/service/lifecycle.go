// lifecycle.go — переходы статусов одного реплея.
//
// rejected — терминальный статус: при отклонении артефакт удаляется из
// файлового хранилища, ссылка на него обнуляется. Все записи выполняются
// одним UPDATE без чтения текущего состояния (last-writer-wins).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/repository"
	"github.com/bigkaa/replaystore/internal/storage"
)

// Prometheus-метрики жизненного цикла.
var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rc_lifecycle_transitions_total",
		Help: "Количество смен статуса реплеев.",
	}, []string{"status"})

	artifactDeleteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_artifact_delete_errors_total",
		Help: "Количество ошибок удаления артефактов при отклонении.",
	})
)

// LifecycleController управляет статусом отдельной записи.
type LifecycleController struct {
	repo   ReplayRepository
	store  storage.Store
	authz  Authorizer
	cache  *CacheService
	logger *slog.Logger
}

// NewLifecycleController создаёт контроллер. cache может быть nil.
func NewLifecycleController(
	repo ReplayRepository,
	store storage.Store,
	authz Authorizer,
	cache *CacheService,
	logger *slog.Logger,
) *LifecycleController {
	return &LifecycleController{
		repo:   repo,
		store:  store,
		authz:  authz,
		cache:  cache,
		logger: logger.With(slog.String("component", "lifecycle")),
	}
}

// Reject переводит запись в rejected и удаляет артефакт.
// Идемпотентен. Отсутствие артефакта в хранилище не считается ошибкой;
// прочие ошибки удаления логируются, статус сохраняется всё равно.
// При успехе rp отражает сохранённое состояние.
func (lc *LifecycleController) Reject(ctx context.Context, rp *model.Replay) error {
	if rp.HasArtifact() {
		if err := lc.store.Delete(ctx, rp.ReplayFile); err != nil && !errors.Is(err, storage.ErrNotFound) {
			artifactDeleteErrorsTotal.Inc()
			lc.logger.Warn("Не удалось удалить артефакт отклонённого реплея",
				slog.String("replay_id", rp.ID),
				slog.String("ref", rp.ReplayFile),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := lc.repo.MarkRejected(ctx, rp.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("отклонение реплея %s: %w", rp.ID, err)
	}
	lc.cache.Delete(rp.ID)

	rp.Status = model.StatusRejected
	rp.ReplayFile = ""
	transitionsTotal.WithLabelValues(string(model.StatusRejected)).Inc()

	lc.logger.Info("Реплей отклонён", slog.String("replay_id", rp.ID))
	return nil
}

// RejectByID загружает запись и отклоняет её.
func (lc *LifecycleController) RejectByID(ctx context.Context, id string) (*model.Replay, error) {
	rp, err := lc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("загрузка реплея %s: %w", id, err)
	}
	if err := lc.Reject(ctx, rp); err != nil {
		return nil, err
	}
	return rp, nil
}

// MarkDownloaded переводит запись в downloaded, если пользователь привилегирован.
// Для остальных — тихий no-op: возвращает false и nil.
func (lc *LifecycleController) MarkDownloaded(ctx context.Context, rp *model.Replay, actor model.Actor) (bool, error) {
	if !lc.authz.IsPrivileged(actor) {
		return false, nil
	}

	if err := lc.repo.UpdateStatus(ctx, rp.ID, model.StatusDownloaded); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("отметка скачивания реплея %s: %w", rp.ID, err)
	}
	lc.cache.Delete(rp.ID)

	rp.Status = model.StatusDownloaded
	transitionsTotal.WithLabelValues(string(model.StatusDownloaded)).Inc()
	return true, nil
}

// Expired сообщает, истёк ли срок записи к моменту now.
func (lc *LifecycleController) Expired(rp *model.Replay, now time.Time) bool {
	return rp.IsExpired(now)
}
