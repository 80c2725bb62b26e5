// batch.go — пакетные операции над наборами реплеев.
//
// BulkChangeStatus меняет статус без проверок жизненного цикла
// (в том числе не удаляет артефакт при переводе в rejected).
// BulkExport собирает zip-архив артефактов и отмечает записи как скачанные.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/replaystore/internal/domain/model"
	"github.com/bigkaa/replaystore/internal/storage"
)

// Prometheus-метрики пакетных операций.
var (
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rc_batch_items_total",
		Help: "Количество записей, обработанных пакетными операциями.",
	}, []string{"operation", "outcome"})

	exportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_export_duration_seconds",
		Help:    "Длительность сборки архива экспорта.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// ExportResult — результат пакетного экспорта.
type ExportResult struct {
	// Archive — содержимое zip-архива
	Archive []byte
	// Manifest — итоги по каждой загруженной записи
	Manifest *Manifest
}

// Included возвращает количество записей, попавших в архив.
func (r *ExportResult) Included() int {
	return len(r.Manifest.Items) - r.Manifest.Count(OutcomeSkipped)
}

// BatchService выполняет пакетные операции.
type BatchService struct {
	repo      ReplayRepository
	store     storage.Store
	lifecycle *LifecycleController
	cache     *CacheService
	logger    *slog.Logger
}

// NewBatchService создаёт сервис пакетных операций. cache может быть nil.
func NewBatchService(
	repo ReplayRepository,
	store storage.Store,
	lifecycle *LifecycleController,
	cache *CacheService,
	logger *slog.Logger,
) *BatchService {
	return &BatchService{
		repo:      repo,
		store:     store,
		lifecycle: lifecycle,
		cache:     cache,
		logger:    logger.With(slog.String("component", "batch")),
	}
}

// BulkChangeStatus устанавливает status всем существующим записям из ids.
// Недопустимый статус — ошибка валидации, ничего не меняется.
// Ошибка сохранения одной записи фиксируется в манифесте, обработка продолжается.
func (b *BatchService) BulkChangeStatus(ctx context.Context, ids []string, status model.Status) (*Manifest, error) {
	if !status.Valid() {
		return nil, model.NewValidationError("status", "недопустимый статус %q", status)
	}

	records, err := b.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("загрузка реплеев: %w", err)
	}

	manifest := &Manifest{}
	for _, rp := range records {
		if err := b.repo.UpdateStatus(ctx, rp.ID, status); err != nil {
			b.logger.Error("Ошибка смены статуса",
				slog.String("replay_id", rp.ID),
				slog.String("status", string(status)),
				slog.String("error", err.Error()),
			)
			manifest.add(rp.ID, OutcomeFailed, err)
			batchItemsTotal.WithLabelValues("status", string(OutcomeFailed)).Inc()
			continue
		}
		b.cache.Delete(rp.ID)
		manifest.add(rp.ID, OutcomeOK, nil)
		batchItemsTotal.WithLabelValues("status", string(OutcomeOK)).Inc()
	}

	b.logger.Info("Пакетная смена статуса завершена",
		slog.String("status", string(status)),
		slog.Int("requested", len(ids)),
		slog.Int("updated", manifest.Count(OutcomeOK)),
		slog.Int("failed", manifest.Count(OutcomeFailed)),
	)
	return manifest, nil
}

// BulkExport собирает архив из артефактов записей ids.
//
// Записи без артефакта пропускаются (skipped). Каждая запись архива
// называется "<id>-<имя файла>". Ошибка чтения любого артефакта прерывает
// экспорт целиком, и статусы не меняются. После сборки архива каждая
// попавшая в него запись отмечается скачанной через MarkDownloaded;
// ошибка отметки фиксируется в манифесте и не отменяет экспорт.
func (b *BatchService) BulkExport(ctx context.Context, ids []string, actor model.Actor) (*ExportResult, error) {
	start := time.Now()

	records, err := b.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("загрузка реплеев: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, rp := range records {
		if !rp.HasArtifact() {
			continue
		}

		data, err := b.store.Read(ctx, rp.ReplayFile)
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("чтение артефакта реплея %s: %w", rp.ID, err)
		}

		w, err := zw.Create(rp.ID + "-" + rp.Filename())
		if err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("создание записи архива для %s: %w", rp.ID, err)
		}
		if _, err := w.Write(data); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("запись в архив для %s: %w", rp.ID, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("завершение архива: %w", err)
	}

	manifest := &Manifest{}
	for _, rp := range records {
		if !rp.HasArtifact() {
			manifest.add(rp.ID, OutcomeSkipped, nil)
			batchItemsTotal.WithLabelValues("export", string(OutcomeSkipped)).Inc()
			continue
		}

		if _, err := b.lifecycle.MarkDownloaded(ctx, rp, actor); err != nil {
			b.logger.Error("Ошибка отметки скачивания",
				slog.String("replay_id", rp.ID),
				slog.String("error", err.Error()),
			)
			manifest.add(rp.ID, OutcomeFailed, err)
			batchItemsTotal.WithLabelValues("export", string(OutcomeFailed)).Inc()
			continue
		}
		manifest.add(rp.ID, OutcomeOK, nil)
		batchItemsTotal.WithLabelValues("export", string(OutcomeOK)).Inc()
	}

	duration := time.Since(start)
	exportDuration.Observe(duration.Seconds())

	result := &ExportResult{Archive: buf.Bytes(), Manifest: manifest}
	b.logger.Info("Экспорт собран",
		slog.Int("requested", len(ids)),
		slog.Int("included", result.Included()),
		slog.Int("skipped", manifest.Count(OutcomeSkipped)),
		slog.Int("size", buf.Len()),
		slog.Duration("duration", duration),
	)

	return result, nil
}
