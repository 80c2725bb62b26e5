// cleanup.go — периодическое отклонение устаревших реплеев.
//
// Каждый реплей со статусом, отличным от rejected, созданный раньше
// now - model.CleanupAge, отклоняется через LifecycleController.Reject
// (вместе с удалением артефакта). Расписание задаёт internal/scheduler.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики очистки
var (
	// sweepRunsTotal — количество запусков очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_cleanup_runs_total",
		Help: "Общее количество запусков очистки",
	})

	// sweepRejectedTotal — количество реплеев, отклонённых очисткой.
	sweepRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_cleanup_rejected_total",
		Help: "Общее количество реплеев, отклонённых очисткой",
	})

	// sweepErrorsTotal — количество ошибок отклонения.
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_cleanup_errors_total",
		Help: "Общее количество ошибок при отклонении устаревших реплеев",
	})

	// sweepDurationSeconds — длительность очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_cleanup_duration_seconds",
		Help:    "Длительность выполнения очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// Candidates — количество найденных устаревших реплеев
	Candidates int
	// Rejected — количество успешно отклонённых
	Rejected int
	// Errors — количество ошибок отклонения
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
	// Manifest — итог по каждому кандидату
	Manifest *Manifest
}

// CleanupSweeper отклоняет устаревшие реплеи.
type CleanupSweeper struct {
	repo      ReplayRepository
	lifecycle *LifecycleController
	maxAge    time.Duration
	logger    *slog.Logger

	mu sync.Mutex // защита от параллельного запуска Sweep
}

// NewCleanupSweeper создаёт сервис очистки. maxAge — возраст, после
// которого реплей отклоняется (model.CleanupAge).
func NewCleanupSweeper(
	repo ReplayRepository,
	lifecycle *LifecycleController,
	maxAge time.Duration,
	logger *slog.Logger,
) *CleanupSweeper {
	return &CleanupSweeper{
		repo:      repo,
		lifecycle: lifecycle,
		maxAge:    maxAge,
		logger:    logger.With(slog.String("component", "cleanup")),
	}
}

// Sweep выполняет один цикл очистки относительно момента now.
// Ошибка возвращается только при сбое выборки кандидатов; ошибки
// отдельных записей попадают в манифест.
func (cs *CleanupSweeper) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	start := time.Now()
	sweepRunsTotal.Inc()

	cutoff := now.Add(-cs.maxAge)
	candidates, err := cs.repo.ListCleanupCandidates(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("выборка устаревших реплеев: %w", err)
	}

	result := &SweepResult{
		Candidates: len(candidates),
		Manifest:   &Manifest{},
	}

	for _, rp := range candidates {
		if err := cs.lifecycle.Reject(ctx, rp); err != nil {
			cs.logger.Error("Очистка: ошибка отклонения реплея",
				slog.String("replay_id", rp.ID),
				slog.String("error", err.Error()),
			)
			result.Manifest.add(rp.ID, OutcomeFailed, err)
			result.Errors++
			continue
		}
		result.Manifest.add(rp.ID, OutcomeOK, nil)
		result.Rejected++
	}

	result.Duration = time.Since(start)

	sweepRejectedTotal.Add(float64(result.Rejected))
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	cs.logger.Info("Очистка завершена",
		slog.Time("cutoff", cutoff),
		slog.Int("candidates", result.Candidates),
		slog.Int("rejected", result.Rejected),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}
