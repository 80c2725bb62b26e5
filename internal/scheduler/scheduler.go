// Пакет scheduler — запуск очистки устаревших реплеев по cron-расписанию.
// Обёртка над robfig/cron/v3.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bigkaa/replaystore/internal/service"
)

// Sweeper — выполняет один цикл очистки относительно момента now.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*service.SweepResult, error)
}

// Scheduler — периодический запуск Sweeper.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New создаёт планировщик. schedule — стандартное cron-выражение
// (5 полей или дескриптор вида @daily). timeout ограничивает один запуск,
// 0 — без ограничения.
func New(sweeper Sweeper, schedule string, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	l := logger.With(slog.String("component", "scheduler"))

	c := cron.New(
		cron.WithLogger(cronLogger{logger: l}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger: l})),
	)

	s := &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  timeout,
		logger:   l,
		now:      func() time.Time { return time.Now().UTC() },
	}

	if _, err := c.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("некорректное расписание %q: %w", schedule, err)
	}
	return s, nil
}

// Start запускает планировщик. ctx используется как родительский
// контекст для каждого запуска очистки.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.logger.Info("Планировщик очистки запущен",
		slog.String("schedule", s.schedule),
	)
}

// Stop останавливает планировщик и ждёт завершения текущего запуска.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Планировщик очистки остановлен")
}

// Next возвращает время следующего запуска (zero, если планировщик не запущен).
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// runOnce выполняет один запуск очистки.
func (s *Scheduler) runOnce() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.sweeper.Sweep(ctx, s.now()); err != nil {
		s.logger.Error("Ошибка очистки по расписанию",
			slog.String("error", err.Error()),
		)
	}
}

// cronLogger адаптирует slog к интерфейсу cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
