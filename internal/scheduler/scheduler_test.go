package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/replaystore/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockSweeper — мок Sweeper, запоминающий моменты вызовов.
type mockSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (m *mockSweeper) Sweep(_ context.Context, now time.Time) (*service.SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, now)
	if m.err != nil {
		return nil, m.err
	}
	return &service.SweepResult{Manifest: &service.Manifest{}}, nil
}

func (m *mockSweeper) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(&mockSweeper{}, "every day", 0, testLogger()); err == nil {
		t.Fatal("ожидалась ошибка для некорректного расписания")
	}
}

func TestRunOnce_PassesUTCNow(t *testing.T) {
	sweeper := &mockSweeper{}
	s, err := New(sweeper, "@daily", time.Minute, testLogger())
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}
	fixed := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.runOnce()

	if sweeper.count() != 1 {
		t.Fatalf("Sweep вызван %d раз, ожидался 1", sweeper.count())
	}
	if !sweeper.calls[0].Equal(fixed) {
		t.Errorf("now = %v, ожидалось %v", sweeper.calls[0], fixed)
	}
}

func TestRunOnce_ErrorDoesNotPanic(t *testing.T) {
	sweeper := &mockSweeper{err: errors.New("база недоступна")}
	s, err := New(sweeper, "@hourly", 0, testLogger())
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}
	s.runOnce()
	if sweeper.count() != 1 {
		t.Errorf("Sweep вызван %d раз, ожидался 1", sweeper.count())
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(&mockSweeper{}, "*/5 * * * *", 0, testLogger())
	if err != nil {
		t.Fatalf("New() ошибка: %v", err)
	}

	s.Start(context.Background())
	next := s.Next()
	if next.IsZero() {
		t.Error("Next() = zero после Start")
	}
	if next.Minute()%5 != 0 {
		t.Errorf("Next() = %v, ожидалась минута, кратная 5", next)
	}
	s.Stop()
}
