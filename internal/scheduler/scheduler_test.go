package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextRunDailyBeforeWallClock(t *testing.T) {
	s, err := New(Options{DailyAt: "08:00"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	now := time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC)
	next := s.NextRun(now)
	want := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}
}

func TestNextRunDailyAfterWallClockRollsOver(t *testing.T) {
	s, err := New(Options{DailyAt: "08:00"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	next := s.NextRun(now)
	want := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("an exact wall-clock hit must schedule for tomorrow, got %s", next)
	}
}

func TestNextRunInterval(t *testing.T) {
	s, err := New(Options{Interval: 6 * time.Hour}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if next := s.NextRun(now); !next.Equal(now.Add(6 * time.Hour)) {
		t.Fatalf("interval mode should add the interval, got %s", next)
	}
}

func TestNewRejectsMissingSchedule(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); err == nil {
		t.Fatal("no daily_at and no interval must fail")
	}
	if _, err := New(Options{DailyAt: "25:99"}, zerolog.Nop()); err == nil {
		t.Fatal("malformed daily_at must fail")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx, func(context.Context, time.Time) error { return nil }); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
