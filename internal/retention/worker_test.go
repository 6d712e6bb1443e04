package retention

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/duhoc-advisor/internal/store"
)

func TestSweepDeletesIdleSessions(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()

	old, err := repo.GetOrCreateSession(ctx, "old")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	if err := repo.SaveSession(ctx, old); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if _, err := repo.GetOrCreateSession(ctx, "fresh"); err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}

	var reported int64
	w := NewWorker(repo, time.Hour, time.Minute, func(n int64) { reported = n })

	if got := w.Sweep(ctx); got != 1 {
		t.Fatalf("expected 1 deleted, got %d", got)
	}
	if reported != 1 {
		t.Fatalf("callback saw %d", reported)
	}
	if s, _ := repo.GetSession(ctx, "fresh"); s == nil {
		t.Fatal("fresh session was deleted")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(store.NewMemory(), time.Hour, 10*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRunDisabledKeepsSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := store.NewMemory()
	old, err := repo.GetOrCreateSession(ctx, "old")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	old.UpdatedAt = time.Now().Add(-365 * 24 * time.Hour)
	if err := repo.SaveSession(ctx, old); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	w := NewWorker(repo, 0, time.Millisecond, nil)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if s, _ := repo.GetSession(context.Background(), "old"); s == nil {
		t.Fatal("session deleted while retention is disabled")
	}
}
