package cache

import (
	"context"
	"testing"
	"time"
)

func TestSweeper_DeletesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Key: "fresh", Value: []byte("1"), WrittenAt: now.Add(-30 * time.Minute), Duration: time.Hour},
		{Key: "stale", Value: []byte("2"), WrittenAt: now.Add(-2 * time.Hour), Duration: time.Hour},
		{Key: "boundary", Value: []byte("3"), WrittenAt: now.Add(-time.Hour), Duration: time.Hour},
	}
	for _, e := range entries {
		if err := store.Set(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	sweeper := NewSweeper(store, time.Minute)
	sweeper.now = func() time.Time { return now }

	deleted, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}

	if _, found, _ := store.Get(ctx, "stale"); found {
		t.Error("stale entry survived sweep")
	}
	for _, k := range []string{"fresh", "boundary"} {
		if _, found, _ := store.Get(ctx, k); !found {
			t.Errorf("%s entry was swept", k)
		}
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		NewSweeper(NewMemoryStore(), 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
