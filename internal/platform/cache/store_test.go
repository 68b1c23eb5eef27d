package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetOrLoad_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoad(context.Background(), "same-key", loader)
			if err != nil {
				errCh <- err
				return
			}
			if got, _ := v.(string); got != "value" {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_SetTTL_OverridesDefaultExpiry(t *testing.T) {
	store := NewStore(time.Hour)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.SetTTL(context.Background(), "short", "v", time.Minute)
	store.Set(context.Background(), "long", "v")

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get(context.Background(), "short"); ok {
		t.Fatal("expected short-ttl entry to expire")
	}
	if _, ok := store.Get(context.Background(), "long"); !ok {
		t.Fatal("expected default-ttl entry to survive")
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	store := NewStore(time.Minute)
	ctx := context.Background()

	store.Set(ctx, "match:list:1", "a")
	store.Set(ctx, "match:id:42", "b")
	store.Set(ctx, "resolution:x", "c")

	store.DeletePrefix(ctx, "match:")

	if _, ok := store.Get(ctx, "match:list:1"); ok {
		t.Fatal("expected match:list:1 to be deleted")
	}
	if _, ok := store.Get(ctx, "match:id:42"); ok {
		t.Fatal("expected match:id:42 to be deleted")
	}
	if _, ok := store.Get(ctx, "resolution:x"); !ok {
		t.Fatal("expected resolution entry to survive")
	}
}

func TestStore_GetOrLoad_UsesCachedValueAfterFirstLoad(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return "cached", nil
	}

	if _, err := store.GetOrLoad(context.Background(), "k", loader); err != nil {
		t.Fatalf("first GetOrLoad error: %v", err)
	}
	if _, err := store.GetOrLoad(context.Background(), "k", loader); err != nil {
		t.Fatalf("second GetOrLoad error: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

var errUnexpectedValue = errors.New("unexpected loaded value")
