package kafka

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ---------------------------------------------------------------------------
// MemoryIdempotencyStore tests
// ---------------------------------------------------------------------------

func TestMemoryIdempotencyStore_AddAndContains(t *testing.T) {
	store := NewMemoryIdempotencyStore(1 * time.Minute)
	ctx := context.Background()

	if err := store.Add(ctx, "evt-1"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	got, err := store.Contains(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if !got {
		t.Error("Contains(evt-1) = false, want true after Add")
	}
}

func TestMemoryIdempotencyStore_ContainsUnknown(t *testing.T) {
	store := NewMemoryIdempotencyStore(1 * time.Minute)

	got, err := store.Contains(context.Background(), "unknown-id")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if got {
		t.Error("Contains(unknown-id) = true, want false for unknown ID")
	}
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(10 * time.Millisecond)
	ctx := context.Background()

	if err := store.Add(ctx, "evt-expire"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	got, err := store.Contains(ctx, "evt-expire")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if got {
		t.Error("Contains(evt-expire) = true after TTL expiry, want false")
	}
}

// ---------------------------------------------------------------------------
// RedisIdempotencyStore tests
// ---------------------------------------------------------------------------

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, "analysis", ttl), mr
}

func TestRedisIdempotencyStore_AddAndContains(t *testing.T) {
	store, mr := setupRedisStore(t, 1*time.Minute)
	ctx := context.Background()

	if err := store.Add(ctx, "evt-1"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}
	if !mr.Exists("analysis:evt-1") {
		t.Error("key analysis:evt-1 missing in redis after Add")
	}

	got, err := store.Contains(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if !got {
		t.Error("Contains(evt-1) = false, want true after Add")
	}
}

func TestRedisIdempotencyStore_ContainsUnknown(t *testing.T) {
	store, _ := setupRedisStore(t, 1*time.Minute)

	got, err := store.Contains(context.Background(), "unknown-id")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if got {
		t.Error("Contains(unknown-id) = true, want false for unknown ID")
	}
}

func TestRedisIdempotencyStore_Expiry(t *testing.T) {
	store, mr := setupRedisStore(t, 10*time.Second)
	ctx := context.Background()

	if err := store.Add(ctx, "evt-expire"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}

	mr.FastForward(11 * time.Second)

	got, err := store.Contains(ctx, "evt-expire")
	if err != nil {
		t.Fatalf("Contains() returned error: %v", err)
	}
	if got {
		t.Error("Contains(evt-expire) = true after TTL expiry, want false")
	}
}

func TestRedisIdempotencyStore_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisIdempotencyStore(client, "", 1*time.Minute)

	if err := store.Add(context.Background(), "evt-1"); err != nil {
		t.Fatalf("Add() returned error: %v", err)
	}
	if !mr.Exists("events:processed:evt-1") {
		t.Error("key events:processed:evt-1 missing, default prefix not applied")
	}
}

func TestRedisIdempotencyStore_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisIdempotencyStore(client, "analysis", 1*time.Minute)

	mr.Close()

	if _, err := store.Contains(context.Background(), "evt-1"); err == nil {
		t.Error("Contains() = nil error with redis down, want error")
	}
	if err := store.Add(context.Background(), "evt-1"); err == nil {
		t.Error("Add() = nil error with redis down, want error")
	}
}

// ---------------------------------------------------------------------------
// IdempotentHandler tests
// ---------------------------------------------------------------------------

func TestIdempotentHandler_ProcessesFirstDelivery(t *testing.T) {
	store := NewMemoryIdempotencyStore(1 * time.Minute)
	calls := 0
	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls++
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-1", EventType: "review.created"}
	if err := handler(context.Background(), event); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("inner handler called %d times, want 1", calls)
	}
}

func TestIdempotentHandler_SkipsDuplicate(t *testing.T) {
	store := NewMemoryIdempotencyStore(1 * time.Minute)
	calls := 0
	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls++
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-dup", EventType: "review.created"}
	ctx := context.Background()

	if err := handler(ctx, event); err != nil {
		t.Fatalf("first delivery returned error: %v", err)
	}
	if err := handler(ctx, event); err != nil {
		t.Fatalf("second delivery returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("inner handler called %d times, want 1 (duplicate must be skipped)", calls)
	}
}

func TestIdempotentHandler_FailureAllowsRedelivery(t *testing.T) {
	store := NewMemoryIdempotencyStore(1 * time.Minute)
	calls := 0
	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls++
		if calls == 1 {
			return errors.New("transient failure")
		}
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-retry", EventType: "review.created"}
	ctx := context.Background()

	if err := handler(ctx, event); err == nil {
		t.Fatal("first delivery should have failed")
	}
	// The failed delivery must not be recorded, so a retry is processed.
	if err := handler(ctx, event); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("inner handler called %d times, want 2", calls)
	}
}

func TestIdempotentHandler_EmptyEventIDAlwaysProcessed(t *testing.T) {
	store := NewMemoryIdempotencyStore(1 * time.Minute)
	calls := 0
	handler := IdempotentHandler(store, func(ctx context.Context, event *Event) error {
		calls++
		return nil
	}, testLogger())

	event := &Event{EventType: "review.created"}
	ctx := context.Background()

	_ = handler(ctx, event)
	_ = handler(ctx, event)
	if calls != 2 {
		t.Errorf("inner handler called %d times, want 2 (no event ID means no dedup)", calls)
	}
}
