package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"PageWatcher/internal/ports"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	t.Parallel()

	testSerializes(t, NewKeyedMutex())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	releaseA, err := km.Acquire(context.Background(), "42|https://a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := km.Acquire(ctx, "42|https://b")
	if err != nil {
		t.Fatalf("different key must not block: %v", err)
	}
	releaseB()
}

func TestKeyedMutexContextCancel(t *testing.T) {
	t.Parallel()

	km := NewKeyedMutex()
	release, err := km.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := km.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	release()
	release()
	if km.Len() != 0 {
		t.Fatalf("expected entries to be dropped, got %d", km.Len())
	}
}

func TestRedisLeaseSerializesSameKey(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lease := NewRedisLease(client, time.Minute, nil)
	lease.retryDelay = time.Millisecond
	testSerializes(t, lease)
}

func TestRedisLeaseReleaseKeepsForeignToken(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lease := NewRedisLease(client, time.Minute, nil)
	release, err := lease.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Simulate expiry followed by another holder taking the key.
	if err := mr.Set(keyPrefix+"k", "other"); err != nil {
		t.Fatalf("set: %v", err)
	}
	release()

	got, err := mr.Get(keyPrefix + "k")
	if err != nil || got != "other" {
		t.Fatalf("foreign lease must survive release, got %q err=%v", got, err)
	}
}

func TestRedisLeaseRefreshesWhileHeld(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lease := NewRedisLease(client, 600*time.Millisecond, nil)
	lease.refreshEvery = 50 * time.Millisecond
	release, err := lease.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Move the server clock well past the original ttl while the holder works.
	for i := 0; i < 4; i++ {
		time.Sleep(150 * time.Millisecond)
		mr.FastForward(400 * time.Millisecond)
		if !mr.Exists(keyPrefix + "k") {
			t.Fatalf("lease expired after %d steps while still held", i+1)
		}
	}

	release()
	if mr.Exists(keyPrefix + "k") {
		t.Fatal("release must delete the lease")
	}
}

func TestRedisLeaseExpiresWithoutHolder(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lease := NewRedisLease(client, 600*time.Millisecond, nil)
	lease.refreshEvery = time.Hour
	release, err := lease.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	mr.FastForward(700 * time.Millisecond)
	if mr.Exists(keyPrefix + "k") {
		t.Fatal("an unrefreshed lease must expire after its ttl")
	}
}

func TestRedisLeaseContextCancel(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lease := NewRedisLease(client, time.Minute, nil)
	lease.retryDelay = 5 * time.Millisecond
	release, err := lease.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := lease.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func testSerializes(t *testing.T, locker ports.Locker) {
	t.Helper()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "42|https://example.com")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Fatal("two holders held the same key at once")
	}
}
