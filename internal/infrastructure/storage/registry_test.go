package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"PageWatcher/internal/config"
	"PageWatcher/internal/domain"
	"PageWatcher/internal/ports"
)

type registryFactory func(t *testing.T) ports.ResourceRegistry

func registries() map[string]registryFactory {
	return map[string]registryFactory{
		"memory": func(t *testing.T) ports.ResourceRegistry {
			return NewMemoryRepository()
		},
		"sqlite": func(t *testing.T) ports.ResourceRegistry {
			repo, err := Open(context.Background(), config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		},
	}
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	t.Parallel()

	for name, factory := range registries() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			reg := factory(t)

			created, err := reg.Register(ctx, "42", "https://example.com", "")
			if err != nil || !created {
				t.Fatalf("first register: created=%v err=%v", created, err)
			}
			created, err = reg.Register(ctx, "42", "https://example.com", "main")
			if err != nil || created {
				t.Fatalf("second register: created=%v err=%v", created, err)
			}

			list, err := reg.List(ctx, "42")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 1 {
				t.Fatalf("expected exactly one resource, got %d", len(list))
			}
			if list[0].Rule != "" || list[0].LastFingerprint != nil || list[0].LastCheckedAt != nil {
				t.Fatalf("duplicate register must not modify the resource: %+v", list[0])
			}
		})
	}
}

func TestRegistryOwnersAreIsolated(t *testing.T) {
	t.Parallel()

	for name, factory := range registries() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			reg := factory(t)

			mustRegister(t, reg, "a", "https://same.example")
			mustRegister(t, reg, "b", "https://same.example")

			if err := reg.RecordResult(ctx, "a", "https://same.example", "fp-a", time.Now()); err != nil {
				t.Fatalf("record: %v", err)
			}

			b, err := reg.Get(ctx, "b", "https://same.example")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if b.LastFingerprint != nil {
				t.Fatalf("owner b must keep its own fingerprint state")
			}
		})
	}
}

func TestRegistryRemoveByPosition(t *testing.T) {
	t.Parallel()

	for name, factory := range registries() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			reg := factory(t)

			for _, u := range []string{"https://one", "https://two", "https://three"} {
				mustRegister(t, reg, "42", u)
			}
			before, _ := reg.List(ctx, "42")

			removed, err := reg.Remove(ctx, "42", domain.ParseSelector("2"))
			if err != nil {
				t.Fatalf("remove: %v", err)
			}
			if removed.URL != "https://two" {
				t.Fatalf("removed wrong resource %s", removed.URL)
			}

			after, _ := reg.List(ctx, "42")
			if len(after) != 2 || after[0].URL != "https://one" || after[1].URL != "https://three" {
				t.Fatalf("unexpected listing %+v", after)
			}
			if after[0].ID != before[0].ID || after[1].ID != before[2].ID {
				t.Fatalf("identifiers of remaining resources changed")
			}

			if _, err := reg.Remove(ctx, "42", domain.ParseSelector("3")); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("stale position must be not found, got %v", err)
			}
		})
	}
}

func TestRegistryRemoveByURL(t *testing.T) {
	t.Parallel()

	for name, factory := range registries() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			reg := factory(t)

			mustRegister(t, reg, "42", "https://one")
			if _, err := reg.Remove(ctx, "42", domain.ParseSelector("https://missing")); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			if _, err := reg.Remove(ctx, "42", domain.ParseSelector("https://one")); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, err := reg.Get(ctx, "42", "https://one"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected resource to be gone, got %v", err)
			}
		})
	}
}

func TestRegistryRecordResult(t *testing.T) {
	t.Parallel()

	for name, factory := range registries() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			reg := factory(t)

			mustRegister(t, reg, "42", "https://example.com")
			checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			if err := reg.RecordResult(ctx, "42", "https://example.com", "abc", checked); err != nil {
				t.Fatalf("record: %v", err)
			}

			res, err := reg.Get(ctx, "42", "https://example.com")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if res.LastFingerprint == nil || *res.LastFingerprint != "abc" {
				t.Fatalf("fingerprint not stored: %+v", res)
			}
			if res.LastCheckedAt == nil || !res.LastCheckedAt.Equal(checked) {
				t.Fatalf("checked_at not stored: %+v", res.LastCheckedAt)
			}

			if err := reg.RecordResult(ctx, "42", "https://missing", "x", checked); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestRegistryPauseAndRemoveOwner(t *testing.T) {
	t.Parallel()

	for name, factory := range registries() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			reg := factory(t)

			mustRegister(t, reg, "a", "https://a1")
			mustRegister(t, reg, "a", "https://a2")
			mustRegister(t, reg, "b", "https://b1")

			active, _ := reg.ListActive(ctx)
			if len(active) != 3 || active[0].URL != "https://a1" || active[1].URL != "https://a2" {
				t.Fatalf("unexpected active list %+v", active)
			}

			if err := reg.SetPaused(ctx, "a", true); err != nil {
				t.Fatalf("pause: %v", err)
			}
			active, _ = reg.ListActive(ctx)
			if len(active) != 1 || active[0].OwnerID != "b" {
				t.Fatalf("paused owner still active: %+v", active)
			}
			if list, _ := reg.List(ctx, "a"); len(list) != 2 {
				t.Fatalf("pausing must keep resources, got %d", len(list))
			}

			if err := reg.SetPaused(ctx, "a", false); err != nil {
				t.Fatalf("resume: %v", err)
			}
			if err := reg.RemoveOwner(ctx, "b"); err != nil {
				t.Fatalf("remove owner: %v", err)
			}
			active, _ = reg.ListActive(ctx)
			if len(active) != 2 || active[0].OwnerID != "a" {
				t.Fatalf("unexpected active list after cleanup %+v", active)
			}
		})
	}
}

func TestNewRegistryRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRegistry(context.Background(), config.StorageConfig{Driver: "mongo"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func mustRegister(t *testing.T, reg ports.ResourceRegistry, owner, url string) {
	t.Helper()
	if _, err := reg.Register(context.Background(), owner, url, ""); err != nil {
		t.Fatalf("register %s: %v", url, err)
	}
}

func TestOpenAppliesMigrations(t *testing.T) {
	t.Parallel()

	repo, err := Open(context.Background(), config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	version, dirty, err := repo.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("version = %d dirty = %v, want 1 clean", version, dirty)
	}
}
