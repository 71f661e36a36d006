package versions

import (
	"testing"
	"time"

	"audittrail/internal/textdiff"
)

func mustDiff(t *testing.T, oldText, newText string) textdiff.DiffResult {
	t.Helper()

	d, err := textdiff.Diff(oldText, newText)
	if err != nil {
		t.Fatalf("diff %q -> %q: %v", oldText, newText, err)
	}

	return d
}

func TestDiffCacheGetSet(t *testing.T) {
	cache := newDiffCache(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	key := diffCacheKey("a", "a b")
	cache.set(key, mustDiff(t, "a", "a b"), now)

	got, ok := cache.get(key, now.Add(30*time.Second))
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Added() != 1 {
		t.Fatalf("unexpected cached result: added = %d", got.Added())
	}

	if _, ok = cache.get(key, now.Add(2*time.Minute)); ok {
		t.Fatalf("expected expired entry to be evicted")
	}
	if cache.len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", cache.len())
	}
}

func TestDiffCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newDiffCache(2, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	k1 := diffCacheKey("1", "x")
	k2 := diffCacheKey("2", "x")
	k3 := diffCacheKey("3", "x")

	cache.set(k1, mustDiff(t, "1", "x"), now)
	cache.set(k2, mustDiff(t, "2", "x"), now)

	if _, ok := cache.get(k1, now); !ok {
		t.Fatalf("expected k1 hit")
	}

	cache.set(k3, mustDiff(t, "3", "x"), now)

	if _, ok := cache.get(k2, now); ok {
		t.Fatalf("expected k2 to be evicted")
	}
	if _, ok := cache.get(k1, now); !ok {
		t.Fatalf("expected k1 to survive")
	}
	if _, ok := cache.get(k3, now); !ok {
		t.Fatalf("expected k3 hit")
	}
}

func TestDiffCacheKeySeparatesSides(t *testing.T) {
	if diffCacheKey("ab", "c") == diffCacheKey("a", "bc") {
		t.Fatalf("keys must not collide on concatenation")
	}
	if diffCacheKey("a", "b") == diffCacheKey("b", "a") {
		t.Fatalf("keys must depend on direction")
	}
}

func TestNilDiffCache(t *testing.T) {
	var cache *diffCache
	if newDiffCache(0, time.Hour) != nil || newDiffCache(10, 0) != nil {
		t.Fatalf("expected disabled cache")
	}

	cache.set("k", textdiff.DiffResult{}, time.Now())
	if _, ok := cache.get("k", time.Now()); ok {
		t.Fatalf("nil cache must miss")
	}
}
