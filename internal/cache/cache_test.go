package cache

import (
	"testing"
	"time"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("search", "climate risk", "top_k=5")
	b := Key("search", "climate risk", "top_k=5")
	if a != b {
		t.Fatalf("identical inputs produced different keys: %s vs %s", a, b)
	}
	if Key("search", " climate risk ", "top_k=5") != a {
		t.Fatalf("whitespace normalization changed the key")
	}
}

func TestKeyDistinct(t *testing.T) {
	base := Key("search", "climate risk")
	cases := []string{
		Key("rag", "climate risk"),
		Key("search", "climate"),
		Key("search", "climate risk", ""),
		Key("search", "climate", "risk"),
	}
	for i, other := range cases {
		if other == base {
			t.Fatalf("case %d collided with base key", i)
		}
	}
	// Part boundaries must matter: ("ab","c") != ("a","bc").
	if Key("op", "ab", "c") == Key("op", "a", "bc") {
		t.Fatal("part boundary collision")
	}
}

func TestGetSetExpiry(t *testing.T) {
	c := New(16)
	key := Key("search", "q")
	if _, ok := c.Get(key); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	c.Set(key, []byte("payload"), 20*time.Millisecond)
	got, ok := c.Get(key)
	if !ok || string(got) != "payload" {
		t.Fatalf("expected hit with payload, got ok=%v value=%q", ok, got)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestClearPrefix(t *testing.T) {
	c := New(16)
	c.Set(Key("search", "a"), []byte("1"), time.Minute)
	c.Set(Key("search", "b"), []byte("2"), time.Minute)
	c.Set(Key("rag", "a"), []byte("3"), time.Minute)
	if removed := c.Clear("search:"); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, ok := c.Get(Key("rag", "a")); !ok {
		t.Fatal("rag entry should survive search prefix clear")
	}
}

func TestNilCacheSafe(t *testing.T) {
	var c *Cache
	if _, ok := c.Get("k"); ok {
		t.Fatal("nil cache must miss")
	}
	c.Set("k", []byte("v"), time.Minute)
	if c.Clear("") != 0 {
		t.Fatal("nil cache clear must be a no-op")
	}
	if s := c.Stats(); s.Hits != 0 || s.Misses != 0 || s.Entries != 0 {
		t.Fatal("nil cache stats must be zero")
	}
}

func TestStatsCounters(t *testing.T) {
	c := New(16)
	key := Key("embed", "text")
	c.Get(key)
	c.Set(key, []byte("v"), time.Minute)
	c.Get(key)
	c.Get(key)
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
