package uricache

import "testing"

func TestCacheParsesAndCaches(t *testing.T) {
	c := New(4)
	u, ok := c.Get("https://example.com/a")
	if !ok {
		t.Fatal("expected successful parse")
	}
	if u.Host != "example.com" {
		t.Fatalf("host = %q", u.Host)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheMalformedInputNotCached(t *testing.T) {
	c := New(4)
	if _, ok := c.Get("not a uri"); ok {
		t.Fatal("expected parse failure")
	}
	if c.Len() != 0 {
		t.Fatalf("malformed input should not be cached, Len() = %d", c.Len())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Get("https://a.example.com/")
	c.Get("https://b.example.com/")
	c.Get("https://c.example.com/") // evicts a

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.index["https://a.example.com/"]; ok {
		t.Fatal("expected a.example.com to have been evicted")
	}
	if _, ok := c.index["https://c.example.com/"]; !ok {
		t.Fatal("expected c.example.com to be present")
	}
}

func TestCacheHotKeyShortCircuit(t *testing.T) {
	c := New(1)
	first, _ := c.Get("https://hot.example.com/")
	second, ok := c.Get("https://hot.example.com/")
	if !ok || second != first {
		t.Fatal("expected hot-slot hit to return the same *Uri")
	}
}
