package cluster

import "testing"

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	c := newEmbeddingCache()
	if _, ok := c.get("fire third floor"); ok {
		t.Fatal("expected empty cache miss")
	}
	vec := []float32{0.1, 0.2, 0.3}
	c.put("fire third floor", vec)
	got, ok := c.get("fire third floor")
	if !ok {
		t.Fatal("expected cache hit after put")
	}
	if len(got) != len(vec) {
		t.Errorf("cached vector length = %d, want %d", len(got), len(vec))
	}
}

func TestEmbeddingCacheDistinguishesText(t *testing.T) {
	c := newEmbeddingCache()
	c.put("fire", []float32{1})
	if _, ok := c.get("smoke"); ok {
		t.Error("expected cache miss for different text")
	}
}
