package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryEvictsLeastRecentlyUsedByCount(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	m.Set(ctx, "a", []byte("1"), 0)
	m.Set(ctx, "b", []byte("2"), 0)
	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Fatal("expected a to be present")
	}
	m.Set(ctx, "c", []byte("3"), 0)

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Error("a should have survived")
	}
	if _, ok, _ := m.Get(ctx, "c"); !ok {
		t.Error("c should be present")
	}
}

func TestMemoryEvictsByByteBudget(t *testing.T) {
	ctx := context.Background()
	// Each entry costs len(key)+len(value) = 1+10 bytes; budget fits two.
	m, err := NewMemory(100, 25, 0)
	if err != nil {
		t.Fatal(err)
	}

	val := []byte("0123456789")
	m.Set(ctx, "a", val, 0)
	m.Set(ctx, "b", val, 0)
	m.Set(ctx, "c", val, 0)

	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Error("a should have been evicted by the byte budget")
	}
	if m.Bytes() > 25 {
		t.Errorf("byte accounting over budget: %d", m.Bytes())
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", m.Len())
	}
}

func TestMemoryDropsOversizedValue(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(100, 10, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Set(ctx, "big", []byte("this value is larger than the whole budget"), 0); err != nil {
		t.Fatalf("oversize set should not error: %v", err)
	}
	if ok, _ := m.Has(ctx, "big"); ok {
		t.Error("oversized value should not have been stored")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(10, 0, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	m.now = func() time.Time { return now }

	m.Set(ctx, "a", []byte("1"), 0)            // default TTL (1m)
	m.Set(ctx, "b", []byte("2"), 10*time.Minute) // explicit TTL wins

	now = now.Add(5 * time.Minute)
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Error("a should have expired")
	}
	if _, ok, _ := m.Get(ctx, "b"); !ok {
		t.Error("b should still be alive under its explicit TTL")
	}

	now = now.Add(10 * time.Minute)
	if ok, _ := m.Has(ctx, "b"); ok {
		t.Error("b should have expired by now")
	}
}

func TestMemoryClearResetsAccounting(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(10, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		m.Set(ctx, fmt.Sprintf("k%d", i), []byte("value"), 0)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 || m.Bytes() != 0 {
		t.Errorf("clear left len=%d bytes=%d", m.Len(), m.Bytes())
	}
}

func TestMemoryReplaceDoesNotLeakBytes(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(10, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	m.Set(ctx, "a", []byte("0123456789"), 0)
	m.Set(ctx, "a", []byte("01234"), 0)
	want := int64(len("a") + len("01234"))
	if m.Bytes() != want {
		t.Errorf("bytes = %d, want %d", m.Bytes(), want)
	}
}
