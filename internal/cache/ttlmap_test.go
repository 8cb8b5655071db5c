package cache

import (
	"testing"
	"time"
)

func TestMapSweepTTL(t *testing.T) {
	m := NewMap[string, int]("test")
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	m.PutAt("old", 1, base.Add(-2*time.Hour))
	m.PutAt("fresh", 2, base.Add(-time.Minute))

	expired, trimmed := m.Sweep(base, time.Hour, 0)
	if expired != 1 || trimmed != 0 {
		t.Fatalf("expired=%d trimmed=%d, want 1/0", expired, trimmed)
	}
	if _, ok := m.Get("old"); ok {
		t.Fatal("old entry survived TTL sweep")
	}
	if _, ok := m.Get("fresh"); !ok {
		t.Fatal("fresh entry was evicted")
	}
}

func TestMapSweepSizeTrim(t *testing.T) {
	m := NewMap[int, int]("test")
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// Oldest entries must go first.
	for i := 0; i < 10; i++ {
		m.PutAt(i, i, base.Add(time.Duration(i)*time.Second))
	}
	expired, trimmed := m.Sweep(base.Add(time.Minute), 0, 4)
	if expired != 0 || trimmed != 6 {
		t.Fatalf("expired=%d trimmed=%d, want 0/6", expired, trimmed)
	}
	for i := 0; i < 6; i++ {
		if _, ok := m.Get(i); ok {
			t.Fatalf("entry %d should have been trimmed", i)
		}
	}
	for i := 6; i < 10; i++ {
		if _, ok := m.Get(i); !ok {
			t.Fatalf("entry %d should have survived", i)
		}
	}
}

func TestMapMutate(t *testing.T) {
	m := NewMap[string, int64]("counter")
	now := time.Now()
	for i := 0; i < 3; i++ {
		m.Mutate("k", now, func(v int64, _ bool) int64 { return v + 1 })
	}
	if v, _ := m.Get("k"); v != 3 {
		t.Fatalf("got %d, want 3", v)
	}
}

func TestMapUpdateIf(t *testing.T) {
	m := NewMap[string, int]("test")
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	if !m.UpdateIf("k", base, func(v int, ok bool) (int, bool) { return 1, true }) {
		t.Fatal("initial store rejected")
	}
	// A rejected update leaves the last-seen stamp where it was.
	if m.UpdateIf("k", base.Add(2*time.Hour), func(v int, ok bool) (int, bool) { return v, false }) {
		t.Fatal("rejected update reported stored")
	}
	if expired, _ := m.Sweep(base.Add(90*time.Minute), time.Hour, 0); expired != 1 {
		t.Fatalf("expired = %d, want 1 (rejected update refreshed last-seen)", expired)
	}
}

func TestSweeperRegisteredTargets(t *testing.T) {
	s := NewSweeper(nil)
	m := NewMap[string, int]("swept")
	base := time.Now()
	m.PutAt("stale", 1, base.Add(-time.Hour))
	s.Register(m, time.Minute, 0)
	s.SweepOnce(base)
	if m.Len() != 0 {
		t.Fatalf("len=%d, want 0", m.Len())
	}
}
