// README: TTL/size-bounded in-memory maps shared by every stateful module.
package cache

import (
	"sort"
	"sync"
	"time"
)

type entry[V any] struct {
	val      V
	lastSeen time.Time
}

// Map is a mutex-guarded map whose entries carry a last-seen timestamp.
// The sweeper expires entries past a TTL and then trims oldest-first down
// to a maximum size, which is what bounds memory under device churn.
type Map[K comparable, V any] struct {
	mu      sync.Mutex
	name    string
	entries map[K]*entry[V]
}

func NewMap[K comparable, V any](name string) *Map[K, V] {
	return &Map[K, V]{name: name, entries: map[K]*entry[V]{}}
}

func (m *Map[K, V]) Name() string { return m.name }

func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Map[K, V]) Get(k K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[k]; ok {
		return e.val, true
	}
	var zero V
	return zero, false
}

func (m *Map[K, V]) Put(k K, v V) { m.PutAt(k, v, time.Now()) }

func (m *Map[K, V]) PutAt(k K, v V, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[k] = &entry[V]{val: v, lastSeen: now}
}

// Mutate applies fn to the current value (zero value when absent) under the
// map lock and stores the result. Used for counters that must not race.
func (m *Map[K, V]) Mutate(k K, now time.Time, fn func(v V, ok bool) V) V {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	var cur V
	if ok {
		cur = e.val
	}
	next := fn(cur, ok)
	m.entries[k] = &entry[V]{val: next, lastSeen: now}
	return next
}

// UpdateIf is Mutate for callers that sometimes reject: fn reports whether
// to store. A rejected update leaves the entry and its last-seen stamp
// untouched, so rejected traffic cannot keep an entry alive.
func (m *Map[K, V]) UpdateIf(k K, now time.Time, fn func(v V, ok bool) (V, bool)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	var cur V
	if ok {
		cur = e.val
	}
	next, store := fn(cur, ok)
	if store {
		m.entries[k] = &entry[V]{val: next, lastSeen: now}
	}
	return store
}

func (m *Map[K, V]) Delete(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
}

func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[K]*entry[V]{}
}

// Range calls fn for each entry. fn must not call back into the map.
func (m *Map[K, V]) Range(fn func(k K, v V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		fn(k, e.val)
	}
}

// Sweep removes entries whose lastSeen is older than ttl, then trims
// oldest-first until at most maxSize entries remain. maxSize <= 0 means
// unbounded; ttl <= 0 skips the TTL pass.
func (m *Map[K, V]) Sweep(now time.Time, ttl time.Duration, maxSize int) (expired, trimmed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl > 0 {
		cutoff := now.Add(-ttl)
		for k, e := range m.entries {
			if e.lastSeen.Before(cutoff) {
				delete(m.entries, k)
				expired++
			}
		}
	}

	if maxSize > 0 && len(m.entries) > maxSize {
		type aged struct {
			k    K
			seen time.Time
		}
		order := make([]aged, 0, len(m.entries))
		for k, e := range m.entries {
			order = append(order, aged{k: k, seen: e.lastSeen})
		}
		sort.Slice(order, func(i, j int) bool { return order[i].seen.Before(order[j].seen) })
		for _, a := range order[:len(m.entries)-maxSize] {
			delete(m.entries, a.k)
			trimmed++
		}
	}
	return expired, trimmed
}
