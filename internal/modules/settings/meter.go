// README: Daily event quota meter; in-memory by default, Redis when shared.
package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleettrack/internal/cache"
)

// Meter enforces the per-tenant daily emission cap. Allow reserves one
// emission slot for (org, day) and reports whether it fit under cap.
// cap <= 0 means unlimited.
type Meter interface {
	Allow(ctx context.Context, orgID, day string, cap int) (bool, error)
}

type meterKey struct {
	OrgID string
	Day   string
}

// MemoryMeter is the single-process default.
type MemoryMeter struct {
	counts *cache.Map[meterKey, int64]
}

func NewMemoryMeter() *MemoryMeter {
	return &MemoryMeter{counts: cache.NewMap[meterKey, int64]("quota_meter")}
}

func (m *MemoryMeter) Cache() *cache.Map[meterKey, int64] { return m.counts }

func (m *MemoryMeter) Allow(_ context.Context, orgID, day string, cap int) (bool, error) {
	k := meterKey{OrgID: orgID, Day: day}
	allowed := true
	m.counts.Mutate(k, time.Now(), func(used int64, _ bool) int64 {
		if cap > 0 && used >= int64(cap) {
			allowed = false
			return used
		}
		return used + 1
	})
	return allowed, nil
}

// Used reports the consumed quota for a tenant-day (test hook).
func (m *MemoryMeter) Used(orgID, day string) int64 {
	v, _ := m.counts.Get(meterKey{OrgID: orgID, Day: day})
	return v
}

func (m *MemoryMeter) Reset() { m.counts.Clear() }

// RedisMeter shares the daily counter across instances. Keys are
// quota:{org}:{day} with a two-day expiry so stale days clean themselves up.
type RedisMeter struct {
	redis *redis.Client
}

func NewRedisMeter(client *redis.Client) *RedisMeter {
	return &RedisMeter{redis: client}
}

func (m *RedisMeter) Allow(ctx context.Context, orgID, day string, cap int) (bool, error) {
	key := fmt.Sprintf("quota:%s:%s", orgID, day)
	used, err := m.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if used == 1 {
		m.redis.Expire(ctx, key, 48*time.Hour)
	}
	if cap > 0 && used > int64(cap) {
		// Give the reserved slot back so used reflects emissions only.
		m.redis.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}
