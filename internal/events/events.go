// README: Geofence transition events and downstream publishers.
package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type TransitionType string

const (
	TransitionEnter TransitionType = "enter"
	TransitionExit  TransitionType = "exit"
)

// Transition is a committed enter/exit event. Events are idempotent and
// replayable; delivery to consumers is at-least-once.
type Transition struct {
	ID         string         `json:"id"`
	OrgID      string         `json:"org_id"`
	DeviceID   string         `json:"device_id"`
	GeofenceID string         `json:"geofence_id"`
	Type       TransitionType `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Lat        float64        `json:"lat"`
	Lng        float64        `json:"lng"`
}

// Publisher hands committed transitions to the downstream alerting/webhook
// system. Publish failures are logged, never surfaced to the ingest caller.
type Publisher interface {
	Publish(ctx context.Context, t Transition) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Transition) error { return nil }

// RedisPublisher fans transitions out on a pub/sub channel.
type RedisPublisher struct {
	redis   *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{redis: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, t Transition) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, p.channel, payload).Err()
}

// MultiPublisher sends to every publisher; the first error wins but all
// publishers still get the event.
type MultiPublisher []Publisher

func (mp MultiPublisher) Publish(ctx context.Context, t Transition) error {
	var first error
	for _, p := range mp {
		if err := p.Publish(ctx, t); err != nil {
			log.Printf("events: publish %s/%s: %v", t.DeviceID, t.GeofenceID, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Recorder keeps the most recent transitions in a ring buffer for the
// read-only dashboard boundary.
type Recorder struct {
	mu   sync.Mutex
	buf  []Transition
	next int
	size int
}

func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Recorder{buf: make([]Transition, capacity)}
}

func (r *Recorder) Publish(_ context.Context, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = t
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	return nil
}

// Recent returns up to n transitions, newest first.
func (r *Recorder) Recent(n int) []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]Transition, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Reset clears the buffer (test hook).
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next, r.size = 0, 0
}
