// README: Ingest wire model and drop taxonomy.
package ingest

import "time"

// DevicePoint is one GPS ping as received on the wire. ts is epoch seconds.
type DevicePoint struct {
	DeviceID string   `json:"device_id" validate:"required"`
	OrgID    string   `json:"org_id"`
	Seq      int64    `json:"seq" validate:"gte=0"`
	TS       int64    `json:"ts" validate:"gt=0"`
	Lat      float64  `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64  `json:"lng" validate:"gte=-180,lte=180"`
	Speed    *float64 `json:"speed,omitempty"`
	Heading  *float64 `json:"heading,omitempty"`
}

func (p DevicePoint) Time() time.Time { return time.Unix(p.TS, 0).UTC() }

// DropReason classifies why a point was not accepted. These are expected
// steady-state outcomes, not errors; the caller still gets a 200.
type DropReason string

const (
	DropInvalid  DropReason = "invalid"
	DropStale    DropReason = "stale"
	DropJitter   DropReason = "jitter"
	DropTeleport DropReason = "teleport"
)

// AcceptedRef identifies an accepted point in the batch response.
type AcceptedRef struct {
	DeviceID string `json:"device_id"`
	Seq      int64  `json:"seq"`
}
