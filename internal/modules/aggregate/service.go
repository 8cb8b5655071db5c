// README: Streaming per-device-per-day aggregates (distance, driving, idle).
package aggregate

import (
	"time"

	"fleettrack/internal/cache"
	"fleettrack/internal/metrics"
)

type DayKey struct {
	DeviceID string
	Day      string // UTC calendar day, "2006-01-02"
}

type Record struct {
	KmTraveled     float64   `json:"km_traveled"`
	DrivingMinutes float64   `json:"driving_minutes"`
	IdleMinutes    float64   `json:"idle_minutes"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Service struct {
	records      *cache.Map[DayKey, Record]
	thresholdMPS float64
	metrics      *metrics.Metrics
}

func NewService(drivingThresholdMPS float64, m *metrics.Metrics) *Service {
	return &Service{
		records:      cache.NewMap[DayKey, Record]("miniagg"),
		thresholdMPS: drivingThresholdMPS,
		metrics:      m,
	}
}

func (s *Service) Cache() *cache.Map[DayKey, Record] { return s.records }

// Add folds one consecutive accepted-point pair into the day of the second
// point. Pairs with negative dt are skipped so out-of-order arrivals never
// double count; no retroactive correction is done for late points.
func (s *Service) Add(deviceID string, at time.Time, dt time.Duration, distanceKm, instSpeedMPS float64) {
	if dt < 0 {
		return
	}
	key := DayKey{DeviceID: deviceID, Day: at.UTC().Format("2006-01-02")}
	minutes := dt.Minutes()
	s.records.Mutate(key, at, func(rec Record, _ bool) Record {
		rec.KmTraveled += distanceKm
		if instSpeedMPS >= s.thresholdMPS {
			rec.DrivingMinutes += minutes
		} else {
			rec.IdleMinutes += minutes
		}
		rec.UpdatedAt = at
		return rec
	})
	if s.metrics != nil {
		s.metrics.MiniAggUpdatedAt.Set(float64(at.Unix()))
	}
}

// Lookup returns the record for a device and day. An empty day selects the
// most recent day with data for that device.
func (s *Service) Lookup(deviceID, day string) (Record, string, bool) {
	if day != "" {
		rec, ok := s.records.Get(DayKey{DeviceID: deviceID, Day: day})
		return rec, day, ok
	}
	var (
		best    Record
		bestDay string
		found   bool
	)
	s.records.Range(func(k DayKey, v Record) {
		if k.DeviceID != deviceID {
			return
		}
		if !found || k.Day > bestDay {
			best, bestDay, found = v, k.Day, true
		}
	})
	return best, bestDay, found
}

// Reset drops all aggregates (test hook).
func (s *Service) Reset() { s.records.Clear() }
