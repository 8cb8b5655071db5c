// README: Batch pipeline: validate, sequence, filter, aggregate, evaluate.
package ingest

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"fleettrack/internal/metrics"
	"fleettrack/internal/modules/aggregate"
	"fleettrack/internal/modules/geofence"
	"fleettrack/internal/types"
)

type Service struct {
	sequencer  *Sequencer
	filter     *Filter
	aggregator *aggregate.Service
	evaluator  *geofence.Evaluator
	metrics    *metrics.Metrics
	validate   *validator.Validate
	defaultOrg string
}

func NewService(seq *Sequencer, filter *Filter, agg *aggregate.Service, eval *geofence.Evaluator, m *metrics.Metrics, defaultOrg string) *Service {
	if defaultOrg == "" {
		defaultOrg = "default"
	}
	return &Service{
		sequencer:  seq,
		filter:     filter,
		aggregator: agg,
		evaluator:  eval,
		metrics:    m,
		validate:   validator.New(),
		defaultOrg: defaultOrg,
	}
}

type BatchResult struct {
	AcceptedCount int           `json:"accepted_count"`
	Accepted      []AcceptedRef `json:"accepted"`
	Transitions   int           `json:"geofence_transitions"`
}

// ProcessBatch runs every point through the pipeline. A malformed point is
// skipped, the rest of the batch continues; drops are metrics, not errors.
func (s *Service) ProcessBatch(ctx context.Context, points []DevicePoint) BatchResult {
	res := BatchResult{Accepted: []AcceptedRef{}}
	for _, p := range points {
		if ctx.Err() != nil {
			break
		}
		if err := s.validate.Struct(p); err != nil {
			s.drop(DropInvalid)
			continue
		}
		// Cache recency runs on wall clock; pipeline semantics run on the
		// point's own timestamp.
		now := time.Now()
		at := p.Time()
		if !s.sequencer.Accept(p.DeviceID, p.Seq, now) {
			s.drop(DropStale)
			continue
		}
		derived, reason := s.filter.Check(p, now)
		if reason != "" {
			s.drop(reason)
			continue
		}

		if derived.HasPrev {
			s.aggregator.Add(p.DeviceID, at, derived.Dt, derived.DistanceKm, derived.InstSpeedMPS)
		}

		orgID := p.OrgID
		if orgID == "" {
			orgID = s.defaultOrg
		}
		transitions := s.evaluator.Evaluate(ctx, orgID, p.DeviceID, types.Point{Lat: p.Lat, Lng: p.Lng}, at)

		res.AcceptedCount++
		res.Accepted = append(res.Accepted, AcceptedRef{DeviceID: p.DeviceID, Seq: p.Seq})
		res.Transitions += len(transitions)
		if s.metrics != nil {
			s.metrics.PointsAccepted.Inc()
		}
	}
	return res
}

// Reset clears sequencer and filter state (test hook).
func (s *Service) Reset() {
	s.sequencer.Reset()
	s.filter.Reset()
}

func (s *Service) drop(reason DropReason) {
	if s.metrics != nil {
		s.metrics.PointsDropped.WithLabelValues(string(reason)).Inc()
	}
}
