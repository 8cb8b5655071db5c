// README: Ingest endpoint: idempotency-key gate plus the batch pipeline.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/cache"
	"fleettrack/internal/metrics"
	"fleettrack/internal/modules/ingest"
)

const idempotencyHeader = "Idempotency-Key"

type IngestHandler struct {
	ingest       *ingest.Service
	metrics      *metrics.Metrics
	idemKeys     *cache.Map[string, time.Time]
	idemTTL      time.Duration
	batchTimeout time.Duration
}

func NewIngestHandler(svc *ingest.Service, m *metrics.Metrics, idemKeys *cache.Map[string, time.Time], idemTTL, batchTimeout time.Duration) *IngestHandler {
	return &IngestHandler{
		ingest:       svc,
		metrics:      m,
		idemKeys:     idemKeys,
		idemTTL:      idemTTL,
		batchTimeout: batchTimeout,
	}
}

type ingestResponse struct {
	OK bool `json:"ok"`
	ingest.BatchResult
	Duplicate bool `json:"duplicate,omitempty"`
}

// Ingest accepts either a bare array of points or {"points":[...]}.
func (h *IngestHandler) Ingest(c *gin.Context) {
	if h.metrics != nil {
		h.metrics.RequestsTotal.Inc()
	}

	key := c.GetHeader(idempotencyHeader)
	if key != "" {
		if exp, ok := h.idemKeys.Get(key); ok && time.Now().Before(exp) {
			// Whole-request replay: accepted but not re-processed.
			if h.metrics != nil {
				h.metrics.RequestReplays.Inc()
			}
			writeJSON(c, http.StatusOK, ingestResponse{
				OK:          true,
				BatchResult: ingest.BatchResult{Accepted: []ingest.AcceptedRef{}},
				Duplicate:   true,
			})
			return
		}
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable body")
		return
	}
	points, err := parsePoints(body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "malformed payload")
		return
	}
	// The key is consumed only once the request is accepted; a rejected
	// attempt can be retried under the same key.
	if key != "" {
		now := time.Now()
		h.idemKeys.PutAt(key, now.Add(h.idemTTL), now)
	}

	ctx := c.Request.Context()
	if h.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.batchTimeout)
		defer cancel()
	}

	res := h.ingest.ProcessBatch(ctx, points)
	writeJSON(c, http.StatusOK, ingestResponse{OK: true, BatchResult: res})
}

func parsePoints(body []byte) ([]ingest.DevicePoint, error) {
	var wrapped struct {
		Points []ingest.DevicePoint `json:"points"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Points != nil {
		return wrapped.Points, nil
	}
	var arr []ingest.DevicePoint
	if err := json.Unmarshal(body, &arr); err != nil {
		return nil, err
	}
	return arr, nil
}
