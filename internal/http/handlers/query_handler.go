// README: Read-only query endpoints for dashboards.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/events"
	"fleettrack/internal/modules/aggregate"
	"fleettrack/internal/modules/settings"
)

type QueryHandler struct {
	settings   *settings.Service
	aggregates *aggregate.Service
	recent     *events.Recorder
	defaultOrg string
}

func NewQueryHandler(st *settings.Service, agg *aggregate.Service, recent *events.Recorder, defaultOrg string) *QueryHandler {
	return &QueryHandler{settings: st, aggregates: agg, recent: recent, defaultOrg: defaultOrg}
}

// Settings returns the resolved per-tenant tunables.
func (h *QueryHandler) Settings(c *gin.Context) {
	orgID := orgIDQuery(c, h.defaultOrg)
	s := h.settings.Resolve(c.Request.Context(), orgID, time.Now())
	writeJSON(c, http.StatusOK, gin.H{
		"org_id":            s.OrgID,
		"epsilon_m":         s.EpsilonM,
		"candidateRadiusKm": s.CandidateRadiusKm,
		"dwellSeconds":      s.DwellSeconds,
		"dailyEventCap":     s.DailyEventCap,
		"appliedAtSec":      s.AppliedAt.Unix(),
		"expireAtSec":       s.ExpiresAt.Unix(),
	})
}

// MiniAgg returns a device's daily aggregate; day defaults to the most
// recent day with data.
func (h *QueryHandler) MiniAgg(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		writeError(c, http.StatusBadRequest, "missing device_id")
		return
	}
	rec, day, ok := h.aggregates.Lookup(deviceID, c.Query("day"))
	if !ok {
		writeError(c, http.StatusNotFound, "no aggregate for device")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"device_id":       deviceID,
		"day":             day,
		"km_traveled":     rec.KmTraveled,
		"driving_minutes": rec.DrivingMinutes,
		"idle_minutes":    rec.IdleMinutes,
		"updated_at":      rec.UpdatedAt.Unix(),
	})
}

// RecentEvents returns the newest committed transitions.
func (h *QueryHandler) RecentEvents(c *gin.Context) {
	n := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"events": h.recent.Recent(n)})
}
