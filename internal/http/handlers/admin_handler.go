// README: Admin/test hooks: bulk-set geofences, overrides, full reset.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/cache"
	"fleettrack/internal/events"
	"fleettrack/internal/modules/aggregate"
	"fleettrack/internal/modules/geofence"
	"fleettrack/internal/modules/ingest"
	"fleettrack/internal/modules/settings"
)

type AdminHandler struct {
	geofences  *geofence.Store
	evaluator  *geofence.Evaluator
	settings   *settings.Service
	ingest     *ingest.Service
	aggregates *aggregate.Service
	recent     *events.Recorder
	meter      settings.Meter
	idemKeys   *cache.Map[string, time.Time]
}

func NewAdminHandler(store *geofence.Store, eval *geofence.Evaluator, st *settings.Service, ing *ingest.Service, agg *aggregate.Service, recent *events.Recorder, meter settings.Meter, idemKeys *cache.Map[string, time.Time]) *AdminHandler {
	return &AdminHandler{
		geofences:  store,
		evaluator:  eval,
		settings:   st,
		ingest:     ing,
		aggregates: agg,
		recent:     recent,
		meter:      meter,
		idemKeys:   idemKeys,
	}
}

type setGeofencesReq struct {
	OrgID     string              `json:"org_id"`
	Geofences []geofence.Geofence `json:"geofences"`
}

// SetGeofences replaces a tenant's geofence set wholesale.
func (h *AdminHandler) SetGeofences(c *gin.Context) {
	var req setGeofencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrgID == "" {
		writeError(c, http.StatusBadRequest, "missing org_id")
		return
	}
	if err := h.geofences.ReplaceOrg(req.OrgID, req.Geofences); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "count": len(req.Geofences)})
}

type setSettingsReq struct {
	OrgID    string            `json:"org_id"`
	Override settings.Override `json:"override"`
}

// SetSettings installs a per-tenant settings override.
func (h *AdminHandler) SetSettings(c *gin.Context) {
	var req setSettingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OrgID == "" {
		writeError(c, http.StatusBadRequest, "missing org_id")
		return
	}
	h.settings.SetOverride(req.OrgID, req.Override)
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}

// Reset drops all derived state: sequences, previous points, transition
// state, idempotency records, aggregates, overrides, quota counts, recent
// events. Redis-backed meters are shared across instances and keep their
// counts.
func (h *AdminHandler) Reset(c *gin.Context) {
	h.ingest.Reset()
	h.evaluator.Reset()
	h.aggregates.Reset()
	h.settings.Reset()
	h.recent.Reset()
	if r, ok := h.meter.(interface{ Reset() }); ok {
		r.Reset()
	}
	h.idemKeys.Clear()
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}
