// README: Per-tenant tunables resolved from defaults, storage, and overrides.
package settings

import "time"

type OrgSettings struct {
	OrgID             string    `json:"org_id"`
	EpsilonM          float64   `json:"epsilon_m"`
	CandidateRadiusKm float64   `json:"candidateRadiusKm"`
	DwellSeconds      int       `json:"dwellSeconds"`
	DailyEventCap     int       `json:"dailyEventCap"`
	AppliedAt         time.Time `json:"-"`
	ExpiresAt         time.Time `json:"-"`
}

// Override holds the admin/test partial settings; nil fields fall through
// to the stored row and then to process defaults.
type Override struct {
	EpsilonM          *float64 `json:"epsilon_m,omitempty"`
	CandidateRadiusKm *float64 `json:"candidate_radius_km,omitempty"`
	DwellSeconds      *int     `json:"dwell_seconds,omitempty"`
	DailyEventCap     *int     `json:"daily_event_cap,omitempty"`
}

func (o Override) apply(s *OrgSettings) {
	if o.EpsilonM != nil {
		s.EpsilonM = *o.EpsilonM
	}
	if o.CandidateRadiusKm != nil {
		s.CandidateRadiusKm = *o.CandidateRadiusKm
	}
	if o.DwellSeconds != nil {
		s.DwellSeconds = *o.DwellSeconds
	}
	if o.DailyEventCap != nil {
		s.DailyEventCap = *o.DailyEventCap
	}
}

type Defaults struct {
	EpsilonM          float64
	CandidateRadiusKm float64
	DwellSeconds      int
	DailyEventCap     int
}
