// README: Postgres-backed geofence source; per-tenant wholesale loads.
package geofence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleettrack/internal/types"
)

type PostgresSource struct {
	db *pgxpool.Pool
}

func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: db}
}

const fenceColumns = `id, org_id, kind, active, center_lat, center_lng, radius_m, vertices`

// LoadAll fetches every tenant's geofences, grouped by org, for warming the
// store at boot. Polygon vertices are stored as a JSONB array of {lat,lng}.
func (s *PostgresSource) LoadAll(ctx context.Context) (map[string][]Geofence, error) {
	rows, err := s.db.Query(ctx, `SELECT `+fenceColumns+` FROM geofences`)
	if err != nil {
		return nil, err
	}
	fences, err := scanFences(rows)
	if err != nil {
		return nil, err
	}
	out := map[string][]Geofence{}
	for _, g := range fences {
		out[g.OrgID] = append(out[g.OrgID], g)
	}
	return out, nil
}

// LoadOrg fetches one tenant's geofences for a wholesale replace.
func (s *PostgresSource) LoadOrg(ctx context.Context, orgID string) ([]Geofence, error) {
	rows, err := s.db.Query(ctx, `SELECT `+fenceColumns+` FROM geofences WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, err
	}
	return scanFences(rows)
}

func scanFences(rows pgx.Rows) ([]Geofence, error) {
	defer rows.Close()
	var out []Geofence
	for rows.Next() {
		var (
			g     Geofence
			kind  string
			verts []byte
		)
		if err := rows.Scan(&g.ID, &g.OrgID, &kind, &g.Active, &g.Center.Lat, &g.Center.Lng, &g.RadiusM, &verts); err != nil {
			return nil, err
		}
		g.Kind = Kind(kind)
		if len(verts) > 0 {
			var vs []types.Point
			if err := json.Unmarshal(verts, &vs); err != nil {
				return nil, err
			}
			g.Vertices = vs
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
