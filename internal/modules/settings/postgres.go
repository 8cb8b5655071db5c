// README: Postgres-backed settings source.
package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresSource struct {
	db *pgxpool.Pool
}

func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: db}
}

// Load fetches the tenant's stored settings row. Missing rows and NULL
// columns fall through to defaults.
func (s *PostgresSource) Load(ctx context.Context, orgID string) (Override, error) {
	var ov Override
	err := s.db.QueryRow(ctx, `
		SELECT epsilon_m, candidate_radius_km, dwell_seconds, daily_event_cap
		FROM org_settings
		WHERE org_id = $1`, orgID,
	).Scan(&ov.EpsilonM, &ov.CandidateRadiusKm, &ov.DwellSeconds, &ov.DailyEventCap)
	if errors.Is(err, pgx.ErrNoRows) {
		return Override{}, nil
	}
	if err != nil {
		return Override{}, err
	}
	return ov, nil
}
