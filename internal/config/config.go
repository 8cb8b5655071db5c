// README: Config loader with env defaults for HTTP, storage, and the engine.
package config

import (
	"os"
	"strconv"
	"time"
)

type FilterConfig struct {
	JitterMeters  float64
	JitterSeconds float64
	MaxSpeedMPS   float64
	EMAAlpha      float64
}

type SettingsConfig struct {
	TTL               time.Duration
	EpsilonM          float64
	CandidateRadiusKm float64
	DwellSeconds      int
	DailyEventCap     int
}

type SweepConfig struct {
	Interval   time.Duration
	TTL        time.Duration
	MaxEntries int
}

type SnapshotConfig struct {
	Path       string
	Interval   time.Duration
	MinSpacing time.Duration
	MaxBytes   int64
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr         string
		EventChannel string
	}
	Ingest struct {
		HMACSecret     string
		IdempotencyTTL time.Duration
		BatchTimeout   time.Duration
		DefaultOrg     string
	}
	Filter    FilterConfig
	Aggregate struct {
		DrivingThresholdMPS float64
	}
	Index struct {
		CellSizeKm    float64
		MaxCandidates int
	}
	Geofence struct {
		SeedPath string
	}
	Settings SettingsConfig
	Sweep    SweepConfig
	Snapshot SnapshotConfig
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("FLEET_HTTP_ADDR", ":8080")
	cfg.DB.DSN = envOrDefault("FLEET_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("FLEET_REDIS_ADDR", "")
	cfg.Redis.EventChannel = envOrDefault("FLEET_REDIS_EVENT_CHANNEL", "geofence_events")

	cfg.Ingest.HMACSecret = envOrDefault("FLEET_HMAC_SECRET", "")
	cfg.Ingest.IdempotencyTTL = envOrDefaultDuration("FLEET_IDEMPOTENCY_TTL", 10*time.Minute)
	cfg.Ingest.BatchTimeout = envOrDefaultDuration("FLEET_INGEST_TIMEOUT", 0)
	cfg.Ingest.DefaultOrg = envOrDefault("FLEET_DEFAULT_ORG", "default")

	cfg.Filter.JitterMeters = envOrDefaultFloat("FLEET_JITTER_METERS", 8.0)
	cfg.Filter.JitterSeconds = envOrDefaultFloat("FLEET_JITTER_SECONDS", 3.0)
	cfg.Filter.MaxSpeedMPS = envOrDefaultFloat("FLEET_MAX_SPEED_MPS", 70.0)
	cfg.Filter.EMAAlpha = envOrDefaultFloat("FLEET_EMA_ALPHA", 0.3)

	cfg.Aggregate.DrivingThresholdMPS = envOrDefaultFloat("FLEET_DRIVING_THRESHOLD_MPS", 2.0)

	cfg.Index.CellSizeKm = envOrDefaultFloat("FLEET_INDEX_CELL_KM", 2.0)
	cfg.Index.MaxCandidates = envOrDefaultInt("FLEET_MAX_CANDIDATES", 64)
	cfg.Geofence.SeedPath = envOrDefault("FLEET_GEOFENCE_SEED", "")

	cfg.Settings.TTL = envOrDefaultDuration("FLEET_SETTINGS_TTL", 60*time.Second)
	cfg.Settings.EpsilonM = envOrDefaultFloat("FLEET_EPSILON_M", 25.0)
	cfg.Settings.CandidateRadiusKm = envOrDefaultFloat("FLEET_CANDIDATE_RADIUS_KM", 5.0)
	cfg.Settings.DwellSeconds = envOrDefaultInt("FLEET_DWELL_SECONDS", 0)
	cfg.Settings.DailyEventCap = envOrDefaultInt("FLEET_DAILY_EVENT_CAP", 0)

	cfg.Sweep.Interval = envOrDefaultDuration("FLEET_SWEEP_INTERVAL", 30*time.Second)
	cfg.Sweep.TTL = envOrDefaultDuration("FLEET_CACHE_TTL", 6*time.Hour)
	cfg.Sweep.MaxEntries = envOrDefaultInt("FLEET_CACHE_MAX_ENTRIES", 50000)

	cfg.Snapshot.Path = envOrDefault("FLEET_SNAPSHOT_PATH", "")
	cfg.Snapshot.Interval = envOrDefaultDuration("FLEET_SNAPSHOT_INTERVAL", 15*time.Second)
	cfg.Snapshot.MinSpacing = envOrDefaultDuration("FLEET_SNAPSHOT_MIN_SPACING", 5*time.Second)
	cfg.Snapshot.MaxBytes = int64(envOrDefaultInt("FLEET_SNAPSHOT_MAX_BYTES", 16<<20))

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
