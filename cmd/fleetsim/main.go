// README: Synthetic fleet simulator; streams signed GPS batches at the API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"fleettrack/internal/http/middleware"
)

type Config struct {
	BaseURL   string
	Secret    string
	OrgID     string
	Devices   int
	BatchSize int
	Interval  time.Duration
	Duration  time.Duration
	Lat       float64
	Lng       float64
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("FLEET_SIM_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.Secret, "secret", envOrDefault("FLEET_HMAC_SECRET", ""), "HMAC secret, empty to skip signing")
	flag.StringVar(&cfg.OrgID, "org", envOrDefault("FLEET_SIM_ORG", "default"), "Tenant org_id")
	flag.IntVar(&cfg.Devices, "devices", 20, "Simulated devices")
	flag.IntVar(&cfg.BatchSize, "batch", 10, "Points per batch")
	flag.DurationVar(&cfg.Interval, "interval", time.Second, "Delay between batches")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Total run time")
	flag.Float64Var(&cfg.Lat, "lat", 25.0330, "Fleet center latitude")
	flag.Float64Var(&cfg.Lng, "lng", 121.5654, "Fleet center longitude")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

type point struct {
	DeviceID string  `json:"device_id"`
	OrgID    string  `json:"org_id"`
	Seq      int64   `json:"seq"`
	TS       int64   `json:"ts"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

type device struct {
	id      string
	seq     int64
	lat     float64
	lng     float64
	bearing float64
}

func main() {
	cfg := loadConfig()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	devices := make([]*device, cfg.Devices)
	for i := range devices {
		devices[i] = &device{
			id:      fmt.Sprintf("sim-%04d", i),
			lat:     cfg.Lat + rng.Float64()*0.05 - 0.025,
			lng:     cfg.Lng + rng.Float64()*0.05 - 0.025,
			bearing: rng.Float64() * 2 * math.Pi,
		}
	}

	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(cfg.Duration)
	sent, failed := 0, 0

	for time.Now().Before(deadline) {
		batch := make([]point, 0, cfg.BatchSize)
		for i := 0; i < cfg.BatchSize; i++ {
			d := devices[rng.Intn(len(devices))]
			d.step(rng)
			batch = append(batch, point{
				DeviceID: d.id,
				OrgID:    cfg.OrgID,
				Seq:      d.seq,
				TS:       time.Now().Unix(),
				Lat:      d.lat,
				Lng:      d.lng,
			})
		}
		if err := post(client, cfg, batch); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "batch failed: %v\n", err)
		} else {
			sent++
		}
		time.Sleep(cfg.Interval)
	}
	fmt.Printf("batches sent=%d failed=%d\n", sent, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// step advances a device ~10-20 m in a slowly drifting direction.
func (d *device) step(rng *rand.Rand) {
	d.seq++
	d.bearing += rng.Float64()*0.4 - 0.2
	distDeg := (10 + rng.Float64()*10) / 111000.0
	d.lat += distDeg * math.Cos(d.bearing)
	d.lng += distDeg * math.Sin(d.bearing) / math.Cos(d.lat*math.Pi/180)
}

func post(client *http.Client, cfg Config, batch []point) error {
	body, err := json.Marshal(map[string]any{"points": batch})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, cfg.BaseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Secret != "" {
		req.Header.Set("X-Signature", middleware.Sign(cfg.Secret, body))
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
