package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8420"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/attendd.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// BackendURL is the facility-management API the agent reports to.
	BackendURL string `env:"BACKEND_URL,required"`
	// Email seeds the durable session store on first run. Later runs
	// read the stored identity and ignore this value.
	Email string `env:"EMAIL"`

	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	// ViolationPolicy is "sticky" (indicator stays on Violation for the
	// session) or "reentry" (indicator may return to Inside while the
	// violation latch stays set).
	ViolationPolicy string `env:"VIOLATION_POLICY" envDefault:"sticky"`

	// Location source: an MQTT GPS bridge, or fixed coordinates for
	// kiosk installs. Exactly one must be configured.
	MQTTBroker   string        `env:"MQTT_BROKER"`
	MQTTTopic    string        `env:"MQTT_TOPIC" envDefault:"attendd/location"`
	SampleMaxAge time.Duration `env:"SAMPLE_MAX_AGE" envDefault:"30s"`
	FixedCoords  bool          `env:"FIXED_COORDS"`
	FixedLat     float64       `env:"FIXED_LAT"`
	FixedLon     float64       `env:"FIXED_LON"`

	// RedisURL enables the live-tracking mirror and its health check.
	RedisURL string `env:"REDIS_URL"`

	// APITokenHash is a bcrypt hash; when set, mutating control
	// endpoints require the matching bearer token.
	APITokenHash string `env:"API_TOKEN_HASH"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "ATTENDD_"})
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.MQTTBroker == "" && !cfg.FixedCoords {
		return nil, fmt.Errorf("no location source: set ATTENDD_MQTT_BROKER or ATTENDD_FIXED_COORDS with ATTENDD_FIXED_LAT/LON")
	}
	if cfg.ViolationPolicy != "sticky" && cfg.ViolationPolicy != "reentry" {
		return nil, fmt.Errorf("invalid ATTENDD_VIOLATION_POLICY %q: want sticky or reentry", cfg.ViolationPolicy)
	}
	return &cfg, nil
}
