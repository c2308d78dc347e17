package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "DISPATCH_CONFIG"

// Config holds the settings required by the server and dbtool.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Push     PushConfig     `yaml:"push"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Blast    BlastConfig    `yaml:"blast"`
	Route    RouteConfig    `yaml:"route"`
}

// DatabaseConfig selects the SQL driver and connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RedisConfig points at the ping ledger. An empty address keeps the ledger in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PushConfig wires the outbound push webhook.
type PushConfig struct {
	WebhookURL string `yaml:"webhookUrl"`
	APIKey     string `yaml:"apiKey"`
	BatchSize  int    `yaml:"batchSize"`
}

// GeocodeConfig configures the OpenRouteService geocoder used before route planning.
type GeocodeConfig struct {
	ORSAPIKey     string  `yaml:"orsApiKey"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
}

// AlertsConfig drives the host-side evaluation tick.
type AlertsConfig struct {
	Tick          time.Duration `yaml:"tick"`
	SupervisorIDs []string      `yaml:"supervisorIds"`
}

type BlastConfig struct {
	DefaultTTL time.Duration `yaml:"defaultTtl"`
	SweepEvery time.Duration `yaml:"sweepEvery"`
}

// RouteConfig holds route optimizer defaults.
type RouteConfig struct {
	AvgSpeedMph    float64 `yaml:"avgSpeedMph"`
	MinutesPerStop float64 `yaml:"minutesPerStop"`
	StartTime      string  `yaml:"startTime"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config: cannot read file, using defaults")
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config: cannot parse file, using defaults")
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.fillZeroes()

	return cfg
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) applyEnvOverrides() {
	c.Database.Driver = Get("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = Get("DATABASE_URL", c.Database.DSN)
	c.Server.Port = Get("PORT", c.Server.Port)
	c.Log.Level = Get("LOG_LEVEL", c.Log.Level)
	c.Redis.Addr = Get("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = Get("REDIS_PASSWORD", c.Redis.Password)
	c.Push.WebhookURL = Get("PUSH_WEBHOOK_URL", c.Push.WebhookURL)
	c.Push.APIKey = Get("PUSH_API_KEY", c.Push.APIKey)
	c.Geocode.ORSAPIKey = Get("ORS_API_KEY", c.Geocode.ORSAPIKey)

	if v := os.Getenv("ALERT_TICK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Alerts.Tick = d
		}
	}
	if v := os.Getenv("SUPERVISOR_IDS"); v != "" {
		c.Alerts.SupervisorIDs = splitList(v)
	}
	if v := os.Getenv("GEOCODE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Geocode.RatePerSecond = f
		}
	}
}

// fillZeroes restores defaults for fields a partial YAML file left empty.
func (c *Config) fillZeroes() {
	d := defaultConfig()
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = d.Database.DSN
	}
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
	if c.Push.BatchSize <= 0 {
		c.Push.BatchSize = d.Push.BatchSize
	}
	if c.Geocode.RatePerSecond <= 0 {
		c.Geocode.RatePerSecond = d.Geocode.RatePerSecond
	}
	if c.Alerts.Tick <= 0 {
		c.Alerts.Tick = d.Alerts.Tick
	}
	if c.Blast.DefaultTTL <= 0 {
		c.Blast.DefaultTTL = d.Blast.DefaultTTL
	}
	if c.Blast.SweepEvery <= 0 {
		c.Blast.SweepEvery = d.Blast.SweepEvery
	}
	if c.Route.AvgSpeedMph <= 0 {
		c.Route.AvgSpeedMph = d.Route.AvgSpeedMph
	}
	// Zero dwell is a valid setting; absent keys keep the default from defaultConfig.
	if c.Route.MinutesPerStop < 0 {
		c.Route.MinutesPerStop = d.Route.MinutesPerStop
	}
	if c.Route.StartTime == "" {
		c.Route.StartTime = d.Route.StartTime
	}
}

func splitList(v string) []string {
	out := []string{}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/dispatch.db"},
		Server:   ServerConfig{Port: "8080"},
		Log:      LogConfig{Level: "info"},
		Push:     PushConfig{BatchSize: 50},
		Geocode:  GeocodeConfig{RatePerSecond: 1},
		Alerts:   AlertsConfig{Tick: 60 * time.Second},
		Blast:    BlastConfig{DefaultTTL: 30 * time.Minute, SweepEvery: time.Minute},
		Route:    RouteConfig{AvgSpeedMph: 30, MinutesPerStop: 10, StartTime: "08:00"},
	}
}
