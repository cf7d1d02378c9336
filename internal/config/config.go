package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the explicit configuration passed to every component. There
// is no package-level mutable state; main constructs one of these and
// hands it down.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Airtable struct {
		Token             string `yaml:"token"`
		BaseID            string `yaml:"base_id"`
		TimeslotsTable    string `yaml:"timeslots_table"`
		ServicesTable     string `yaml:"services_table"`
		BookingsTable     string `yaml:"bookings_table"`
		RestaurantsTable  string `yaml:"restaurants_table"`
		CacheTTLSeconds   int    `yaml:"cache_ttl_seconds"`
	} `yaml:"airtable"`

	Restaurant struct {
		Slug     string `yaml:"slug"`
		Timezone string `yaml:"timezone"`
		// Views maps a public slug to the Airtable view backing its
		// timeslot listing.
		Views map[string]string `yaml:"views"`
	} `yaml:"restaurant"`

	Booking struct {
		MinPartySize int `yaml:"min_party_size"`
		MaxPartySize int `yaml:"max_party_size"`
		// ServiceMode switches capacity accounting from per-slot to
		// per-service (midi/soir) records.
		ServiceMode       bool `yaml:"service_mode"`
		ServiceBucketHour int  `yaml:"service_bucket_hour"`
	} `yaml:"booking"`

	Outbox struct {
		Path                 string `yaml:"path"`
		SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
		StaleAfterSeconds    int    `yaml:"stale_after_seconds"`
	} `yaml:"outbox"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Notify struct {
		TelegramToken  string `yaml:"telegram_token"`
		TelegramChatID int64  `yaml:"telegram_chat_id"`
	} `yaml:"notify"`
}

// Load reads the YAML config, expanding ${ENV_VAR} placeholders, and
// applies defaults. A missing file is not an error when the path is
// empty; defaults plus environment placeholders still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		data = nil
	}

	if len(data) > 0 {
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Airtable.Token == "" {
		c.Airtable.Token = os.Getenv("AIRTABLE_TOKEN")
	}
	if c.Airtable.BaseID == "" {
		c.Airtable.BaseID = os.Getenv("AIRTABLE_BASE_ID")
	}
	if c.Airtable.TimeslotsTable == "" {
		c.Airtable.TimeslotsTable = envOr("AIRTABLE_TABLE_TIMESLOTS", "Timeslots_API")
	}
	if c.Airtable.ServicesTable == "" {
		c.Airtable.ServicesTable = envOr("AIRTABLE_TABLE_SERVICES", "Services_API")
	}
	if c.Airtable.BookingsTable == "" {
		c.Airtable.BookingsTable = envOr("AIRTABLE_TABLE_BOOKINGS", "Bookings_API")
	}
	if c.Airtable.RestaurantsTable == "" {
		c.Airtable.RestaurantsTable = envOr("AIRTABLE_TABLE_RESTAURANTS", "Restaurants_API")
	}
	if c.Restaurant.Slug == "" {
		c.Restaurant.Slug = os.Getenv("RESTAURANT_SLUG")
	}
	if c.Restaurant.Timezone == "" {
		c.Restaurant.Timezone = envOr("APP_TIMEZONE", "Europe/Brussels")
	}
	if c.Booking.MinPartySize <= 0 {
		c.Booking.MinPartySize = 1
	}
	if c.Booking.MaxPartySize <= 0 {
		c.Booking.MaxPartySize = 12
	}
	if c.Booking.ServiceBucketHour <= 0 {
		c.Booking.ServiceBucketHour = 17
	}
	if c.Outbox.Path == "" {
		c.Outbox.Path = "data/outbox.db"
	}
	if c.Outbox.SweepIntervalSeconds <= 0 {
		c.Outbox.SweepIntervalSeconds = 60
	}
	if c.Outbox.StaleAfterSeconds <= 0 {
		c.Outbox.StaleAfterSeconds = 120
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MissingEnv lists the required store settings that are absent. Core
// endpoints answer 500 MISSING_ENV while this is non-empty instead of
// proceeding with partial configuration.
func (c *Config) MissingEnv() []string {
	var missing []string
	if c.Airtable.Token == "" {
		missing = append(missing, "AIRTABLE_TOKEN")
	}
	if c.Airtable.BaseID == "" {
		missing = append(missing, "AIRTABLE_BASE_ID")
	}
	if c.Airtable.TimeslotsTable == "" {
		missing = append(missing, "AIRTABLE_TABLE_TIMESLOTS")
	}
	if c.Airtable.BookingsTable == "" {
		missing = append(missing, "AIRTABLE_TABLE_BOOKINGS")
	}
	if c.Restaurant.Slug == "" {
		missing = append(missing, "RESTAURANT_SLUG")
	}
	return missing
}

// Location resolves the display time zone, falling back to UTC if the
// zone database does not know the configured name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Restaurant.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheTTL returns the Airtable list-read cache TTL; zero disables the
// cache.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Airtable.CacheTTLSeconds) * time.Second
}

// OutboxSweepInterval returns how often the reconciler scans for stale
// intents.
func (c *Config) OutboxSweepInterval() time.Duration {
	return time.Duration(c.Outbox.SweepIntervalSeconds) * time.Second
}

// OutboxStaleAfter returns the age past which a non-terminal intent is
// considered abandoned and eligible for reconciliation.
func (c *Config) OutboxStaleAfter() time.Duration {
	return time.Duration(c.Outbox.StaleAfterSeconds) * time.Second
}
