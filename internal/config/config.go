// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	AuthMode string `mapstructure:"AUTH_MODE"`

	// DatabaseURL is optional. When empty the snapshot store is disabled and
	// the registry runs purely in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	TickIntervalMS     int    `mapstructure:"TICK_INTERVAL_MS"`
	SnapshotEveryTicks int    `mapstructure:"SNAPSHOT_EVERY_TICKS"`
	CheckInLeadMinutes int    `mapstructure:"CHECKIN_LEAD_MINUTES"`
	ClinicTimezone     string `mapstructure:"CLINIC_TIMEZONE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TICK_INTERVAL_MS", 1000)
	v.SetDefault("SNAPSHOT_EVERY_TICKS", 30)
	v.SetDefault("CHECKIN_LEAD_MINUTES", 30)
	v.SetDefault("CLINIC_TIMEZONE", "")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("TICK_INTERVAL_MS")
	v.BindEnv("SNAPSHOT_EVERY_TICKS")
	v.BindEnv("CHECKIN_LEAD_MINUTES")
	v.BindEnv("CLINIC_TIMEZONE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TickInterval returns the clock tick interval as a duration.
func (c *Config) TickInterval() time.Duration {
	ms := c.TickIntervalMS
	if ms <= 0 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// CheckInLead returns the interval by which imported check-in times are
// backdated relative to the appointment time.
func (c *Config) CheckInLead() time.Duration {
	m := c.CheckInLeadMinutes
	if m < 0 {
		m = 0
	}
	return time.Duration(m) * time.Minute
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, all requests get admin)
//   - otherwise       → "jwt" (bearer tokens, JWKS or signing key)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Validate checks that the configuration is safe to run. Outside development
// mode some form of token verification must be configured so that real
// authentication is enforced.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
		return fmt.Errorf(
			"AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when AUTH_MODE is \"jwt\" (current ENV=%q). "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.SnapshotEveryTicks < 0 {
		return fmt.Errorf("SNAPSHOT_EVERY_TICKS must not be negative, got %d", c.SnapshotEveryTicks)
	}
	if c.ClinicTimezone != "" {
		if _, err := time.LoadLocation(c.ClinicTimezone); err != nil {
			return fmt.Errorf("CLINIC_TIMEZONE %q is not a valid IANA zone: %w", c.ClinicTimezone, err)
		}
	}
	return nil
}

// Location returns the clinic's time zone, falling back to the host local
// zone when CLINIC_TIMEZONE is unset.
func (c *Config) Location() *time.Location {
	if c.ClinicTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}
