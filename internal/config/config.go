package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// MLLP / HL7 wire behavior (spec §4.1, §6).
	MLLPMaxFrameBytes    int `mapstructure:"MLLP_MAX_FRAME_BYTES"`
	MLLPReadTimeoutSecs  int `mapstructure:"MLLP_READ_TIMEOUT_SECONDS"`
	HTTPTimeoutSecs      int `mapstructure:"HTTP_TIMEOUT_SECONDS"`

	HTTPBodyLimit         string `mapstructure:"HTTP_BODY_LIMIT"`
	HTTPTemplateBodyLimit string `mapstructure:"HTTP_TEMPLATE_BODY_LIMIT"`

	// PAM validation policy (spec §4.5, per juridical entity default;
	// per-entity overrides live in the structure table, this is the
	// process-wide fallback).
	StrictPAMFR      bool `mapstructure:"STRICT_PAM_FR"`
	PAMAutoCreateUF  bool `mapstructure:"PAM_AUTO_CREATE_UF"`

	// Structure resolver (spec §4.4, MFN^M05 Open Question decision).
	MFNAutoVirtualPole bool `mapstructure:"MFN_AUTO_VIRTUAL_POLE"`

	// Optional durability mirror of the message log (C7) to EventStoreDB.
	// Empty means disabled — the operational Postgres table remains the
	// only source of truth either way.
	MessageLogEventStoreURL string `mapstructure:"MESSAGELOG_EVENTSTORE_URL"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MLLP_MAX_FRAME_BYTES", 1048576)
	v.SetDefault("MLLP_READ_TIMEOUT_SECONDS", 30)
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	v.SetDefault("HTTP_BODY_LIMIT", "1M")
	v.SetDefault("HTTP_TEMPLATE_BODY_LIMIT", "10M")
	v.SetDefault("STRICT_PAM_FR", false)
	v.SetDefault("PAM_AUTO_CREATE_UF", false)
	v.SetDefault("MFN_AUTO_VIRTUAL_POLE", true)
	v.SetDefault("MESSAGELOG_EVENTSTORE_URL", "")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MLLP_MAX_FRAME_BYTES")
	v.BindEnv("MLLP_READ_TIMEOUT_SECONDS")
	v.BindEnv("HTTP_TIMEOUT_SECONDS")
	v.BindEnv("HTTP_BODY_LIMIT")
	v.BindEnv("HTTP_TEMPLATE_BODY_LIMIT")
	v.BindEnv("STRICT_PAM_FR")
	v.BindEnv("PAM_AUTO_CREATE_UF")
	v.BindEnv("MFN_AUTO_VIRTUAL_POLE")
	v.BindEnv("MESSAGELOG_EVENTSTORE_URL")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

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

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development)")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.MLLPMaxFrameBytes <= 0 {
		return fmt.Errorf("MLLP_MAX_FRAME_BYTES must be positive, got %d", c.MLLPMaxFrameBytes)
	}
	if c.MLLPReadTimeoutSecs <= 0 {
		return fmt.Errorf("MLLP_READ_TIMEOUT_SECONDS must be positive, got %d", c.MLLPReadTimeoutSecs)
	}
	if c.HTTPTimeoutSecs <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSecs)
	}
	return nil
}
