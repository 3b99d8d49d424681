package config

import (
	"os"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration
	SweepInterval time.Duration
	DatabaseURL   string
	SeedDemoData  bool
}

const (
	defaultAddr          = ":8080"
	defaultTokenTTL      = 15 * time.Minute
	defaultSweepInterval = 5 * time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          defaultAddr,
		TokenTTL:      defaultTokenTTL,
		SweepInterval: defaultSweepInterval,
		DatabaseURL:   os.Getenv("WARDGATE_DATABASE_URL"),
		SeedDemoData:  os.Getenv("WARDGATE_SEED_DEMO") == "true",
	}
	if addr := os.Getenv("WARDGATE_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if ttl := os.Getenv("WARDGATE_TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.TokenTTL = d
		}
	}
	if interval := os.Getenv("WARDGATE_SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	// Empty when unset; main generates an ephemeral key and warns.
	cfg.JWTSigningKey = os.Getenv("WARDGATE_JWT_SIGNING_KEY")
	return cfg
}
