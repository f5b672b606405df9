package otp

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls one-time code shape and lifetime.
type Config struct {
	Length int           `env:"PASSKEYD_OTP_LENGTH" envDefault:"6"`
	TTL    time.Duration `env:"PASSKEYD_OTP_TTL"    envDefault:"10m"`
}

// LoadConfigFromEnv returns OTP configuration with defensive defaults.
// Code length is clamped to 4..10 digits.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.Length < 4 || cfg.Length > 10 {
		cfg.Length = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return cfg
}
