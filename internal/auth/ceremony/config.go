package ceremony

import (
	"time"

	"github.com/caarlos0/env/v11"
)

const minChallengeSize = 16

// Config controls ceremony context lifetime and challenge entropy.
type Config struct {
	TTL           time.Duration `env:"PASSKEYD_CEREMONY_TTL"            envDefault:"5m"`
	ChallengeSize int           `env:"PASSKEYD_CEREMONY_CHALLENGE_SIZE" envDefault:"32"`
}

// LoadConfigFromEnv returns ceremony configuration with defensive defaults.
// Challenges shorter than 16 bytes are rejected and reset to 32.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.ChallengeSize < minChallengeSize {
		cfg.ChallengeSize = 32
	}
	return cfg
}
