package verifier

import (
	"github.com/caarlos0/env/v11"
)

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string   `env:"PASSKEYD_RP_DISPLAY_NAME" envDefault:"passkeyd"`
	RPID          string   `env:"PASSKEYD_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string `env:"PASSKEYD_RP_ORIGINS"      envSeparator:","`
}

// LoadConfigFromEnv returns relying party configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "passkeyd"
	}
	if cfg.RPID == "" {
		cfg.RPID = "localhost"
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:8080"}
	}
	return cfg
}
