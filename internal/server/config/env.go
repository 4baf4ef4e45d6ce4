package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name declared on Config.
const EnvPrefix = "NUMERIA_"

// parseEnv overlays variables that are present in the environment. Absent
// variables leave the current value untouched.
func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
