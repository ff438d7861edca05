package main

import (
	"os"
	"strings"
)

// Config captures the runtime settings for vaultd.
type Config struct {
	Listen     string
	EnginePath string
	Env        string
}

const (
	envListen     = "VAULTD_LISTEN"
	envEnginePath = "VAULTD_ENGINE_CONFIG"
	envEnv        = "VAULTD_ENV"

	defaultListen     = "0.0.0.0:8551"
	defaultEnginePath = "vault.toml"
)

// LoadConfigFromEnv constructs a Config using environment variables and defaults.
func LoadConfigFromEnv() Config {
	return Config{
		Listen:     stringFromEnv(envListen, defaultListen),
		EnginePath: stringFromEnv(envEnginePath, defaultEnginePath),
		Env:        strings.TrimSpace(os.Getenv(envEnv)),
	}
}

func stringFromEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
