package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// REDIS_ADDR points the suite at a live Redis; empty skips the suite.
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"15"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
