package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	RedisURL             string        `env:"REDIS_URL,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	TokenValidity        time.Duration `env:"TOKEN_VALIDITY,default=1h"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	SendBufferSize       int           `env:"SEND_BUFFER_SIZE,default=64"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AllowedOrigin        string        `env:"ALLOWED_ORIGIN,default=*"`
	SeedDemoUsers        bool          `env:"SEED_DEMO_USERS,default=false"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD,default=10s"`
	SubscriptionDeadline time.Duration `env:"SUBSCRIPTION_DEADLINE,default=5s"`
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}
