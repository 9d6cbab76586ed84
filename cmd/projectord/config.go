package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// config is the daemon's configuration, read from environment variables.
type config struct {
	// Store selects the event store, one of "bolt", "sqlite" or "memory".
	Store string `env:"PROJECTORD_STORE" envDefault:"bolt"`

	BoltPath  string `env:"PROJECTORD_BOLT_PATH" envDefault:"projectord.boltdb"`
	SQLiteDSN string `env:"PROJECTORD_SQLITE_DSN" envDefault:"file:projectord.sqlite?_pragma=busy_timeout(5000)"`

	// ListenAddress is the address on which the store is served over gRPC.
	// The store is not served if it is empty.
	ListenAddress string `env:"PROJECTORD_LISTEN_ADDRESS" envDefault:"127.0.0.1:7770"`

	// Remote is the address of another projectord instance. If it is set,
	// projections are built from that instance's store instead of a local
	// one.
	Remote string `env:"PROJECTORD_REMOTE"`

	// DemoInterval is the interval at which demo transactions are recorded.
	// No demo transactions are recorded if it is zero.
	DemoInterval time.Duration `env:"PROJECTORD_DEMO_INTERVAL" envDefault:"0s"`

	OpenTimeout     time.Duration `env:"PROJECTORD_OPEN_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"PROJECTORD_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	Debug bool `env:"PROJECTORD_DEBUG"`
}

// parseConfig loads the configuration from environment variables.
func parseConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.Store {
	case "bolt", "sqlite", "memory":
	default:
		return config{}, fmt.Errorf("unsupported store %q, expected bolt, sqlite or memory", cfg.Store)
	}

	return cfg, nil
}
