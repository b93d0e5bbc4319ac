// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime settings for the shelftrack service and bridge.
type Config struct {
	// Addr is the HTTP listen address for the API server.
	Addr string `env:"SHELFTRACK_ADDR" envDefault:":8080"`

	// DBPath is the SQLite database file.
	DBPath string `env:"SHELFTRACK_DB" envDefault:"shelftrack.db"`

	// TopologyPath is an optional CUE topology file. When set, the readers
	// it declares are seeded into the registry on startup.
	TopologyPath string `env:"SHELFTRACK_TOPOLOGY"`

	// BridgeAddr is the TCP listen address for raw reader frames.
	BridgeAddr string `env:"SHELFTRACK_BRIDGE_ADDR" envDefault:":9100"`

	// ServerURL is where the bridge submits decoded detections.
	ServerURL string `env:"SHELFTRACK_SERVER_URL" envDefault:"http://localhost:8080"`
}

// FromEnv loads configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
