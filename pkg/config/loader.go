// Package config loads the pipeline's configuration: scalar settings
// bound from the environment (and an optional .env file), and the
// routing table loaded from an optional YAML document layered over
// built-in defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ciaranglansford/civic-quant/pkg/routing"
)

// Config is the fully resolved configuration ready for use by cmd/civic-quant.
type Config struct {
	Scalars Scalars
	Routing routing.Config
}

// Load reads envFile (if it exists; a missing file is not an error, matching
// godotenv.Load's normal top-level caller pattern), binds Scalars from the
// environment, loads routingYAMLPath if non-empty, and validates the result.
func Load(envFile, routingYAMLPath string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, NewLoadError(envFile, err)
		}
	}

	var scalars Scalars
	if err := env.Parse(&scalars); err != nil {
		return nil, NewLoadError("environment", err)
	}
	if err := scalars.Validate(); err != nil {
		return nil, err
	}

	var routingData []byte
	if routingYAMLPath != "" {
		data, err := os.ReadFile(routingYAMLPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, NewLoadError(routingYAMLPath, err)
			}
		} else {
			routingData = data
		}
	}
	routingCfg, err := LoadRoutingConfig(routingData)
	if err != nil {
		return nil, NewLoadError(routingYAMLPath, err)
	}

	slog.Info("configuration loaded",
		"api_port", scalars.APIPort,
		"phase2_extraction_enabled", scalars.Phase2ExtractionEnabled,
		"phase2_batch_size", scalars.Phase2BatchSize,
		"routing_topics", len(routingCfg.TopicDestinations),
	)

	return &Config{Scalars: scalars, Routing: routingCfg}, nil
}

// AddrString is the host:port the HTTP server should bind to.
func (c *Config) AddrString() string {
	return fmt.Sprintf("%s:%d", c.Scalars.APIHost, c.Scalars.APIPort)
}
