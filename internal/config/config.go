// Package config loads the daemon configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	APIBaseURL   string `yaml:"api_base_url"`
	ChannelURL   string `yaml:"channel_url"`
	Token        string `yaml:"token"`
	UserID       string `yaml:"user_id"`
	OpsAddr      string `yaml:"ops_addr"`
	DebugRoutes  bool   `yaml:"debug_routes"`
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Environment  string `yaml:"environment"`
}

// Load reads the YAML file at path when it exists, then applies env
// overrides and defaults. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.APIBaseURL = getEnv("API_BASE_URL", cfg.APIBaseURL)
	cfg.ChannelURL = getEnv("CHANNEL_URL", cfg.ChannelURL)
	cfg.Token = getEnv("API_TOKEN", cfg.Token)
	cfg.UserID = getEnv("USER_ID", cfg.UserID)
	cfg.OpsAddr = getEnv("OPS_ADDR", cfg.OpsAddr)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	if os.Getenv("DEBUG_ROUTES") == "true" {
		cfg.DebugRoutes = true
	}

	if cfg.OpsAddr == "" {
		cfg.OpsAddr = ":8086"
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "chat_sync_events"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("api_base_url is required")
	}
	if cfg.ChannelURL == "" {
		return Config{}, fmt.Errorf("channel_url is required")
	}
	if cfg.UserID == "" {
		return Config{}, fmt.Errorf("user_id is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
