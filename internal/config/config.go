package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TokenEnv overrides the metrics API token when set.
const TokenEnv = "WORLDPANEL_METRICS_TOKEN"

// Config represents configuration data for the control panel.
type Config struct {
	APIBaseURL         string    `yaml:"api_base_url"`
	AgentURL           string    `yaml:"agent_url"`
	ListenAddr         string    `yaml:"listen_addr"`
	RequestTimeoutSec  int       `yaml:"request_timeout_seconds"`
	WorldRefreshSec    int       `yaml:"world_refresh_seconds"`
	AgentProbeSec      int       `yaml:"agent_probe_seconds"`
	LogBufferSize      int       `yaml:"log_buffer_size"`
	ReconnectDelaySec  int       `yaml:"reconnect_delay_seconds"`
	VersionManifestURL string    `yaml:"version_manifest_url"`
	Metrics            Metrics   `yaml:"metrics"`
	RateLimit          RateLimit `yaml:"rate_limit"`
}

// Metrics configures the cloud metrics API the telemetry charts are fed from.
type Metrics struct {
	Endpoint     string `yaml:"endpoint"`
	ServerID     string `yaml:"server_id"`
	APIToken     string `yaml:"api_token"`
	DefaultRange string `yaml:"default_range"`
}

// RateLimit bounds how fast requests are forwarded to the backend.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// MetricsURL returns the metrics endpoint for the configured server. A
// "{server_id}" placeholder in the endpoint is substituted.
func (m Metrics) MetricsURL() string {
	return strings.ReplaceAll(m.Endpoint, "{server_id}", url.PathEscape(m.ServerID))
}

// Enabled reports whether enough is configured to query the metrics API.
func (m Metrics) Enabled() bool {
	if m.Endpoint == "" || m.APIToken == "" {
		return false
	}
	return !strings.Contains(m.Endpoint, "{server_id}") || m.ServerID != ""
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:         "http://localhost:3000",
		AgentURL:           "http://localhost:3001",
		ListenAddr:         ":8080",
		RequestTimeoutSec:  10,
		WorldRefreshSec:    30,
		AgentProbeSec:      60,
		LogBufferSize:      500,
		ReconnectDelaySec:  5,
		VersionManifestURL: "https://piston-meta.mojang.com/mc/game/version_manifest.json",
		Metrics: Metrics{
			Endpoint:     "https://api.hetzner.cloud/v1/servers/{server_id}/metrics",
			DefaultRange: "30m",
		},
		RateLimit: RateLimit{
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}

// Load reads configuration from yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return Config{}, err
	}
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.Metrics.APIToken = token
	}
	if err := cfg.normalise(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func read(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalise() error {
	defaults := DefaultConfig()
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = defaults.RequestTimeoutSec
	}
	if c.WorldRefreshSec <= 0 {
		c.WorldRefreshSec = defaults.WorldRefreshSec
	}
	if c.AgentProbeSec <= 0 {
		c.AgentProbeSec = defaults.AgentProbeSec
	}
	if c.LogBufferSize <= 0 {
		c.LogBufferSize = defaults.LogBufferSize
	}
	if c.ReconnectDelaySec <= 0 {
		c.ReconnectDelaySec = defaults.ReconnectDelaySec
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaults.ListenAddr
	}
	if c.Metrics.DefaultRange == "" {
		c.Metrics.DefaultRange = defaults.Metrics.DefaultRange
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = defaults.RateLimit.RequestsPerSecond
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaults.RateLimit.Burst
	}

	c.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(c.APIBaseURL), "/")
	c.AgentURL = strings.TrimSuffix(strings.TrimSpace(c.AgentURL), "/")

	if c.APIBaseURL == "" {
		return errors.New("api_base_url is required")
	}
	if err := checkURL("api_base_url", c.APIBaseURL, "http", "https"); err != nil {
		return err
	}
	if c.AgentURL == "" {
		return errors.New("agent_url is required")
	}
	if err := checkURL("agent_url", c.AgentURL, "http", "https", "ws", "wss"); err != nil {
		return err
	}
	if c.Metrics.Endpoint != "" {
		if err := checkURL("metrics.endpoint", c.Metrics.Endpoint, "http", "https"); err != nil {
			return err
		}
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s must include a host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s has unsupported scheme %q", field, u.Scheme)
}
