package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent deepgate configuration stored as
// config.toml in the .deepgate/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Gateway  GatewayConfig  `toml:"gateway"`
	API      APIConfig      `toml:"api"`
	Upstream UpstreamConfig `toml:"upstream"`
	Defaults DefaultsConfig `toml:"defaults"`
	Usage    UsageConfig    `toml:"usage"`
	Events   EventsConfig   `toml:"events"`
	Log      LogConfig      `toml:"log"`
	Client   ClientConfig   `toml:"client"`
}

// GatewayConfig holds the chat gateway listener settings.
type GatewayConfig struct {
	Listen string `toml:"listen,omitempty"`

	// Prefix mounts every gateway route a second time under this path
	// (e.g. "/deepseek/chat" next to "/chat"). Empty disables the prefix.
	Prefix string `toml:"prefix"`
}

// APIConfig holds the usage API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
	MCP    bool   `toml:"mcp"`
	PProf  bool   `toml:"pprof"`
}

// UpstreamConfig holds the DeepSeek API connection settings.
type UpstreamConfig struct {
	BaseURL            string `toml:"base_url,omitempty"`
	APIKey             string `toml:"api_key,omitempty"`
	DefaultModel       string `toml:"default_model,omitempty"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	Timeout            string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default on error.
func (u UpstreamConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(u.Timeout)
	if err != nil || d <= 0 {
		return defaultUpstreamTimeout
	}
	return d
}

// DefaultsConfig holds generation parameters applied when a request omits them.
// Temperature is a pointer so that a configured 0 is distinct from unset.
type DefaultsConfig struct {
	Temperature *float64 `toml:"temperature,omitempty"`
	MaxTokens   int     `toml:"max_tokens,omitempty"`
}

// UsageConfig selects the usage record storage backend.
type UsageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig holds the usage event stream settings. Empty brokers disable
// publishing.
type EventsConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// LogConfig holds service log settings.
type LogConfig struct {
	File string `toml:"file,omitempty"`
	JSON bool   `toml:"json"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// gateway (e.g. deepgate chat, deepgate models). Values are full URLs.
type ClientConfig struct {
	GatewayTarget string `toml:"gateway_target,omitempty"`
	APITarget     string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid boolean value %q: %w", v, err)
	}
	*dst = b
	return nil
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"gateway.listen": {
		get: func(c *Config) string { return c.Gateway.Listen },
		set: func(c *Config, v string) error { c.Gateway.Listen = v; return nil },
	},
	"gateway.prefix": {
		get: func(c *Config) string { return c.Gateway.Prefix },
		set: func(c *Config, v string) error { c.Gateway.Prefix = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.mcp": {
		get: func(c *Config) string { return strconv.FormatBool(c.API.MCP) },
		set: func(c *Config, v string) error { return setBool(&c.API.MCP, v) },
	},
	"api.pprof": {
		get: func(c *Config) string { return strconv.FormatBool(c.API.PProf) },
		set: func(c *Config, v string) error { return setBool(&c.API.PProf, v) },
	},
	"upstream.base_url": {
		get: func(c *Config) string { return c.Upstream.BaseURL },
		set: func(c *Config, v string) error { c.Upstream.BaseURL = v; return nil },
	},
	"upstream.api_key": {
		get: func(c *Config) string { return c.Upstream.APIKey },
		set: func(c *Config, v string) error { c.Upstream.APIKey = v; return nil },
	},
	"upstream.default_model": {
		get: func(c *Config) string { return c.Upstream.DefaultModel },
		set: func(c *Config, v string) error { c.Upstream.DefaultModel = v; return nil },
	},
	"upstream.insecure_skip_verify": {
		get: func(c *Config) string { return strconv.FormatBool(c.Upstream.InsecureSkipVerify) },
		set: func(c *Config, v string) error { return setBool(&c.Upstream.InsecureSkipVerify, v) },
	},
	"upstream.timeout": {
		get: func(c *Config) string { return c.Upstream.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid duration value %q: %w", v, err)
			}
			c.Upstream.Timeout = v
			return nil
		},
	},
	"defaults.temperature": {
		get: func(c *Config) string {
			if c.Defaults.Temperature == nil {
				return ""
			}
			return strconv.FormatFloat(*c.Defaults.Temperature, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid float value %q: %w", v, err)
			}
			if f < 0 || f > 2 {
				return fmt.Errorf("temperature %v out of range [0, 2]", f)
			}
			c.Defaults.Temperature = &f
			return nil
		},
	},
	"defaults.max_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Defaults.MaxTokens) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value %q: %w", v, err)
			}
			if n <= 0 {
				return fmt.Errorf("max_tokens must be positive, got %d", n)
			}
			c.Defaults.MaxTokens = n
			return nil
		},
	},
	"usage.driver": {
		get: func(c *Config) string { return c.Usage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case UsageDriverMemory, UsageDriverSQLite, UsageDriverPostgres:
				c.Usage.Driver = v
				return nil
			}
			return fmt.Errorf("unknown usage driver %q (available: memory, sqlite, postgres)", v)
		},
	},
	"usage.sqlite_path": {
		get: func(c *Config) string { return c.Usage.SQLitePath },
		set: func(c *Config, v string) error { c.Usage.SQLitePath = v; return nil },
	},
	"usage.postgres_dsn": {
		get: func(c *Config) string { return c.Usage.PostgresDSN },
		set: func(c *Config, v string) error { c.Usage.PostgresDSN = v; return nil },
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return c.Events.KafkaBrokers },
		set: func(c *Config, v string) error { c.Events.KafkaBrokers = v; return nil },
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
	"log.file": {
		get: func(c *Config) string { return c.Log.File },
		set: func(c *Config, v string) error { c.Log.File = v; return nil },
	},
	"log.json": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.JSON) },
		set: func(c *Config, v string) error { return setBool(&c.Log.JSON, v) },
	},
	"client.gateway_target": {
		get: func(c *Config) string { return c.Client.GatewayTarget },
		set: func(c *Config, v string) error { c.Client.GatewayTarget = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
}
