package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/deepgate/pkg/dotdir"
)

// EnvPrefix is the prefix for environment overrides, e.g. DEEPGATE_GATEWAY_LISTEN.
const EnvPrefix = "DEEPGATE"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the DEEPGATE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (DEEPGATE_GATEWAY_LISTEN, DEEPGATE_UPSTREAM_BASE_URL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: DEEPGATE_GATEWAY_LISTEN, DEEPGATE_USAGE_DRIVER, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the merged viper view so that flag
// and environment overrides are visible to callers that take a *Config.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Gateway: GatewayConfig{
			Listen: v.GetString("gateway.listen"),
			Prefix: v.GetString("gateway.prefix"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
			MCP:    v.GetBool("api.mcp"),
			PProf:  v.GetBool("api.pprof"),
		},
		Upstream: UpstreamConfig{
			BaseURL:            v.GetString("upstream.base_url"),
			APIKey:             v.GetString("upstream.api_key"),
			DefaultModel:       v.GetString("upstream.default_model"),
			InsecureSkipVerify: v.GetBool("upstream.insecure_skip_verify"),
			Timeout:            v.GetString("upstream.timeout"),
		},
		Defaults: DefaultsConfig{
			Temperature: float64Ptr(v.GetFloat64("defaults.temperature")),
			MaxTokens:   v.GetInt("defaults.max_tokens"),
		},
		Usage: UsageConfig{
			Driver:      v.GetString("usage.driver"),
			SQLitePath:  v.GetString("usage.sqlite_path"),
			PostgresDSN: v.GetString("usage.postgres_dsn"),
		},
		Events: EventsConfig{
			KafkaBrokers: v.GetString("events.kafka_brokers"),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
		Log: LogConfig{
			File: v.GetString("log.file"),
			JSON: v.GetBool("log.json"),
		},
		Client: ClientConfig{
			GatewayTarget: v.GetString("client.gateway_target"),
			APITarget:     v.GetString("client.api_target"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Gateway
	v.SetDefault("gateway.listen", d.Gateway.Listen)
	v.SetDefault("gateway.prefix", d.Gateway.Prefix)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.mcp", d.API.MCP)
	v.SetDefault("api.pprof", d.API.PProf)

	// Upstream
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.api_key", d.Upstream.APIKey)
	v.SetDefault("upstream.default_model", d.Upstream.DefaultModel)
	v.SetDefault("upstream.insecure_skip_verify", d.Upstream.InsecureSkipVerify)
	v.SetDefault("upstream.timeout", d.Upstream.Timeout)

	// Generation defaults
	v.SetDefault("defaults.temperature", *d.Defaults.Temperature)
	v.SetDefault("defaults.max_tokens", d.Defaults.MaxTokens)

	// Usage
	v.SetDefault("usage.driver", d.Usage.Driver)
	v.SetDefault("usage.sqlite_path", d.Usage.SQLitePath)
	v.SetDefault("usage.postgres_dsn", d.Usage.PostgresDSN)

	// Events
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)

	// Log
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.json", d.Log.JSON)

	// Client
	v.SetDefault("client.gateway_target", d.Client.GatewayTarget)
	v.SetDefault("client.api_target", d.Client.APITarget)
}
