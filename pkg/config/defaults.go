package config

import "time"

// Usage driver names accepted by usage.driver.
const (
	UsageDriverMemory   = "memory"
	UsageDriverSQLite   = "sqlite"
	UsageDriverPostgres = "postgres"
)

const (
	defaultGatewayListen = ":8080"
	defaultGatewayPrefix = "/deepseek"
	defaultAPIListen     = ":8081"

	defaultBaseURL         = "https://api.deepseek.com/v1"
	defaultModel           = "deepseek-chat"
	defaultUpstreamTimeout = 5 * time.Minute

	defaultTemperature = 1.0
	defaultMaxTokens   = 1000

	defaultKafkaTopic = "deepgate.usage"

	defaultClientGatewayTarget = "http://localhost:8080"
	defaultClientAPITarget     = "http://localhost:8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Gateway: GatewayConfig{
			Listen: defaultGatewayListen,
			Prefix: defaultGatewayPrefix,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
			MCP:    true,
		},
		Upstream: UpstreamConfig{
			BaseURL:      defaultBaseURL,
			DefaultModel: defaultModel,
			Timeout:      defaultUpstreamTimeout.String(),
		},
		Defaults: DefaultsConfig{
			Temperature: float64Ptr(defaultTemperature),
			MaxTokens:   defaultMaxTokens,
		},
		Usage: UsageConfig{
			Driver: UsageDriverMemory,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Client: ClientConfig{
			GatewayTarget: defaultClientGatewayTarget,
			APITarget:     defaultClientAPITarget,
		},
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}
