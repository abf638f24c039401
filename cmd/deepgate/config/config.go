// Package configcmder provides the config command for managing persistent
// deepgate configuration stored in the .deepgate/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/pkg/config"
	"github.com/papercomputeco/deepgate/pkg/credentials"
)

const configLongDesc string = `Manage persistent deepgate configuration.

Configuration is stored as config.toml in the .deepgate/ directory and provides
default values for command flags. CLI flags and DEEPGATE_* environment
variables always take precedence over config file values. A running gateway
reloads config.toml when it changes.

Keys use dotted notation matching the TOML section structure:
  gateway.listen, gateway.prefix,
  api.listen, api.mcp, api.pprof,
  upstream.base_url, upstream.api_key, upstream.default_model,
  upstream.insecure_skip_verify, upstream.timeout,
  defaults.temperature, defaults.max_tokens,
  usage.driver, usage.sqlite_path, usage.postgres_dsn,
  events.kafka_brokers, events.kafka_topic,
  log.file, log.json,
  client.gateway_target, client.api_target

Use subcommands to get, set, or list configuration values:
  deepgate config set <key> <value>    Set a configuration value
  deepgate config get <key>            Get a configuration value
  deepgate config list                 List all configuration values

Examples:
  deepgate config set upstream.default_model deepseek-reasoner
  deepgate config set usage.driver sqlite
  deepgate config get gateway.listen
  deepgate config list`

const configShortDesc string = "Manage persistent deepgate configuration"

const notSet = "<not set>"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// display masks secret values.
func display(key, value string) string {
	if value != "" && value != notSet && config.IsSecretKey(key) {
		return credentials.MaskKey(value)
	}
	return value
}
