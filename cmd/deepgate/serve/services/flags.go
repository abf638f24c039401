package services

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/deepgate/pkg/config"
)

// GatewayFlags are the registry flags of every command that builds the
// shared services.
var GatewayFlags = []string{
	config.FlagListen,
	config.FlagBaseURL,
	config.FlagModel,
	config.FlagInsecure,
	config.FlagUsageDriver,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagKafkaBrokers,
	config.FlagLogFile,
	config.FlagLogJSON,
}

var boolFlags = map[string]bool{
	config.FlagInsecure: true,
	config.FlagLogJSON:  true,
}

// AddFlags registers the given registry flags on cmd. Values are read back
// through viper, never through the flag targets.
func AddFlags(cmd *cobra.Command, keys ...string) {
	for _, key := range keys {
		if boolFlags[key] {
			config.AddBoolFlag(cmd, config.Registry, key, new(bool))
			continue
		}
		config.AddStringFlag(cmd, config.Registry, key, new(string))
	}
}

// NewViper loads configuration for cmd and binds the given registry flags
// on top of it.
func NewViper(cmd *cobra.Command, keys ...string) (*viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Registry, keys)
	return v, nil
}
