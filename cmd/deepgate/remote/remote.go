// Package remote wires CLI commands that talk to a running deepgate to the
// configured gateway and usage API targets.
package remote

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/pkg/client"
	"github.com/papercomputeco/deepgate/pkg/config"
)

var targetFlags = []string{config.FlagGatewayTarget, config.FlagAPITarget}

// AddTargetFlags registers --gateway-target and --api-target on cmd.
func AddTargetFlags(cmd *cobra.Command) {
	for _, key := range targetFlags {
		config.AddStringFlag(cmd, config.Registry, key, new(string))
	}
}

// NewClient resolves the targets (flag, then DEEPGATE_CLIENT_* environment,
// then config.toml) and returns a client for them.
func NewClient(cmd *cobra.Command) (*client.Client, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Registry, targetFlags)

	cfg := config.FromViper(v)
	return client.New(cfg.Client.GatewayTarget, cfg.Client.APITarget), nil
}
