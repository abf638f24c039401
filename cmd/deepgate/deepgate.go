// Package deepgatecmder
package deepgatecmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/deepgate/cmd/deepgate/auth"
	balancecmder "github.com/papercomputeco/deepgate/cmd/deepgate/balance"
	chatcmder "github.com/papercomputeco/deepgate/cmd/deepgate/chat"
	configcmder "github.com/papercomputeco/deepgate/cmd/deepgate/config"
	modelscmder "github.com/papercomputeco/deepgate/cmd/deepgate/models"
	servecmder "github.com/papercomputeco/deepgate/cmd/deepgate/serve"
	statuscmder "github.com/papercomputeco/deepgate/cmd/deepgate/status"
	usagecmder "github.com/papercomputeco/deepgate/cmd/deepgate/usage"
	versioncmder "github.com/papercomputeco/deepgate/cmd/version"
)

const deepgateLongDesc string = `Deepgate is a gateway in front of the DeepSeek chat API.

It relays streaming completions as normalized server-sent events, proxies
blocking chats and account queries, and records token usage per call.

Run services using:
  deepgate serve          Run the gateway and the usage API together
  deepgate serve proxy    Run the gateway
  deepgate serve api      Run the usage API server

Talk to a running gateway using:
  deepgate chat           Interactive streaming chat
  deepgate models         List available models
  deepgate balance        Show the account balance
  deepgate usage          Show recorded usage
  deepgate status         Check gateway health and credential

Manage local state using:
  deepgate auth           Store the DeepSeek API key
  deepgate config         Manage config.toml`

const deepgateShortDesc string = "Deepgate - DeepSeek chat gateway"

func NewDeepgateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "deepgate",
		Short:        deepgateShortDesc,
		Long:         deepgateLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .deepgate/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(balancecmder.NewBalanceCmd())
	cmd.AddCommand(usagecmder.NewUsageCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
