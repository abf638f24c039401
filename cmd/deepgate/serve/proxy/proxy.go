// Package proxycmder provides the gateway server command.
package proxycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/cmd/deepgate/serve/services"
	"github.com/papercomputeco/deepgate/proxy"
)

const proxyLongDesc string = `Run the deepgate gateway.

The gateway accepts normalized chat requests on /chat and /stream, forwards
them to the DeepSeek API and relays streamed completions as server-sent
events. Every completed call is recorded in the configured usage storage.

Routes are served at the root and again under gateway.prefix
(default /deepseek).`

const proxyShortDesc string = "Run the deepgate gateway"

func NewProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			v, err := services.NewViper(cmd, services.GatewayFlags...)
			if err != nil {
				return err
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			svc, err := services.Build(cmd.Context(), services.Options{
				ConfigDir: configDir,
				Viper:     v,
				Debug:     debug,
			})
			if err != nil {
				return err
			}
			defer svc.Close()

			return run(svc)
		},
	}

	services.AddFlags(cmd, services.GatewayFlags...)

	return cmd
}

func run(svc *services.Services) error {
	cfg := svc.Store.Snapshot()

	p, err := proxy.New(proxy.Config{
		ListenAddr: cfg.Gateway.Listen,
		Prefix:     cfg.Gateway.Prefix,
	}, svc.Provider, svc.Store, svc.Pool, svc.Logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	svc.Logger.Info("starting gateway",
		"listen", cfg.Gateway.Listen,
		"upstream", cfg.Upstream.BaseURL,
		"key_source", svc.Store.KeySource(),
	)

	return services.Serve(svc.Logger,
		services.Server{Name: "gateway", Run: p.Run, Shutdown: p.Close},
	)
}
