// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/api"
	"github.com/papercomputeco/deepgate/api/mcp"
	apicmder "github.com/papercomputeco/deepgate/cmd/deepgate/serve/api"
	proxycmder "github.com/papercomputeco/deepgate/cmd/deepgate/serve/proxy"
	"github.com/papercomputeco/deepgate/cmd/deepgate/serve/services"
	"github.com/papercomputeco/deepgate/pkg/config"
	"github.com/papercomputeco/deepgate/proxy"
)

const serveLongDesc string = `Run deepgate services.

Use subcommands to run individual services or all services together:
  deepgate serve          Run both the gateway and the usage API server
  deepgate serve api      Run just the usage API server
  deepgate serve proxy    Run just the gateway

Flags override environment variables (DEEPGATE_*), which override
config.toml in the .deepgate/ directory.`

const serveShortDesc string = "Run deepgate services"

var serveFlags = append([]string{config.FlagAPIListen}, services.GatewayFlags...)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			v, err := services.NewViper(cmd, serveFlags...)
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

	services.AddFlags(cmd, serveFlags...)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

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

	mcpServer, err := mcp.NewServer(mcp.Config{
		Provider: svc.Provider,
		Driver:   svc.Driver,
		Noop:     !cfg.API.MCP,
		Logger:   svc.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		PProf:      cfg.API.PProf,
	}, svc.Driver, mcpServer, svc.Logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	svc.Logger.Info("starting deepgate",
		"gateway_addr", cfg.Gateway.Listen,
		"api_addr", cfg.API.Listen,
		"upstream", cfg.Upstream.BaseURL,
		"key_source", svc.Store.KeySource(),
	)

	return services.Serve(svc.Logger,
		services.Server{Name: "gateway", Run: p.Run, Shutdown: p.Close},
		services.Server{Name: "API server", Run: apiServer.Run, Shutdown: apiServer.Shutdown},
	)
}
