// Package apicmder provides the usage API server command.
package apicmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/api"
	"github.com/papercomputeco/deepgate/api/mcp"
	"github.com/papercomputeco/deepgate/cmd/deepgate/serve/services"
	"github.com/papercomputeco/deepgate/pkg/config"
)

const apiLongDesc string = `Run the deepgate usage API server.

Serves recorded usage (/usage, /usage/summary) and the MCP tools (/mcp).
Point it at the same sqlite or postgres usage storage as a running gateway
to inspect that gateway's usage.`

const apiShortDesc string = "Run the deepgate usage API server"

var apiFlags = []string{
	config.FlagAPIListen,
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

func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			v, err := services.NewViper(cmd, apiFlags...)
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

	services.AddFlags(cmd, apiFlags...)

	return cmd
}

func run(svc *services.Services) error {
	cfg := svc.Store.Snapshot()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Provider: svc.Provider,
		Driver:   svc.Driver,
		Noop:     !cfg.API.MCP,
		Logger:   svc.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		PProf:      cfg.API.PProf,
	}, svc.Driver, mcpServer, svc.Logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return services.Serve(svc.Logger,
		services.Server{Name: "API server", Run: server.Run, Shutdown: server.Shutdown},
	)
}
