// Package modelscmder provides the models command, which lists the models the
// upstream account can use through a running gateway.
package modelscmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/cmd/deepgate/remote"
	"github.com/papercomputeco/deepgate/pkg/cliui"
	"github.com/papercomputeco/deepgate/pkg/llm"
)

const modelsLongDesc string = `List the models available through a running deepgate gateway.

The gateway forwards the request to DeepSeek with its configured credential.

Examples:
  deepgate models
  deepgate models --gateway-target http://gateway.internal:8080`

const modelsShortDesc string = "List available models"

func NewModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := remote.NewClient(cmd)
			if err != nil {
				return err
			}

			list, err := c.Models(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}

			printModels(cmd.OutOrStdout(), list.Data)
			return nil
		},
	}

	remote.AddTargetFlags(cmd)

	return cmd
}

func printModels(out io.Writer, models []llm.ModelInfo) {
	if len(models) == 0 {
		fmt.Fprintf(out, "  %s No models available.\n", cliui.DimStyle.Render("●"))
		return
	}

	table := cliui.NewTable("id", "owned by")
	for _, m := range models {
		table.AddRow(m.ID, m.OwnedBy)
	}
	table.Fprint(out)
}
