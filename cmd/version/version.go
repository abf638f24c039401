// Package versioncmder
package versioncmder

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/pkg/utils"
)

type VersionCommander struct {
	json bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print version information as JSON")

	return cmd
}

func (c *VersionCommander) run(out io.Writer) error {
	info := utils.GetBuildInfo()

	if c.json {
		data, err := sonic.ConfigStd.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling version info: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	table := uitable.New()
	table.RightAlign(0)
	table.Separator = " "
	table.AddRow("Version:", info.Version)
	table.AddRow("Sha:", info.Sha)
	table.AddRow("Built at:", info.Buildtime)
	table.AddRow("Go:", info.GoVersion)
	table.AddRow("Platform:", info.Platform)

	fmt.Fprintln(out, table.String())
	return nil
}
