// Package statuscmder provides the status command, which checks that a
// deepgate gateway and its usage API are reachable and that the gateway
// holds a working DeepSeek credential.
package statuscmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/cmd/deepgate/remote"
	"github.com/papercomputeco/deepgate/pkg/cliui"
)

const statusLongDesc string = `Check a running deepgate.

Pings the gateway, asks it whether its DeepSeek API key is set and accepted,
and checks that the usage API answers. Exits non-zero when the gateway is
unreachable or its credential does not work.

Examples:
  deepgate status
  deepgate status --gateway-target http://gateway.internal:8080`

const statusShortDesc string = "Check gateway health and credential"

var errUnhealthy = errors.New("deepgate is not healthy")

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	remote.AddTargetFlags(cmd)

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c, err := remote.NewClient(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	pingErr := c.Ping(ctx)
	fmt.Fprintf(out, "\n  %s %s\n", cliui.Mark(pingErr), cliui.KeyStyle.Render("Gateway"))
	if pingErr != nil {
		fmt.Fprintf(out, "    %s\n\n", cliui.DimStyle.Render(pingErr.Error()))
		return errUnhealthy
	}

	var keyErr error
	status, err := c.CheckAPIKey(ctx)
	switch {
	case err != nil:
		keyErr = err
	case !status.IsSet:
		keyErr = errors.New("no API key configured")
	case !status.IsValid:
		keyErr = errors.New("API key rejected")
	}
	fmt.Fprintf(out, "  %s %s\n", cliui.Mark(keyErr), cliui.KeyStyle.Render("API key"))
	switch {
	case err != nil:
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(err.Error()))
	case status.Message != "":
		fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(status.Message))
	}

	// The usage API is optional; a failure is reported but not fatal.
	summary, usageErr := c.UsageSummary(ctx)
	if usageErr != nil {
		fmt.Fprintf(out, "  %s %s\n    %s\n",
			cliui.WarnStyle.Render("!"),
			cliui.KeyStyle.Render("Usage API"),
			cliui.DimStyle.Render(usageErr.Error()),
		)
	} else {
		fmt.Fprintf(out, "  %s %s %s\n",
			cliui.SuccessMark,
			cliui.KeyStyle.Render("Usage API"),
			cliui.DimStyle.Render(fmt.Sprintf("(%d calls recorded)", summary.Calls)),
		)
	}
	fmt.Fprintln(out)

	if keyErr != nil {
		return errUnhealthy
	}
	return nil
}
