// Package balancecmder provides the balance command, which shows the upstream
// account balance through a running gateway.
package balancecmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/cmd/deepgate/remote"
	"github.com/papercomputeco/deepgate/pkg/cliui"
	"github.com/papercomputeco/deepgate/pkg/llm"
)

const balanceLongDesc string = `Show the DeepSeek account balance through a running deepgate gateway.

One row is printed per currency. Amounts are shown exactly as DeepSeek
reports them.

Examples:
  deepgate balance`

const balanceShortDesc string = "Show the account balance"

func NewBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: balanceShortDesc,
		Long:  balanceLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := remote.NewClient(cmd)
			if err != nil {
				return err
			}

			balance, err := c.Balance(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching balance: %w", err)
			}

			printBalance(cmd.OutOrStdout(), balance)
			return nil
		},
	}

	remote.AddTargetFlags(cmd)

	return cmd
}

func printBalance(out io.Writer, balance *llm.Balance) {
	available := cliui.SuccessMark + " available"
	if !balance.IsAvailable {
		available = cliui.FailMark + " " + cliui.WarnStyle.Render("insufficient balance")
	}
	fmt.Fprintf(out, "\n  %s %s\n\n", cliui.KeyStyle.Render("Account:"), available)

	if len(balance.BalanceInfos) == 0 {
		return
	}

	table := cliui.NewTable("currency", "total", "granted", "topped up")
	for _, b := range balance.BalanceInfos {
		table.AddRow(b.Currency, b.TotalBalance, b.GrantedBalance, b.ToppedUpBalance)
	}
	table.Fprint(out)
}
