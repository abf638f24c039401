// Package authcmder provides the auth command for storing the DeepSeek API key.
package authcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/deepgate/pkg/cliui"
	"github.com/papercomputeco/deepgate/pkg/config"
	"github.com/papercomputeco/deepgate/pkg/credentials"
	"github.com/papercomputeco/deepgate/pkg/llm/provider"
	"github.com/papercomputeco/deepgate/pkg/llm/provider/deepseek"
)

const authLongDesc string = `Store the DeepSeek API key.

The key is stored in credentials.toml in the .deepgate/ directory and is
picked up by a running gateway without a restart. The DEEPSEEK_API_KEY
environment variable, when set, always takes precedence over the stored key.

Unless --no-verify is given, the key is checked against the DeepSeek API
before it is stored.

Examples:
  deepgate auth                    Prompt for the API key
  echo $KEY | deepgate auth        Pipe the API key from stdin
  deepgate auth --show             Show the stored key, masked
  deepgate auth --remove           Remove the stored key`

const authShortDesc string = "Store the DeepSeek API key"

const validateTimeout = 15 * time.Second

type authCommander struct {
	configDir string
	noVerify  bool
	remove    bool
	show      bool

	in  io.Reader
	out io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			switch {
			case cmder.remove:
				return cmder.runRemove()
			case cmder.show:
				return cmder.runShow()
			default:
				return cmder.runAuth(cmd.Context())
			}
		},
	}

	cmd.Flags().BoolVar(&cmder.noVerify, "no-verify", false, "Store the key without checking it against the DeepSeek API")
	cmd.Flags().BoolVar(&cmder.remove, "remove", false, "Remove the stored key")
	cmd.Flags().BoolVar(&cmder.show, "show", false, "Show the stored key, masked")
	cmd.MarkFlagsMutuallyExclusive("remove", "show", "no-verify")

	return cmd
}

func (c *authCommander) runAuth(ctx context.Context) error {
	apiKey, err := c.readAPIKey()
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	if !c.noVerify {
		if err := c.verify(ctx, apiKey); err != nil {
			return err
		}
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetKey(credentials.ProviderDeepSeek, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored %s credentials %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(credentials.ProviderDeepSeek),
		cliui.DimStyle.Render("("+cliui.Truncate(mgr.GetTarget(), 60)+")"),
	)

	if os.Getenv(config.APIKeyEnv) != "" {
		fmt.Fprintf(c.out, "  %s %s is set and takes precedence over the stored key.\n",
			cliui.WarnStyle.Render("!"), config.APIKeyEnv)
	}

	fmt.Fprintln(c.out)
	return nil
}

// verify checks apiKey against the upstream configured in config.toml.
func (c *authCommander) verify(ctx context.Context, apiKey string) error {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	upstream, err := provider.New(provider.DeepSeek, deepseek.Options{
		BaseURL:            cfg.Upstream.BaseURL,
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
		Timeout:            validateTimeout,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	err = cliui.Step(c.out, "Verifying API key", func() error {
		return upstream.ValidateKey(ctx, apiKey)
	})
	if err == nil {
		return nil
	}

	var httpErr *deepseek.UpstreamHTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("API key rejected by DeepSeek: %s", httpErr.Message())
	}
	return fmt.Errorf("could not verify API key (use --no-verify to store it anyway): %w", err)
}

func (c *authCommander) runShow() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	key, err := mgr.GetKey(credentials.ProviderDeepSeek)
	if err != nil {
		return err
	}

	if key == "" {
		fmt.Fprintf(c.out, "\n  %s No stored API key.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'deepgate auth' to store one.\n\n")
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s  %s\n",
		cliui.KeyStyle.Render(credentials.ProviderDeepSeek),
		cliui.ValueStyle.Render(credentials.MaskKey(key)),
	)
	if os.Getenv(config.APIKeyEnv) != "" {
		fmt.Fprintf(c.out, "  %s %s overrides the stored key.\n",
			cliui.WarnStyle.Render("!"), config.APIKeyEnv)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *authCommander) runRemove() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveKey(credentials.ProviderDeepSeek); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed %s credentials.\n\n",
		cliui.SuccessMark, cliui.NameStyle.Render(credentials.ProviderDeepSeek))

	return nil
}

// readAPIKey reads the key from stdin. A terminal gets a hidden prompt;
// anything else is read up to the first newline.
func (c *authCommander) readAPIKey() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(c.out, "Enter DeepSeek API key (%s): ", config.APIKeyEnv)

		keyBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading API key: %w", err)
		}
		return string(keyBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
