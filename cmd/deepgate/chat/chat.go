// Package chatcmder provides the chat command for interactive LLM chat
// through a running deepgate gateway.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/deepgate/cmd/deepgate/remote"
	"github.com/papercomputeco/deepgate/pkg/cliui"
	"github.com/papercomputeco/deepgate/pkg/client"
	"github.com/papercomputeco/deepgate/pkg/llm"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

const chatLongDesc string = `Start an interactive chat session through the deepgate gateway.

Each message is sent to the gateway's /stream endpoint together with the
conversation so far, and the reply is printed as it arrives.

Commands:
  /reset   Start a new conversation
  /exit    Quit (Ctrl+D also quits)

Examples:
  deepgate chat
  deepgate chat --model deepseek-reasoner --render
  deepgate chat --system "Answer in JSON" --json-mode`

const chatShortDesc string = "Interactive chat through the deepgate gateway"

type chatCommander struct {
	model    string
	system   string
	render   bool
	jsonMode bool

	client *client.Client
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.client, err = remote.NewClient(cmd)
			if err != nil {
				return err
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run(cmd.Context())
		},
	}

	remote.AddTargetFlags(cmd)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model name (default: the gateway's default model)")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt for the conversation")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Re-render each finished reply as markdown")
	cmd.Flags().BoolVar(&cmder.jsonMode, "json-mode", false, "Ask for JSON object replies")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	messages := c.newConversation()

	model := c.model
	if model == "" {
		model = "gateway default"
	}
	fmt.Fprintf(c.out, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(model),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /reset starts over, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/reset":
			messages = c.newConversation()
			fmt.Fprintf(c.out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		messages = append(messages, llm.NewTextMessage(llm.RoleUser, input))

		reply, err := c.sendAndStream(ctx, messages)
		if err != nil {
			fmt.Fprintf(c.errOut, "\n  %s %v\n\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
			// Drop the failed user message so it can be retried
			messages = messages[:len(messages)-1]
			continue
		}

		messages = append(messages, llm.NewTextMessage(llm.RoleAssistant, reply))
		fmt.Fprint(c.out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) newConversation() []llm.Message {
	if c.system == "" {
		return nil
	}
	return []llm.Message{llm.NewTextMessage(llm.RoleSystem, c.system)}
}

// sendAndStream streams one reply to the output and returns its full text.
func (c *chatCommander) sendAndStream(ctx context.Context, messages []llm.Message) (string, error) {
	req := &llm.ChatRequest{
		Messages: messages,
		Model:    c.model,
		JSONMode: c.jsonMode,
	}

	fmt.Fprint(c.out, assistantPrompt)

	var content strings.Builder
	last, err := c.client.Stream(ctx, req, func(ev llm.StreamEvent) {
		if ev.Content == "" || ev.Content == llm.ParseErrorMarker {
			return
		}
		fmt.Fprint(c.out, ev.Content)
		content.WriteString(ev.Content)
	})
	if err != nil {
		return "", err
	}

	if *last.FinishReason == llm.FinishError {
		return "", fmt.Errorf("the upstream stream ended early")
	}

	if c.render && content.Len() > 0 {
		rendered, err := cliui.RenderMarkdown(content.String())
		if err == nil {
			fmt.Fprintf(c.out, "\n%s", rendered)
		}
	}

	return content.String(), nil
}
