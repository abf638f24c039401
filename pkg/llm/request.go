package llm

import (
	"errors"
	"fmt"
)

// ErrNoMessages is returned by ChatRequest.Validate when messages is empty.
var ErrNoMessages = errors.New("messages must not be empty")

// ChatRequest is the normalized chat completion request accepted by the
// gateway on both /chat and /stream.
type ChatRequest struct {
	// Conversation messages, oldest first
	Messages []Message `json:"messages"`

	// Model name. Empty selects the configured default model.
	Model string `json:"model,omitempty"`

	// Generation parameters. Nil selects the configured default.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	// Stream must be false on /chat. /stream forces it on.
	Stream bool `json:"stream,omitempty"`

	// JSONMode asks upstream for a JSON object response.
	JSONMode bool `json:"json_mode,omitempty"`
}

// Validate checks the request invariants: at least one message and every
// role drawn from the closed Role set.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrNoMessages
	}

	for i, msg := range r.Messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("messages[%d]: invalid role %q", i, msg.Role)
		}
	}

	return nil
}
