// Package provider defines the upstream contract the gateway and the relay
// depend on.
package provider

import (
	"context"
	"io"

	"github.com/papercomputeco/deepgate/pkg/llm"
)

// Provider is an upstream chat-completion API.
type Provider interface {
	// Name returns the canonical provider name (e.g., "deepseek").
	Name() string

	// ResolveModel returns the model a request naming model would be sent
	// to, applying configured defaults to an empty name.
	ResolveModel(model string) string

	// Ready reports a local configuration problem, such as a missing
	// credential, without any network I/O.
	Ready() error

	// ChatCompletion performs one blocking completion.
	ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	// OpenStream starts a streaming completion and returns the raw SSE body
	// on a 2xx response. The caller closes it.
	OpenStream(ctx context.Context, req *llm.ChatRequest) (io.ReadCloser, error)

	// ParseStreamChunk converts the JSON payload of a single data frame into
	// the internal format.
	ParseStreamChunk(payload []byte) (*llm.StreamChunk, error)

	// ListModels lists the models available to the configured credential.
	ListModels(ctx context.Context) (*llm.ModelList, error)

	// Balance returns the account balance for the configured credential.
	Balance(ctx context.Context) (*llm.Balance, error)

	// ValidateKey checks a candidate credential without storing it.
	ValidateKey(ctx context.Context, key string) error
}
