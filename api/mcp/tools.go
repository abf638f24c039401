package mcp

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/storage"
)

var (
	chatToolName    = "chat"
	chatDescription = "Send a conversation to DeepSeek and return the complete assistant reply with token usage. Messages are ordered oldest first; roles are system, user and assistant."

	listModelsToolName    = "list_models"
	listModelsDescription = "List the DeepSeek models available to the configured API key."

	balanceToolName    = "balance"
	balanceDescription = "Return the DeepSeek account balance for the configured API key, per currency."

	usageSummaryToolName    = "usage_summary"
	usageSummaryDescription = "Return aggregated call counts and token usage recorded by the gateway, in total and per model."
)

// ChatInput represents the input arguments for the chat tool.
type ChatInput struct {
	Messages    []llm.Message `json:"messages" jsonschema:"the conversation, oldest message first"`
	Model       string        `json:"model,omitempty" jsonschema:"model name (default: the configured default model)"`
	Temperature *float64      `json:"temperature,omitempty" jsonschema:"sampling temperature"`
	MaxTokens   *int          `json:"max_tokens,omitempty" jsonschema:"maximum number of completion tokens"`
	JSONMode    bool          `json:"json_mode,omitempty" jsonschema:"ask for a JSON object reply"`
}

// ChatOutput represents the output of the chat tool.
type ChatOutput struct {
	Content      string    `json:"content"`
	Model        string    `json:"model"`
	FinishReason string    `json:"finish_reason,omitempty"`
	Usage        llm.Usage `json:"usage"`
}

// EmptyInput is the input of the tools that take no arguments.
type EmptyInput struct{}

func (s *Server) handleChat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, ChatOutput, error) {
	req := &llm.ChatRequest{
		Messages:    input.Messages,
		Model:       input.Model,
		Temperature: input.Temperature,
		MaxTokens:   input.MaxTokens,
		JSONMode:    input.JSONMode,
	}
	if err := req.Validate(); err != nil {
		return errorResult("Invalid chat request: %v", err), ChatOutput{}, nil
	}

	s.config.Logger.Debug("MCP chat request",
		"model", s.config.Provider.ResolveModel(input.Model),
		"messages", len(input.Messages),
	)

	resp, err := s.config.Provider.ChatCompletion(ctx, req)
	if err != nil {
		s.config.Logger.Error("MCP chat failed", "error", err)
		return errorResult("Chat failed: %v", err), ChatOutput{}, nil
	}

	output := ChatOutput{
		Content: resp.Content,
		Model:   resp.Model,
		Usage:   resp.Usage,
	}
	if resp.FinishReason != nil {
		output.FinishReason = *resp.FinishReason
	}

	return jsonResult(output)
}

func (s *Server) handleListModels(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, llm.ModelList, error) {
	models, err := s.config.Provider.ListModels(ctx)
	if err != nil {
		s.config.Logger.Error("MCP list models failed", "error", err)
		return errorResult("Listing models failed: %v", err), llm.ModelList{}, nil
	}

	return jsonResult(*models)
}

func (s *Server) handleBalance(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, llm.Balance, error) {
	balance, err := s.config.Provider.Balance(ctx)
	if err != nil {
		s.config.Logger.Error("MCP balance failed", "error", err)
		return errorResult("Balance lookup failed: %v", err), llm.Balance{}, nil
	}

	return jsonResult(*balance)
}

func (s *Server) handleUsageSummary(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, storage.Summary, error) {
	summary, err := s.config.Driver.Summary(ctx)
	if err != nil {
		s.config.Logger.Error("MCP usage summary failed", "error", err)
		return errorResult("Usage summary failed: %v", err), storage.Summary{}, nil
	}

	return jsonResult(*summary)
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// jsonResult returns out both as structured output and as JSON text content.
func jsonResult[T any](out T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := sonic.ConfigStd.Marshal(out)
	if err != nil {
		var zero T
		return errorResult("Failed to serialize results: %v", err), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, out, nil
}
