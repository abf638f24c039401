package deepseek

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/papercomputeco/deepgate/pkg/llm"
)

// ParseResponse decodes a blocking chat completion envelope. Missing choices
// yield empty content and a nil finish reason.
func ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp completionResponse
	if err := sonic.ConfigStd.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decoding chat completion: %w", err)
	}

	out := &llm.ChatResponse{
		Model: resp.Model,
		Usage: resp.Usage.toUsage(),
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = nonEmpty(resp.Choices[0].FinishReason)
	}

	return out, nil
}

// ParseStreamChunk decodes the JSON payload of one streamed data frame.
// A frame without choices maps to an empty event.
func ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	var resp completionResponse
	if err := sonic.ConfigStd.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("decoding stream chunk: %w", err)
	}

	chunk := &llm.StreamChunk{Model: resp.Model}
	if len(resp.Choices) > 0 {
		chunk.Event.Content = resp.Choices[0].Delta.Content
		chunk.Event.FinishReason = nonEmpty(resp.Choices[0].FinishReason)
	}
	if resp.Usage != nil {
		u := resp.Usage.toUsage()
		chunk.Usage = &u
	}

	return chunk, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// ParseStreamChunk satisfies provider.Provider.
func (c *Client) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	return ParseStreamChunk(payload)
}
