package llm

// ChatResponse is the normalized non-streaming completion.
type ChatResponse struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	Usage        Usage   `json:"usage"`
	FinishReason *string `json:"finish_reason"`
}

// Usage contains upstream token counts.
type Usage struct {
	PromptTokens        int                 `json:"prompt_tokens"`
	CompletionTokens    int                 `json:"completion_tokens"`
	TotalTokens         int                 `json:"total_tokens"`
	PromptTokensDetails PromptTokensDetails `json:"prompt_tokens_details"`
}

// PromptTokensDetails breaks down prompt tokens. CachedTokens is 0 when
// upstream does not report a cache hit count.
type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens"`
}
