// Package deepseek is the upstream client for the DeepSeek chat-completion
// API. It builds request payloads, performs blocking and streaming calls, and
// decodes upstream envelopes into the normalized pkg/llm types.
package deepseek

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/papercomputeco/deepgate/pkg/llm"
)

// ProviderName is the canonical provider name.
const ProviderName = "deepseek"

const (
	// FallbackModel is used when neither the request nor the config names one.
	FallbackModel = "deepseek-chat"

	fallbackTemperature = 1.0
	fallbackMaxTokens   = 1000

	defaultTimeout = 5 * time.Minute

	// maxErrorBody bounds how much of an upstream error body is kept.
	maxErrorBody = 64 << 10
)

// CredentialSource resolves the upstream API key at call time.
type CredentialSource interface {
	APIKey() string
}

// Options configures a Client.
type Options struct {
	BaseURL            string
	DefaultModel       string
	DefaultTemperature *float64
	DefaultMaxTokens   int
	InsecureSkipVerify bool
	Timeout            time.Duration
	Credentials        CredentialSource
}

// Client talks to the DeepSeek API. It is safe for concurrent use and its
// options can be swapped at runtime with Update.
type Client struct {
	mu     sync.RWMutex
	opts   Options
	http   *http.Client
	stream *http.Client
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{}
	c.Update(opts)
	return c
}

// Update replaces the client options. In-flight requests keep the transport
// they started with.
func (c *Client) Update(opts Options) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		ForceAttemptHTTP2:     true,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via upstream.insecure_skip_verify
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.opts = opts

	// Blocking calls are bounded end to end. Streams are bounded only until
	// headers arrive; the body lives as long as the caller's context.
	c.http = &http.Client{Transport: transport, Timeout: opts.Timeout}
	c.stream = &http.Client{Transport: transport}
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

func (c *Client) snapshot() (Options, *http.Client, *http.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts, c.http, c.stream
}

// BuildPayload turns a normalized request into the upstream body. Request
// values win over configured defaults, which win over the built-in fallbacks.
func (c *Client) BuildPayload(req *llm.ChatRequest, stream bool) *Payload {
	opts, _, _ := c.snapshot()
	return buildPayload(opts, req, stream)
}

func buildPayload(opts Options, req *llm.ChatRequest, stream bool) *Payload {
	p := &Payload{
		Model:       resolveModel(opts, req.Model),
		Messages:    req.Messages,
		Temperature: fallbackTemperature,
		MaxTokens:   opts.DefaultMaxTokens,
		TopP:        req.TopP,
		Stream:      stream,
	}

	switch {
	case req.Temperature != nil:
		p.Temperature = *req.Temperature
	case opts.DefaultTemperature != nil:
		p.Temperature = *opts.DefaultTemperature
	}

	if req.MaxTokens != nil {
		p.MaxTokens = *req.MaxTokens
	} else if p.MaxTokens == 0 {
		p.MaxTokens = fallbackMaxTokens
	}

	if req.JSONMode {
		p.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	return p
}

// ResolveModel returns model, else the configured default, else FallbackModel.
func (c *Client) ResolveModel(model string) string {
	opts, _, _ := c.snapshot()
	return resolveModel(opts, model)
}

func resolveModel(opts Options, model string) string {
	if model != "" {
		return model
	}
	if opts.DefaultModel != "" {
		return opts.DefaultModel
	}
	return FallbackModel
}

// credential returns the API key or a *ConfigError when none is configured.
func credential(opts Options) (string, error) {
	if opts.Credentials == nil {
		return "", &ConfigError{Err: ErrMissingCredential}
	}
	key := opts.Credentials.APIKey()
	if key == "" {
		return "", &ConfigError{Err: ErrMissingCredential}
	}
	return key, nil
}

// Ready returns a *ConfigError when no credential is configured.
func (c *Client) Ready() error {
	opts, _, _ := c.snapshot()
	_, err := credential(opts)
	return err
}

// ChatCompletion performs a blocking completion.
func (c *Client) ChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	opts, client, _ := c.snapshot()

	key, err := credential(opts)
	if err != nil {
		return nil, err
	}

	payload := buildPayload(opts, req, false)
	resp, err := c.post(ctx, client, opts, key, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamNetworkError{Op: "read response", Err: err}
	}

	chatResp, err := ParseResponse(body)
	if err != nil {
		return nil, err
	}
	chatResp.Model = payload.Model

	return chatResp, nil
}

// OpenStream starts a streaming completion and returns the live SSE body.
// The body is returned only for a 2xx response; the caller must close it.
// Cancelling ctx aborts the transfer and unblocks pending reads.
func (c *Client) OpenStream(ctx context.Context, req *llm.ChatRequest) (io.ReadCloser, error) {
	opts, _, client := c.snapshot()

	key, err := credential(opts)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, client, opts, key, buildPayload(opts, req, true))
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// post sends payload to /chat/completions and returns a 2xx response.
func (c *Client) post(ctx context.Context, client *http.Client, opts Options, key string, payload *Payload) (*http.Response, error) {
	body, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	setHeaders(httpReq, key)
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return do(client, httpReq, "chat completion")
}

// ListModels fetches the models available to the configured key.
func (c *Client) ListModels(ctx context.Context) (*llm.ModelList, error) {
	var upstream modelsResponse
	if err := c.getJSON(ctx, "/models", "", &upstream); err != nil {
		return nil, err
	}

	list := &llm.ModelList{Object: "list", Data: make([]llm.ModelInfo, 0, len(upstream.Data))}
	for _, m := range upstream.Data {
		list.Data = append(list.Data, llm.NewModelInfo(m.ID, m.Object, m.OwnedBy))
	}
	return list, nil
}

// Balance fetches the account balance.
func (c *Client) Balance(ctx context.Context) (*llm.Balance, error) {
	var upstream balanceResponse
	if err := c.getJSON(ctx, "/user/balance", "", &upstream); err != nil {
		return nil, err
	}

	bal := &llm.Balance{
		IsAvailable:  upstream.IsAvailable,
		BalanceInfos: make([]llm.BalanceInfo, 0, len(upstream.BalanceInfos)),
	}
	for _, b := range upstream.BalanceInfos {
		bal.BalanceInfos = append(bal.BalanceInfos, llm.NewBalanceInfo(b.Currency, b.TotalBalance, b.GrantedBalance, b.ToppedUpBalance))
	}
	return bal, nil
}

// ValidateKey checks key against upstream by listing models with it. A nil
// error means upstream accepted the key. Rejections are *UpstreamHTTPError
// and transport failures *UpstreamNetworkError.
func (c *Client) ValidateKey(ctx context.Context, key string) error {
	if key == "" {
		return &ConfigError{Err: ErrMissingCredential}
	}
	return c.getJSON(ctx, "/models", key, nil)
}

// getJSON issues an authenticated GET and decodes the 2xx body into out.
// An empty key selects the configured credential. A nil out discards the body.
func (c *Client) getJSON(ctx context.Context, path, key string, out any) error {
	opts, client, _ := c.snapshot()

	if key == "" {
		var err error
		if key, err = credential(opts); err != nil {
			return err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating upstream request: %w", err)
	}
	setHeaders(httpReq, key)

	resp, err := do(client, httpReq, "GET "+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamNetworkError{Op: "read " + path, Err: err}
	}
	if err := sonic.ConfigStd.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func setHeaders(req *http.Request, key string) {
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
}

// do sends req and converts transport failures and non-2xx statuses into
// typed errors. The returned response always has a 2xx status.
func do(client *http.Client, req *http.Request, op string) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &UpstreamNetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamHTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}
