// Package client is the HTTP client CLI commands use to talk to a running
// deepgate gateway and its usage API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/sse"
	"github.com/papercomputeco/deepgate/pkg/storage"
)

const defaultTimeout = 30 * time.Second

// StatusError is a non-2xx response from the gateway or the usage API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client calls a deepgate gateway and usage API.
type Client struct {
	gateway string
	api     string

	// http bounds blocking calls; stream has no overall timeout.
	http   *http.Client
	stream *http.Client
}

// New creates a Client. Targets are full base URLs, e.g.
// "http://localhost:8080".
func New(gatewayTarget, apiTarget string) *Client {
	return &Client{
		gateway: strings.TrimRight(gatewayTarget, "/"),
		api:     strings.TrimRight(apiTarget, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		stream:  &http.Client{},
	}
}

// Ping checks that the gateway answers.
func (c *Client) Ping(ctx context.Context) error {
	var out string
	if err := c.getJSON(ctx, c.gateway+"/ping", &out); err != nil {
		return err
	}
	if out != "pong" {
		return fmt.Errorf("unexpected ping reply %q", out)
	}
	return nil
}

// Models lists upstream models through the gateway.
func (c *Client) Models(ctx context.Context) (*llm.ModelList, error) {
	out := &llm.ModelList{}
	return out, c.getJSON(ctx, c.gateway+"/models", out)
}

// Balance returns the upstream account balance through the gateway.
func (c *Client) Balance(ctx context.Context) (*llm.Balance, error) {
	out := &llm.Balance{}
	return out, c.getJSON(ctx, c.gateway+"/balance", out)
}

// CheckAPIKey reports the gateway's credential status.
func (c *Client) CheckAPIKey(ctx context.Context) (*llm.KeyStatus, error) {
	out := &llm.KeyStatus{}
	return out, c.getJSON(ctx, c.gateway+"/check_api_key", out)
}

// SetAPIKey asks the gateway to validate and persist key.
func (c *Client) SetAPIKey(ctx context.Context, key string) (*llm.SetKeyResult, error) {
	out := &llm.SetKeyResult{}
	return out, c.postJSON(ctx, c.http, c.gateway+"/set_api_key", llm.SetKeyRequest{APIKey: key}, out)
}

// Chat performs a blocking completion through the gateway.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := *req
	body.Stream = false

	out := &llm.ChatResponse{}
	return out, c.postJSON(ctx, c.stream, c.gateway+"/chat", &body, out)
}

// Stream performs a streaming completion through the gateway, calling fn for
// every event until the terminal one. It returns the terminal event.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest, fn func(llm.StreamEvent)) (llm.StreamEvent, error) {
	payload, err := sonic.ConfigStd.Marshal(req)
	if err != nil {
		return llm.StreamEvent{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gateway+"/stream", bytes.NewReader(payload))
	if err != nil {
		return llm.StreamEvent{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return llm.StreamEvent{}, fmt.Errorf("sending request to gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.StreamEvent{}, statusError(resp)
	}

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			return llm.StreamEvent{}, fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return llm.StreamEvent{}, errors.New("stream ended without a terminal event")
		}

		var event llm.StreamEvent
		if err := sonic.ConfigStd.UnmarshalFromString(ev.Data, &event); err != nil {
			return llm.StreamEvent{}, fmt.Errorf("decoding stream event: %w", err)
		}

		fn(event)
		if event.FinishReason != nil {
			return event, nil
		}
	}
}

// Usage lists recent usage records from the usage API.
func (c *Client) Usage(ctx context.Context, limit int) ([]*storage.Record, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Records []*storage.Record `json:"records"`
	}
	if err := c.getJSON(ctx, c.api+"/usage?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// UsageSummary returns aggregated usage from the usage API.
func (c *Client) UsageSummary(ctx context.Context) (*storage.Summary, error) {
	out := storage.NewSummary()
	return out, c.getJSON(ctx, c.api+"/usage/summary", out)
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(c.http, req, out)
}

func (c *Client) postJSON(ctx context.Context, hc *http.Client, target string, in, out any) error {
	payload, err := sonic.ConfigStd.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(hc, req, out)
}

func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := sonic.ConfigStd.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// statusError extracts the {"error": ...} message of a failed response.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er llm.ErrorResponse
	msg := strings.TrimSpace(string(body))
	if err := sonic.ConfigStd.Unmarshal(body, &er); err == nil && er.Error != "" {
		msg = er.Error
	}

	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
