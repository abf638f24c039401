package deepseek

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// ErrMissingCredential is wrapped in a *ConfigError when no API key is
// configured. It is detected before any network I/O.
var ErrMissingCredential = errors.New("DeepSeek API key is not configured: set DEEPSEEK_API_KEY or run `deepgate auth`")

// ConfigError reports a local configuration problem.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// UpstreamHTTPError is a non-2xx upstream response. Body holds the upstream
// body text, truncated to maxErrorBody bytes.
type UpstreamHTTPError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamHTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("upstream returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, body)
}

// Message returns upstream's error.message when the body is the standard
// error envelope, and the status line otherwise.
func (e *UpstreamHTTPError) Message() string {
	var body errorBody
	if err := sonic.ConfigStd.UnmarshalFromString(e.Body, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	if b := strings.TrimSpace(e.Body); b != "" {
		return b
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// UpstreamNetworkError is a transport failure before a response was received.
type UpstreamNetworkError struct {
	Op  string
	Err error
}

func (e *UpstreamNetworkError) Error() string {
	return fmt.Sprintf("upstream request failed: %s: %v", e.Op, e.Err)
}

func (e *UpstreamNetworkError) Unwrap() error { return e.Err }
