package proxy

import "time"

// DefaultKeepAliveInterval is used when Config.KeepAliveInterval is zero.
const DefaultKeepAliveInterval = 5 * time.Second

// Config is the gateway server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Prefix mounts every route a second time under this path
	// (e.g., "/deepseek"). Empty or "/" mounts the routes at the root only.
	Prefix string

	// KeepAliveInterval is how often an idle stream writes an SSE comment
	// downstream. A failed write means the client is gone and the upstream
	// connection is released.
	KeepAliveInterval time.Duration
}
