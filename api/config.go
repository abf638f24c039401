// Package api provides the deepgate usage API: recorded usage, aggregated
// token totals and an MCP endpoint over the same gateway operations.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// PProf mounts net/http/pprof under /debug/pprof
	PProf bool
}
