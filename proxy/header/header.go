// Package header manages the headers deepgate sets on gateway responses.
package header

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID between client, gateway and logs.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client supplied request IDs.
const maxRequestIDLen = 128

// streamHeaders are set on every SSE response. X-Accel-Buffering disables
// response buffering in nginx-style reverse proxies.
var streamHeaders = [][2]string{
	{fiber.HeaderContentType, "text/event-stream; charset=utf-8"},
	{fiber.HeaderCacheControl, "no-cache"},
	{fiber.HeaderConnection, "keep-alive"},
	{"X-Accel-Buffering", "no"},
}

// Handler manages gateway response headers.
type Handler struct {
	newID func() string
}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{newID: uuid.NewString}
}

// RequestID returns the client's X-Request-ID when it is usable, else a
// fresh UUID, and echoes it on the response.
func (h *Handler) RequestID(c *fiber.Ctx) string {
	id := strings.TrimSpace(c.Get(RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLen || strings.ContainsAny(id, "\r\n") {
		id = h.newID()
	}

	c.Set(RequestIDHeader, id)
	return id
}

// SetStreamHeaders prepares the response for Server-Sent Events.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx) {
	for _, kv := range streamHeaders {
		c.Set(kv[0], kv[1])
	}
}
