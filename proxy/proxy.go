// Package proxy provides the deepgate HTTP gateway: a normalized chat API in
// front of DeepSeek with a streaming relay and auxiliary account endpoints.
package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/llm/provider"
	"github.com/papercomputeco/deepgate/pkg/relay"
	"github.com/papercomputeco/deepgate/pkg/sse"
	"github.com/papercomputeco/deepgate/proxy/header"
	"github.com/papercomputeco/deepgate/proxy/worker"
)

// KeyManager resolves and persists the upstream credential.
// *config.Store satisfies it.
type KeyManager interface {
	APIKey() string
	SetAPIKey(key string) error
	EnvKeyOverrides() bool
}

// Proxy is the deepgate gateway. It translates normalized chat requests into
// upstream calls and enqueues a usage record for every completed call via the
// worker pool.
type Proxy struct {
	config        Config
	provider      provider.Provider
	relay         *relay.Relay
	keys          KeyManager
	workerPool    *worker.Pool
	logger        *slog.Logger
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy. The worker pool is optional; without one no usage
// is recorded.
func New(config Config, prov provider.Provider, keys KeyManager, pool *worker.Pool, logger *slog.Logger) (*Proxy, error) {
	if prov == nil {
		return nil, errors.New("provider is required")
	}
	if keys == nil {
		return nil, errors.New("key manager is required")
	}

	if config.KeepAliveInterval <= 0 {
		config.KeepAliveInterval = DefaultKeepAliveInterval
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		JSONEncoder:           sonic.ConfigStd.Marshal,
		JSONDecoder:           sonic.ConfigStd.Unmarshal,
		ErrorHandler:          fiberErrorHandler,
	})

	// SSE responses are streamed through a pipe and must not be buffered
	// for compression.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/stream")
		},
	}))

	p := &Proxy{
		config:        config,
		provider:      prov,
		relay:         relay.New(prov, logger),
		keys:          keys,
		workerPool:    pool,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	p.routes(app)
	if prefix := strings.TrimRight(config.Prefix, "/"); prefix != "" {
		p.routes(app.Group(prefix))
	}

	return p, nil
}

func (p *Proxy) routes(r fiber.Router) {
	r.Post("/chat", p.handleChat)
	r.Post("/stream", p.handleStream)
	r.Get("/models", p.handleModels)
	r.Get("/balance", p.handleBalance)
	r.Get("/check_api_key", p.handleCheckAPIKey)
	r.Post("/set_api_key", p.handleSetAPIKey)
	r.Get("/ping", p.handlePing)
}

// App returns the underlying fiber app, for tests and embedding.
func (p *Proxy) App() *fiber.App {
	return p.server
}

// Run starts the gateway on the configured listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting gateway",
		"listen", p.config.ListenAddr,
		"prefix", p.config.Prefix,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the gateway using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting gateway",
		"listen", listener.Addr().String(),
		"prefix", p.config.Prefix,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the gateway. In-flight streams are allowed to
// finish. The worker pool is owned by the caller and is not closed.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

func (p *Proxy) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// decodeChatRequest parses and validates a ChatRequest body.
func decodeChatRequest(c *fiber.Ctx) (*llm.ChatRequest, error) {
	req := &llm.ChatRequest{}
	if err := sonic.ConfigStd.Unmarshal(c.Body(), req); err != nil {
		return nil, unprocessable("invalid request body: %v", err)
	}
	if err := req.Validate(); err != nil {
		return nil, badRequest("%v", err)
	}
	return req, nil
}

// handleChat performs one blocking completion.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()
	reqID := p.headerHandler.RequestID(c)

	req, err := decodeChatRequest(c)
	if err != nil {
		return p.sendError(c, reqID, err, fiber.StatusInternalServerError)
	}
	if req.Stream {
		return p.sendError(c, reqID, badRequest("streaming requests must use the /stream endpoint"), fiber.StatusInternalServerError)
	}

	p.logger.Debug("forwarding chat request",
		"request_id", reqID,
		"model", req.Model,
		"message_count", len(req.Messages),
	)

	resp, err := p.provider.ChatCompletion(c.Context(), req)
	if err != nil {
		return p.sendError(c, reqID, err, fiber.StatusInternalServerError)
	}

	duration := time.Since(startTime)
	p.logger.Info("chat completed",
		"request_id", reqID,
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"duration", duration,
	)

	p.recordChat(reqID, resp, duration)

	return c.JSON(resp)
}

// handleStream relays a streaming completion as normalized SSE events.
//
// Failures before the first event are reported as ordinary JSON errors.
// Once headers are sent, failures surface as the stream's terminal event.
func (p *Proxy) handleStream(c *fiber.Ctx) error {
	reqID := p.headerHandler.RequestID(c)

	req, err := decodeChatRequest(c)
	if err != nil {
		return p.sendError(c, reqID, err, fiber.StatusInternalServerError)
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the stream is pumped
	// asynchronously and needs the upstream connection to remain open.
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := p.relay.Open(ctx, req)
	if err != nil {
		cancel()
		return p.sendError(c, reqID, err, fiber.StatusInternalServerError)
	}

	p.logger.Debug("stream opened",
		"request_id", reqID,
		"model", stream.Summary().Model,
	)

	p.headerHandler.SetStreamHeaders(c)

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter buffers chunks in fasthttp's internal pipe, so
	// events would reach the client in batches. With io.Pipe, pw.Write blocks
	// until fasthttp's chunked body writer consumes the frame and flushes it
	// to the socket, giving per-event delivery and direct backpressure.
	pr, pw := io.Pipe()
	go p.pumpStream(stream, cancel, pw, reqID)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// pumpStream copies normalized events from stream to pw until the stream
// ends or the client goes away, then records usage.
//
// Recv runs on its own goroutine so that an idle upstream does not hide a
// disconnected client: while no event is pending, keep-alive comments are
// written every KeepAliveInterval, and the first failed write closes the
// stream, which unblocks Recv and releases the upstream connection. Only
// this goroutine writes to pw.
func (p *Proxy) pumpStream(stream *relay.Stream, cancel context.CancelFunc, pw *io.PipeWriter, reqID string) {
	defer cancel()
	defer pw.Close()

	events := make(chan llm.StreamEvent)
	go func() {
		defer close(events)
		for {
			ev, err := stream.Recv()
			if err != nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(p.config.KeepAliveInterval)
	defer ticker.Stop()

	w := sse.NewWriter(pw)

pump:
	for {
		var err error
		select {
		case ev, ok := <-events:
			if !ok {
				break pump
			}
			err = w.WriteJSON(ev)
		case <-ticker.C:
			err = w.WriteComment("keep-alive")
		}

		if err != nil {
			// The pipe reader is closed when fasthttp stops writing the
			// response, which means the client disconnected.
			p.logger.Debug("client went away during stream",
				"request_id", reqID,
				"error", err,
			)
			break pump
		}
	}

	_ = stream.Close()
	for range events {
	}

	sum := stream.Summary()
	p.logger.Info("stream finished",
		"request_id", reqID,
		"model", sum.Model,
		"outcome", sum.Outcome.String(),
		"frames", sum.Frames,
		"parse_errors", sum.ParseErrors,
		"skipped_lines", sum.SkippedLines,
		"cancelled", sum.Cancelled,
		"duration", sum.Duration,
	)

	p.recordStream(reqID, sum)
}

func (p *Proxy) handleModels(c *fiber.Ctx) error {
	reqID := p.headerHandler.RequestID(c)

	models, err := p.provider.ListModels(c.Context())
	if err != nil {
		return p.sendError(c, reqID, err, fiber.StatusUnauthorized)
	}
	return c.JSON(models)
}

func (p *Proxy) handleBalance(c *fiber.Ctx) error {
	reqID := p.headerHandler.RequestID(c)

	balance, err := p.provider.Balance(c.Context())
	if err != nil {
		return p.sendError(c, reqID, err, fiber.StatusUnauthorized)
	}
	return c.JSON(balance)
}
