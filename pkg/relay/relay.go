// Package relay turns an upstream chat-completion SSE stream into normalized
// stream events, one per upstream data frame, and guarantees that every
// stream ends with a terminal event however the upstream connection ends.
package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/llm/provider"
	"github.com/papercomputeco/deepgate/pkg/sse"
)

// Relay opens normalized streams against an upstream provider.
type Relay struct {
	provider provider.Provider
	logger   *slog.Logger
}

// New creates a Relay.
func New(prov provider.Provider, logger *slog.Logger) *Relay {
	return &Relay{provider: prov, logger: logger}
}

// Summary describes a finished (or failed) stream for accounting.
type Summary struct {
	// Model is the model upstream reported, else the requested one.
	Model string

	// Frames counts upstream data frames, including [DONE].
	Frames int

	// ParseErrors counts frames whose payload could not be decoded.
	ParseErrors int

	// SkippedLines counts non-empty upstream lines that were not data
	// frames, such as keep-alive comments.
	SkippedLines int

	// Usage is the last usage block upstream sent, if any.
	Usage *llm.Usage

	// Outcome is the last state before Closed.
	Outcome State

	// FinishReason is the last finish reason emitted downstream.
	FinishReason string

	// ContentLength is the number of content bytes emitted.
	ContentLength int

	// Cancelled is set when the stream was closed or its context
	// cancelled before a terminal event.
	Cancelled bool

	Duration time.Duration
}

// Stream is a pull iterator over normalized events. It is not safe for
// concurrent Recv calls, but Close and State may be called from any goroutine.
type Stream struct {
	prov   provider.Provider
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	reader *sse.Reader

	state   atomic.Int32
	outcome atomic.Int32
	done    bool

	mu           sync.Mutex
	model        string
	frames       int
	parseErrors  int
	skipped      int
	usage        *llm.Usage
	finishReason string
	content      int
	cancelled    bool
	started      time.Time
	finished     time.Time

	closeOnce sync.Once
}

// Open starts a streaming completion for req, forcing stream mode on.
//
// The returned Stream is never nil. When Open fails the Stream is already
// closed, yields no events, and its Summary describes the failure:
//   - a missing credential returns a *deepseek.ConfigError and the stream
//     never leaves Idle
//   - a non-2xx upstream returns a *deepseek.UpstreamHTTPError and the
//     outcome is UpstreamFailed
//   - a transport failure returns a *deepseek.UpstreamNetworkError and the
//     outcome is UpstreamFailed
//
// The upstream request is bound to a context derived from ctx; cancelling
// ctx or calling Close aborts it.
func (r *Relay) Open(ctx context.Context, req *llm.ChatRequest) (*Stream, error) {
	streamReq := *req
	streamReq.Stream = true

	sctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		prov:    r.provider,
		logger:  r.logger,
		ctx:     sctx,
		cancel:  cancel,
		model:   r.provider.ResolveModel(req.Model),
		started: time.Now(),
	}
	s.setState(Idle)

	if err := r.provider.Ready(); err != nil {
		s.done = true
		s.Close()
		return s, err
	}

	s.setState(Connecting)

	body, err := r.provider.OpenStream(sctx, &streamReq)
	if err != nil {
		s.done = true
		s.finish(UpstreamFailed, "")
		s.Close()
		return s, err
	}

	s.body = body
	s.reader = sse.NewReader(body)
	s.setState(Streaming)

	return s, nil
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// setState moves to st unless the stream is already Closed. Every state
// other than Closed is also recorded as the outcome.
func (s *Stream) setState(st State) {
	for {
		cur := s.state.Load()
		if State(cur) == Closed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(st)) {
			break
		}
	}
	if st != Closed {
		s.outcome.Store(int32(st))
	}
}

// Recv returns the next normalized event. It returns io.EOF after the
// terminal event has been delivered, and on every call after that.
func (s *Stream) Recv() (llm.StreamEvent, error) {
	if s.done {
		return llm.StreamEvent{}, io.EOF
	}

	switch s.State() {
	case Closed:
		s.done = true
		return llm.StreamEvent{}, io.EOF
	case ParseDegraded:
		s.state.CompareAndSwap(int32(ParseDegraded), int32(Streaming))
	}

	ev, err := s.reader.Next()

	s.mu.Lock()
	s.skipped = s.reader.Skipped
	s.mu.Unlock()

	if err != nil || ev == nil {
		return s.failEvent(err), nil
	}

	s.mu.Lock()
	s.frames++
	s.mu.Unlock()

	if ev.IsDone() {
		s.done = true
		s.finish(Completed, llm.FinishStop)
		s.release()
		return llm.StopEvent(), nil
	}

	chunk, err := s.prov.ParseStreamChunk([]byte(ev.Data))
	if err != nil {
		s.mu.Lock()
		s.parseErrors++
		s.mu.Unlock()

		s.logger.Warn("could not parse upstream frame",
			"error", err,
			"payload_bytes", len(ev.Data),
		)
		s.setState(ParseDegraded)
		return llm.ParseErrorEvent(), nil
	}

	s.mu.Lock()
	if chunk.Model != "" {
		s.model = chunk.Model
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		s.usage = &u
	}
	if chunk.Event.FinishReason != nil {
		s.finishReason = *chunk.Event.FinishReason
	}
	s.content += len(chunk.Event.Content)
	s.mu.Unlock()

	return chunk.Event, nil
}

// failEvent ends a stream that stopped before [DONE] and returns the
// synthesized terminal event.
func (s *Stream) failEvent(readErr error) llm.StreamEvent {
	s.done = true

	cancelled := s.ctx.Err() != nil
	switch {
	case cancelled:
		s.logger.Debug("stream cancelled before completion")
	case readErr != nil && !errors.Is(readErr, io.EOF):
		s.logger.Warn("upstream stream read failed", "error", readErr)
	default:
		s.logger.Warn("upstream stream ended without [DONE]")
	}

	s.mu.Lock()
	s.cancelled = s.cancelled || cancelled
	s.mu.Unlock()

	s.finish(UpstreamFailed, llm.FinishError)
	s.release()

	return llm.ErrorEvent()
}

// finish records a terminal outcome.
func (s *Stream) finish(outcome State, finishReason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished.IsZero() {
		s.finished = time.Now()
	}
	if finishReason != "" && (finishReason == llm.FinishError || s.finishReason == "") {
		s.finishReason = finishReason
	}

	s.outcome.Store(int32(outcome))
	s.setState(outcome)
}

// release closes the upstream body and cancels the upstream request.
func (s *Stream) release() {
	s.cancel()
	if s.body != nil {
		_ = s.body.Close()
	}
}

// Close releases the upstream connection. It is idempotent and safe to call
// concurrently with Recv; a blocked Recv returns promptly.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if o := State(s.outcome.Load()); !o.Terminal() && o != Idle {
			s.mu.Lock()
			s.cancelled = true
			s.mu.Unlock()
			s.outcome.Store(int32(UpstreamFailed))
		}

		s.mu.Lock()
		if s.finished.IsZero() {
			s.finished = time.Now()
		}
		s.mu.Unlock()

		s.release()
		s.setState(Closed)
	})
	return nil
}

// Summary reports what the stream has seen so far.
func (s *Stream) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.finished
	if end.IsZero() {
		end = time.Now()
	}

	sum := Summary{
		Model:         s.model,
		Frames:        s.frames,
		ParseErrors:   s.parseErrors,
		SkippedLines:  s.skipped,
		Outcome:       State(s.outcome.Load()),
		FinishReason:  s.finishReason,
		ContentLength: s.content,
		Cancelled:     s.cancelled,
		Duration:      end.Sub(s.started),
	}
	if s.usage != nil {
		u := *s.usage
		sum.Usage = &u
	}
	return sum
}
