// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// line reader and frame writer for the deepgate relay.
//
// The reader is deliberately stricter than a general SSE client: upstream
// chat completion streams carry exactly one "data: " line per frame, so each
// such line is surfaced as its own Event and every other line (comments,
// keep-alives, "event:" and "id:" fields) is skipped.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DataPrefix is the exact line prefix that marks a payload line.
const DataPrefix = "data: "

// DoneSentinel is the payload upstream sends to mark a normal end of stream.
const DoneSentinel = "[DONE]"

// Event represents a single upstream data line with its prefix stripped.
type Event struct {
	// Data is the payload following the "data: " prefix.
	Data string
}

// IsDone reports whether the event carries the end-of-stream sentinel.
func (e *Event) IsDone() bool {
	return e.Data == DoneSentinel
}
