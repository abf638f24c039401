package llm

// Finish reasons carried on StreamEvent and ChatResponse.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"

	// FinishError is never sent by upstream. The relay emits it when the
	// upstream stream ends without the [DONE] sentinel.
	FinishError = "error"
)

// ParseErrorMarker replaces the content of a streamed frame whose payload
// could not be decoded.
const ParseErrorMarker = "[解析错误]"

// StreamEvent is one normalized downstream SSE event.
// FinishReason is always serialized and is null while generation continues.
type StreamEvent struct {
	Content      string  `json:"content"`
	FinishReason *string `json:"finish_reason"`
}

// StopEvent is emitted once when upstream sends its [DONE] sentinel.
func StopEvent() StreamEvent {
	return StreamEvent{FinishReason: FinishReasonPtr(FinishStop)}
}

// ErrorEvent terminates a stream that ended without a sentinel.
func ErrorEvent() StreamEvent {
	return StreamEvent{FinishReason: FinishReasonPtr(FinishError)}
}

// ParseErrorEvent stands in for an undecodable upstream frame.
func ParseErrorEvent() StreamEvent {
	return StreamEvent{Content: ParseErrorMarker}
}

// FinishReasonPtr returns a pointer to reason, or nil for an empty string.
func FinishReasonPtr(reason string) *string {
	if reason == "" {
		return nil
	}
	return &reason
}

// StreamChunk is one decoded upstream streaming frame: the normalized event
// plus metadata the relay keeps for usage accounting.
type StreamChunk struct {
	Event StreamEvent

	// Model reported by upstream on the frame, when present.
	Model string

	// Usage is set only on frames that carry a usage block.
	Usage *Usage
}
