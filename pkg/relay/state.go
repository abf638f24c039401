package relay

// State is the lifecycle position of a Stream.
//
//	Idle -> Connecting -> Streaming <-> ParseDegraded
//	Streaming -> Completed | UpstreamFailed
//	Connecting -> UpstreamFailed
//	any -> Closed
type State int32

const (
	Idle State = iota
	Connecting
	Streaming
	ParseDegraded
	Completed
	UpstreamFailed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case ParseDegraded:
		return "parse_degraded"
	case Completed:
		return "completed"
	case UpstreamFailed:
		return "upstream_failed"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events will be produced in s.
func (s State) Terminal() bool {
	return s == Completed || s == UpstreamFailed || s == Closed
}
