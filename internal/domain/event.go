package domain

// EventKind tags a streaming generation event.
type EventKind string

const (
	// EventProgress reports a coarse pipeline stage with a percentage.
	EventProgress EventKind = "progress"
	// EventChunk carries an incremental text delta.
	EventChunk EventKind = "chunk"
	// EventResult is the terminal success event, emitted exactly once.
	EventResult EventKind = "result"
	// EventError is the terminal failure event, emitted exactly once.
	EventError EventKind = "error"
)

// Event is one element of a streaming generation's ordered event sequence.
// Exactly one terminal event (result or error) ends every stream; consumers
// must stop reading after it.
type Event struct {
	Kind    EventKind
	Step    string
	Percent int
	Delta   string
	Result  *GenerationResult
	Message string
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventResult || e.Kind == EventError
}

// StreamState is the lifecycle state of one streaming request.
// No transition skips a state; Failed is reachable from any non-terminal
// state.
type StreamState string

const (
	StatePending    StreamState = "PENDING"
	StateRetrieving StreamState = "RETRIEVING"
	StatePrompting  StreamState = "PROMPTING"
	StateGenerating StreamState = "GENERATING"
	StateDone       StreamState = "DONE"
	StateFailed     StreamState = "FAILED"
)
