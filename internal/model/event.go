package model

import "time"

// EventKind names the events the engines emit.
type EventKind string

const (
	EventDuplicateFound  EventKind = "duplicate_found"
	EventMergeCompleted  EventKind = "merge_completed"
	EventScoreCalculated EventKind = "score_calculated"
	EventProgress        EventKind = "progress"
)

// Progress counts work done in a batch.
type Progress struct {
	Processed       int `json:"processed"`
	Total           int `json:"total"`
	DuplicatesFound int `json:"duplicates_found"`
}

// Event is a tagged variant; exactly one payload is set, matching Kind.
type Event struct {
	Kind      EventKind              `json:"kind"`
	RunID     string                 `json:"run_id,omitempty"`
	Candidate *DuplicateCandidate    `json:"candidate,omitempty"`
	Merge     *MergeResult           `json:"merge,omitempty"`
	Score     *BusinessPriorityScore `json:"score,omitempty"`
	Progress  *Progress              `json:"progress,omitempty"`
	At        time.Time              `json:"at"`
}

// Observer receives engine events. Engines deliver events serially.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// NopObserver discards events.
type NopObserver struct{}

// OnEvent does nothing.
func (NopObserver) OnEvent(Event) {}

// ChannelObserver forwards events to a channel. Sends never block: when the
// buffer is full the event is dropped and counted.
type ChannelObserver struct {
	C       chan Event
	Dropped int
}

// NewChannelObserver creates a ChannelObserver with the given buffer size.
func NewChannelObserver(size int) *ChannelObserver {
	return &ChannelObserver{C: make(chan Event, size)}
}

// OnEvent forwards e to the channel.
func (o *ChannelObserver) OnEvent(e Event) {
	select {
	case o.C <- e:
	default:
		o.Dropped++
	}
}
