package transfer

// Event represents a state change or progress update from a transport.
//
// Terminal events (Complete, Failed, Cancelled) settle the job; the
// coordinator decides whether the result still matters by comparing the
// event's Gen against its current generation. Progress events carry
// transient byte counts and never settle anything on their own.
type Event struct {
	JobID    string
	Gen      uint64
	Type     EventType
	Progress *Progress
	Err      error
}

// EventType defines the set of events a transport may emit.
type EventType string

const (
	EventBegin     EventType = "Begin"
	EventProgress  EventType = "Progress"
	EventComplete  EventType = "Complete"
	EventFailed    EventType = "Failed"
	EventCancelled EventType = "Cancelled"
)

// Progress carries byte counts for an in-flight transfer. Total is -1
// when the origin did not declare a content length.
type Progress struct {
	Written int64
	Total   int64
}

// Done reports logical completeness from the progress stream's point of
// view. The coordinator uses it to clear the downloading flag promptly;
// only the terminal Complete event flips an entry to cached.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Written == p.Total
}
