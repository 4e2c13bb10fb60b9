package event

import (
	"fmt"
	"time"
)

// Payload holds the named attributes of a single event.
type Payload map[string]any

// Event is one occurrence in the input stream.
//
// An Event is immutable once handed to a tree. Seq is a logical sequence
// number assigned by a Clock; it breaks ties between equal timestamps and
// gives matches a stable identity when persisted.
type Event struct {
	Seq       int64
	Type      string
	Timestamp time.Time
	Payload   Payload
}

// New returns an event of the given type. A nil payload is replaced with an
// empty one so condition lookups never dereference nil.
func New(typ string, ts time.Time, payload Payload) *Event {
	if payload == nil {
		payload = Payload{}
	}
	return &Event{Type: typ, Timestamp: ts, Payload: payload}
}

func (e *Event) String() string {
	return fmt.Sprintf("%s#%d@%s", e.Type, e.Seq, e.Timestamp.UTC().Format(time.RFC3339Nano))
}
