package event

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Stream yields events in non-decreasing timestamp order.
//
// Next returns io.EOF once the stream is exhausted. Any other error is a
// failure of the underlying source and ends evaluation.
type Stream interface {
	Next() (*Event, error)
}

// SliceStream replays an in-memory list of events.
type SliceStream struct {
	events []*Event
	pos    int
}

// NewSliceStream returns a stream over events in the given order.
func NewSliceStream(events ...*Event) *SliceStream {
	return &SliceStream{events: events}
}

func (s *SliceStream) Next() (*Event, error) {
	if s.pos >= len(s.events) {
		return nil, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

// Collect drains a stream into a slice.
func Collect(s Stream) ([]*Event, error) {
	var out []*Event
	for {
		e, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}

// record is the on-disk shape of one JSON Lines event.
type record struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
	Payload   map[string]any  `json:"payload"`
}

// JSONLReader decodes one event per line:
//
//	{"type":"GOOG","timestamp":"2024-01-02T10:00:00Z","payload":{"price":10}}
//
// The timestamp is either an RFC 3339 string or Unix seconds, fractional
// seconds allowed. Numeric payload values stay json.Number so conditions
// compare them exactly.
type JSONLReader struct {
	scanner *bufio.Scanner
	clock   *Clock
	line    int
	last    time.Time
}

// NewJSONLReader reads events from r, stamping each with clock.
// A nil clock gets a fresh one.
func NewJSONLReader(r io.Reader, clock *Clock) *JSONLReader {
	if clock == nil {
		clock = NewClock()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &JSONLReader{scanner: sc, clock: clock}
}

func (r *JSONLReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		e, err := r.decode(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		if e.Timestamp.Before(r.last) {
			return nil, fmt.Errorf("line %d: timestamp %s precedes %s", r.line,
				e.Timestamp.Format(time.RFC3339Nano), r.last.Format(time.RFC3339Nano))
		}
		r.last = e.Timestamp
		return r.clock.Stamp(e), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *JSONLReader) decode(text string) (*Event, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	var rec record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if rec.Type == "" {
		return nil, errors.New("event type is required")
	}
	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return nil, err
	}
	return New(rec.Type, ts, Payload(rec.Payload)), nil
}

// ParseTimestamp accepts an RFC 3339 JSON string or a JSON number of Unix
// seconds.
func ParseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, errors.New("timestamp is required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %w", err)
		}
		return ts, nil
	}
	secs, err := decimal.NewFromString(string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	whole := secs.Truncate(0)
	nanos := secs.Sub(whole).Shift(9).IntPart()
	return time.Unix(whole.IntPart(), nanos).UTC(), nil
}
