package ir

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

// EventRecord is one matched event as persisted.
type EventRecord struct {
	Seq       int64     `json:"seq"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Payload   IRObject  `json:"payload"`
}

// MatchRecord is a full pattern match as persisted.
type MatchRecord struct {
	ID      string        `json:"id"`
	RunID   string        `json:"run_id"`
	Pattern string        `json:"pattern"`
	First   time.Time     `json:"first"`
	Last    time.Time     `json:"last"`
	Events  []EventRecord `json:"events"`
}

// RunRecord describes one evaluation run of one pattern.
// FinishedAt is zero while the run is in progress.
type RunRecord struct {
	ID          string    `json:"id"`
	Pattern     string    `json:"pattern"`
	PatternHash string    `json:"pattern_hash"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Events      int64     `json:"events"`
	Matches     int64     `json:"matches"`
}

// NewMatchRecord converts a tree match into its persisted form.
func NewMatchRecord(runID string, m tree.Match) (MatchRecord, error) {
	rec := MatchRecord{
		RunID:   runID,
		Pattern: m.Pattern,
		First:   m.First.UTC(),
		Last:    m.Last.UTC(),
		Events:  make([]EventRecord, len(m.Events)),
	}
	for i, e := range m.Events {
		payload, err := PayloadFromAny(e.Payload)
		if err != nil {
			return MatchRecord{}, fmt.Errorf("event %s payload: %w", e, err)
		}
		rec.Events[i] = EventRecord{
			Seq:       e.Seq,
			Type:      e.Type,
			Name:      m.Names[i],
			Timestamp: e.Timestamp.UTC(),
			Payload:   payload,
		}
	}
	id, err := MatchID(runID, m.Pattern, rec.Refs())
	if err != nil {
		return MatchRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

// Refs returns the identity of each matched event in pattern order.
func (r MatchRecord) Refs() []EventRef {
	refs := make([]EventRef, len(r.Events))
	for i, e := range r.Events {
		refs[i] = EventRef{Name: e.Name, Seq: e.Seq}
	}
	return refs
}

// Seqs returns the sequence numbers of the matched events in pattern order.
func (r MatchRecord) Seqs() []int64 {
	seqs := make([]int64, len(r.Events))
	for i, e := range r.Events {
		seqs[i] = e.Seq
	}
	return seqs
}

// Event rebuilds the stream event this record was taken from.
func (e EventRecord) Event() *event.Event {
	payload := event.Payload{}
	for k, v := range e.Payload {
		payload[k] = ToAny(v)
	}
	ev := event.New(e.Type, e.Timestamp, payload)
	ev.Seq = e.Seq
	return ev
}

func (e EventRecord) irValue() IRObject {
	return IRObject{
		"seq":       IRInt(e.Seq),
		"type":      IRString(e.Type),
		"name":      IRString(e.Name),
		"timestamp": IRString(e.Timestamp.UTC().Format(time.RFC3339Nano)),
		"payload":   e.Payload,
	}
}

// MarshalEvents encodes the events of a match as canonical JSON.
func MarshalEvents(events []EventRecord) ([]byte, error) {
	arr := make(IRArray, len(events))
	for i, e := range events {
		if e.Payload == nil {
			e.Payload = IRObject{}
		}
		arr[i] = e.irValue()
	}
	return MarshalCanonical(arr)
}

// UnmarshalEvents decodes the output of MarshalEvents.
func UnmarshalEvents(data []byte) ([]EventRecord, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	events := make([]EventRecord, len(raw))
	for i, r := range raw {
		var rec struct {
			Seq       int64           `json:"seq"`
			Type      string          `json:"type"`
			Name      string          `json:"name"`
			Timestamp time.Time       `json:"timestamp"`
			Payload   json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", i, err)
		}
		var payload IRObject
		if err := payload.UnmarshalJSON(rec.Payload); err != nil {
			return nil, fmt.Errorf("decode event %d payload: %w", i, err)
		}
		events[i] = EventRecord{
			Seq:       rec.Seq,
			Type:      rec.Type,
			Name:      rec.Name,
			Timestamp: rec.Timestamp.UTC(),
			Payload:   payload,
		}
	}
	return events, nil
}
