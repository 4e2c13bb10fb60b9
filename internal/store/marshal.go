package store

import (
	"fmt"

	"github.com/YossiLevi4497/OpenCEP/internal/ir"
)

// marshalEvents converts match events to canonical JSON TEXT for storage.
func marshalEvents(events []ir.EventRecord) (string, error) {
	data, err := ir.MarshalEvents(events)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}

// unmarshalEvents parses canonical JSON TEXT back to match events.
// Numbers are decoded exactly; see ir.IRObject.UnmarshalJSON.
func unmarshalEvents(data string) ([]ir.EventRecord, error) {
	events, err := ir.UnmarshalEvents([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return events, nil
}
