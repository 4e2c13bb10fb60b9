package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/tree"
)

var epoch = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func sampleMatch() tree.Match {
	clock := event.NewClock()
	a := clock.Stamp(event.New("A", epoch, event.Payload{"price": json.Number("10.5")}))
	b := clock.Stamp(event.New("B", epoch.Add(2*time.Second), event.Payload{"price": 11, "venue": "X"}))
	return tree.Match{
		Pattern: "rising",
		Events:  []*event.Event{a, b},
		Names:   []string{"a", "b"},
		First:   a.Timestamp,
		Last:    b.Timestamp,
	}
}

func TestNewMatchRecord(t *testing.T) {
	rec, err := NewMatchRecord("run-1", sampleMatch())
	require.NoError(t, err)

	assert.Equal(t, MustMatchID("run-1", "rising", []EventRef{{Name: "a", Seq: 1}, {Name: "b", Seq: 2}}), rec.ID)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "rising", rec.Pattern)
	assert.Equal(t, epoch, rec.First)
	assert.Equal(t, epoch.Add(2*time.Second), rec.Last)
	require.Len(t, rec.Events, 2)
	assert.Equal(t, "a", rec.Events[0].Name)
	assert.Equal(t, []int64{1, 2}, rec.Seqs())
	assert.Equal(t, IRString("X"), rec.Events[1].Payload["venue"])
}

func TestNewMatchRecordRejectsUnsupportedPayload(t *testing.T) {
	m := sampleMatch()
	m.Events[0] = event.New("A", epoch, event.Payload{"bad": make(chan int)})

	_, err := NewMatchRecord("run-1", m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload")
}

func TestMarshalEventsRoundTrip(t *testing.T) {
	rec, err := NewMatchRecord("run-1", sampleMatch())
	require.NoError(t, err)

	data, err := MarshalEvents(rec.Events)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"name":"a","payload":{"price":10.5},"seq":1,"timestamp":"2024-01-02T10:00:00Z","type":"A"},`+
			`{"name":"b","payload":{"price":11,"venue":"X"},"seq":2,"timestamp":"2024-01-02T10:00:02Z","type":"B"}]`,
		string(data))

	events, err := UnmarshalEvents(data)
	require.NoError(t, err)
	assert.Equal(t, rec.Events, events)
}

func TestEventRecordEvent(t *testing.T) {
	rec, err := NewMatchRecord("run-1", sampleMatch())
	require.NoError(t, err)

	ev := rec.Events[0].Event()
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, "A", ev.Type)
	assert.Equal(t, epoch, ev.Timestamp)
	assert.Equal(t, json.Number("10.5"), ev.Payload["price"])
}
