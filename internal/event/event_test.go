package event

import (
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	resumed := NewClockAt(41)
	e := resumed.Stamp(New("A", time.Unix(0, 0), nil))
	assert.Equal(t, int64(42), e.Seq)
	assert.NotNil(t, e.Payload)
}

func TestSliceStream(t *testing.T) {
	a := New("A", time.Unix(1, 0), nil)
	b := New("B", time.Unix(2, 0), nil)

	got, err := Collect(NewSliceStream(a, b))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])

	_, err = NewSliceStream().Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONLReader(t *testing.T) {
	input := `
# comment lines and blanks are skipped
{"type":"GOOG","timestamp":"2024-01-02T10:00:00Z","payload":{"price":10.5}}

{"type":"MSFT","timestamp":1704189601.25,"payload":{"price":20}}
`
	got, err := Collect(NewJSONLReader(strings.NewReader(input), nil))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "GOOG", got[0].Type)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, json.Number("10.5"), got[0].Payload["price"])
	assert.True(t, got[0].Timestamp.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))

	assert.Equal(t, int64(2), got[1].Seq)
	assert.True(t, got[1].Timestamp.Equal(time.Date(2024, 1, 2, 10, 0, 1, 250_000_000, time.UTC)))
}

func TestJSONLReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing type", `{"timestamp":"2024-01-02T10:00:00Z"}`, "event type is required"},
		{"missing timestamp", `{"type":"A"}`, "timestamp is required"},
		{"bad timestamp", `{"type":"A","timestamp":"yesterday"}`, "timestamp"},
		{"unknown field", `{"type":"A","timestamp":1,"extra":true}`, "unknown field"},
		{"out of order", "{\"type\":\"A\",\"timestamp\":5}\n{\"type\":\"A\",\"timestamp\":4}", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Collect(NewJSONLReader(strings.NewReader(tt.input), nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
