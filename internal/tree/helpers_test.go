package tree

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

var epoch = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

// feed stamps events with increasing sequence numbers.
type feed struct {
	clock *event.Clock
}

func newFeed() *feed { return &feed{clock: event.NewClock()} }

func (f *feed) at(typ string, secs int, payload event.Payload) *event.Event {
	return f.clock.Stamp(event.New(typ, epoch.Add(time.Duration(secs)*time.Second), payload))
}

func price(p int) event.Payload { return event.Payload{"price": p} }

func attrLess(a, b string) *condition.Comparison {
	return &condition.Comparison{
		Left:  condition.Attr{Name: a, Field: "price"},
		Op:    condition.OpLT,
		Right: condition.Attr{Name: b, Field: "price"},
	}
}

// build creates a left-deep tree for the pattern.
func build(t *testing.T, pat *pattern.Pattern, params StorageParams) *Tree {
	t.Helper()
	p, err := plan.LeftDeep(pat)
	require.NoError(t, err)
	tr, err := New(p, pat, params)
	require.NoError(t, err)
	return tr
}

func run(tr *Tree, events ...*event.Event) []Match {
	var out []Match
	for _, e := range events {
		tr.HandleEvent(e)
		out = append(out, tr.Drain()...)
	}
	return append(out, tr.Flush()...)
}

// seqs renders each match as the sequence numbers of its events.
func seqs(matches []Match) [][]int64 {
	out := make([][]int64, len(matches))
	for i, m := range matches {
		for _, e := range m.Events {
			out[i] = append(out[i], e.Seq)
		}
	}
	return out
}

// keys renders matches as sorted strings for order-insensitive comparison.
func keys(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.String()
	}
	sort.Strings(out)
	return out
}

func windowHolds(t *testing.T, tr *Tree) {
	t.Helper()
	walk(tr.root, func(n Node) {
		b := n.base()
		if b.window == pattern.Unbounded {
			return
		}
		for _, pm := range b.store.All() {
			require.LessOrEqual(t, b.reference.Sub(pm.First()), b.window,
				"node %s holds a match starting %s", shapeOf(n), pm.First())
		}
	})
}

func shapeOf(n Node) string {
	var sb strings.Builder
	n.shape(&sb)
	return sb.String()
}
