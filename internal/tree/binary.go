package tree

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

type side int

const (
	fromLeft side = iota
	fromRight
)

type pick struct {
	side side
	slot int
}

// merger combines a left and a right partial match into one whose slots
// follow defs.
type merger struct {
	defs   []EventDef
	layout []pick
	// ordered requires the argument groups at level to occur in order.
	ordered bool
	level   int
	window  time.Duration
}

// newMerger lays out the merged slots. Sequences interleave the children's
// slots by pattern position; conjunctions concatenate them.
func newMerger(left, right []EventDef, ordered bool, level int, window time.Duration) *merger {
	type entry struct {
		def EventDef
		at  pick
	}
	entries := make([]entry, 0, len(left)+len(right))
	for i, d := range left {
		entries = append(entries, entry{d, pick{fromLeft, i}})
	}
	for i, d := range right {
		entries = append(entries, entry{d, pick{fromRight, i}})
	}
	if ordered {
		slices.SortStableFunc(entries, func(a, b entry) int {
			return cmp.Compare(a.def.Index, b.def.Index)
		})
	}
	m := &merger{ordered: ordered, level: level, window: window}
	for _, e := range entries {
		m.defs = append(m.defs, e.def)
		m.layout = append(m.layout, e.at)
	}
	return m
}

// merge returns the combination of left and right, or nil when it exceeds
// the window, reuses an event, breaks the sequence order or fails cond.
func (m *merger) merge(left, right *PartialMatch, cond *condition.Formula) *PartialMatch {
	first := earliest(left.first, right.first)
	last := latest(left.last, right.last)
	if m.window != pattern.Unbounded && last.Sub(first) > m.window {
		return nil
	}
	if overlaps(left, right) {
		return nil
	}
	slots := make([][]*event.Event, len(m.layout))
	for k, at := range m.layout {
		if at.side == fromLeft {
			slots[k] = left.slots[at.slot]
		} else {
			slots[k] = right.slots[at.slot]
		}
	}
	if m.ordered && !inOrder(m.defs, slots, m.level) {
		return nil
	}
	if cond.Len() > 0 && !cond.Eval(bind(m.defs, slots)) {
		return nil
	}
	return &PartialMatch{slots: slots, first: first, last: last}
}

func overlaps(a, b *PartialMatch) bool {
	for _, slot := range a.slots {
		for _, e := range slot {
			if b.Contains(e) {
				return true
			}
		}
	}
	return false
}

// inOrder checks that the events of each argument group at level occur no
// earlier than every event of the groups before it. defs must be sorted by
// pattern position so each group is contiguous.
func inOrder(defs []EventDef, slots [][]*event.Event, level int) bool {
	var prevMax time.Time
	havePrev := false
	for i := 0; i < len(defs); {
		key := defs[i].groupKey(level)
		var gMin, gMax time.Time
		seen := false
		j := i
		for ; j < len(defs) && defs[j].groupKey(level) == key; j++ {
			for _, e := range slots[j] {
				if !seen || e.Timestamp.Before(gMin) {
					gMin = e.Timestamp
				}
				if !seen || e.Timestamp.After(gMax) {
					gMax = e.Timestamp
				}
				seen = true
			}
		}
		if seen {
			if havePrev && gMin.Before(prevMax) {
				return false
			}
			if !havePrev || gMax.After(prevMax) {
				prevMax = gMax
			}
			havePrev = true
		}
		i = j
	}
	return true
}

// binaryNode joins two children with SEQ or AND.
type binaryNode struct {
	nodeBase
	op          plan.Operator
	left, right Node
	merger      *merger
}

func (n *binaryNode) Leaves() []*LeafNode {
	return append(n.left.Leaves(), n.right.Leaves()...)
}

func (n *binaryNode) children() []Node { return []Node{n.left, n.right} }

func (n *binaryNode) applyCondition(f *condition.Formula) {
	n.left.applyCondition(f)
	n.right.applyCondition(f)
	n.condition = f.Extract(n.names(), false)
}

func (n *binaryNode) shape(sb *strings.Builder) {
	sb.WriteString(string(n.op))
	sb.WriteByte('(')
	n.left.shape(sb)
	sb.WriteByte(',')
	n.right.shape(sb)
	sb.WriteByte(')')
}

// handleNewPartialMatch pairs pm with every live match of the sibling of
// source.
func (n *binaryNode) handleNewPartialMatch(source Node, pm *PartialMatch) {
	fromLeftChild := source == n.left
	other := n.left
	if fromLeftChild {
		other = n.right
	}
	other.base().clean(pm.last)
	n.clean(pm.last)

	for _, candidate := range other.PartialMatches() {
		var merged *PartialMatch
		if fromLeftChild {
			merged = n.merger.merge(pm, candidate, n.condition)
		} else {
			merged = n.merger.merge(candidate, pm, n.condition)
		}
		if merged != nil {
			emit(n, merged)
		}
	}
}
