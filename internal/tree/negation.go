package tree

import (
	"slices"
	"strings"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

// negationNode passes on the partial matches of its positive child unless a
// match of its negative child fits among them.
//
// An unbounded node guards a negation that may still occur after the last
// positive event. Its matches are held back until the window measured from
// their first event has passed, or until the tree is flushed.
type negationNode struct {
	nodeBase
	op        plan.Operator
	positive  Node
	negative  Node
	merger    *merger
	unbounded bool
	pending   []*PartialMatch
	// now is the latest timestamp observed by the node.
	now time.Time
}

func (n *negationNode) Leaves() []*LeafNode {
	return append(n.positive.Leaves(), n.negative.Leaves()...)
}

func (n *negationNode) children() []Node { return []Node{n.positive, n.negative} }

func (n *negationNode) applyCondition(f *condition.Formula) {
	n.positive.applyCondition(f)
	n.negative.applyCondition(f)
	names := make([]string, len(n.merger.defs))
	for i, d := range n.merger.defs {
		names[i] = d.Name
	}
	n.condition = f.Extract(names, false)
}

func (n *negationNode) shape(sb *strings.Builder) {
	sb.WriteString(string(n.op))
	sb.WriteByte('(')
	n.positive.shape(sb)
	sb.WriteString(",~")
	n.negative.shape(sb)
	sb.WriteByte(')')
}

func (n *negationNode) handleNewPartialMatch(source Node, pm *PartialMatch) {
	n.advance(pm.last)
	if source == n.positive {
		n.negative.base().clean(pm.last)
		n.clean(pm.last)
		if n.invalidated(pm) {
			return
		}
		if n.unbounded && !n.expired(pm) {
			n.pending = append(n.pending, pm)
			return
		}
		emit(n, pm)
		return
	}

	n.positive.base().clean(pm.last)
	n.clean(pm.last)
	spoiled := func(p *PartialMatch) bool {
		return n.merger.merge(p, pm, n.condition) != nil
	}
	n.pending = slices.DeleteFunc(n.pending, spoiled)
	n.single.release(n.store.Remove(spoiled))
}

// invalidated reports whether any live negative match fits with pm.
func (n *negationNode) invalidated(pm *PartialMatch) bool {
	for _, neg := range n.negative.PartialMatches() {
		if n.merger.merge(pm, neg, n.condition) != nil {
			return true
		}
	}
	return false
}

func (n *negationNode) advance(ts time.Time) {
	if ts.After(n.now) {
		n.now = ts
	}
}

func (n *negationNode) expired(pm *PartialMatch) bool {
	return n.window != pattern.Unbounded && n.now.Sub(pm.first) > n.window
}

// releaseExpired emits the pending matches no negative event can spoil
// anymore.
func (n *negationNode) releaseExpired() {
	if len(n.pending) == 0 {
		return
	}
	var ready []*PartialMatch
	n.pending = slices.DeleteFunc(n.pending, func(pm *PartialMatch) bool {
		if n.expired(pm) {
			ready = append(ready, pm)
			return true
		}
		return false
	})
	for _, pm := range ready {
		emit(n, pm)
	}
}

// flush emits every pending match.
func (n *negationNode) flush() {
	ready := n.pending
	n.pending = nil
	for _, pm := range ready {
		emit(n, pm)
	}
}
