package tree

import (
	"slices"
	"strings"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
)

// kleeneNode emits every combination of its child's live matches whose
// size lies within [min, max]. A max of 0 leaves the size unbounded.
type kleeneNode struct {
	nodeBase
	child    Node
	min, max int
}

func (n *kleeneNode) Leaves() []*LeafNode { return n.child.Leaves() }

func (n *kleeneNode) children() []Node { return []Node{n.child} }

func (n *kleeneNode) applyCondition(f *condition.Formula) {
	n.child.applyCondition(f)
	n.condition = f.Extract(n.names(), true)
}

func (n *kleeneNode) shape(sb *strings.Builder) {
	sb.WriteString("KC(")
	n.child.shape(sb)
	sb.WriteByte(')')
}

// handleNewPartialMatch extends every subset of the older child matches
// with pm. Each combination is therefore generated once, by its newest
// member.
func (n *kleeneNode) handleNewPartialMatch(_ Node, pm *PartialMatch) {
	n.child.base().clean(pm.last)
	n.clean(pm.last)

	var older []*PartialMatch
	for _, p := range n.child.PartialMatches() {
		if p == pm {
			continue
		}
		if n.window != pattern.Unbounded && latest(p.last, pm.last).Sub(earliest(p.first, pm.first)) > n.window {
			continue
		}
		older = append(older, p)
	}

	var visit func(start int, chosen []*PartialMatch)
	visit = func(start int, chosen []*PartialMatch) {
		n.tryCombination(append(slices.Clone(chosen), pm))
		if n.max != 0 && len(chosen)+1 >= n.max {
			return
		}
		for i := start; i < len(older); i++ {
			visit(i+1, append(slices.Clone(chosen), older[i]))
		}
	}
	visit(0, nil)
}

func (n *kleeneNode) tryCombination(combo []*PartialMatch) {
	if len(combo) < n.min {
		return
	}
	slices.SortStableFunc(combo, func(a, b *PartialMatch) int {
		return a.first.Compare(b.first)
	})
	first, last := combo[0].first, combo[0].last
	for _, p := range combo[1:] {
		last = latest(last, p.last)
	}
	if n.window != pattern.Unbounded && last.Sub(first) > n.window {
		return
	}
	seen := map[*event.Event]struct{}{}
	slots := make([][]*event.Event, len(n.defs))
	for _, p := range combo {
		for k, slot := range p.slots {
			for _, e := range slot {
				if _, dup := seen[e]; dup {
					return
				}
				seen[e] = struct{}{}
			}
			slots[k] = append(slots[k], slot...)
		}
	}
	if n.condition.Len() > 0 && !n.condition.Eval(bind(n.defs, slots)) {
		return
	}
	emit(n, &PartialMatch{slots: slots, first: first, last: last})
}
