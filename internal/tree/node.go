package tree

import (
	"slices"
	"strings"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
)

// Node is a node of an evaluation tree.
type Node interface {
	// EventDefs describes the slots of the partial matches the node emits.
	EventDefs() []EventDef
	// PartialMatches returns the node's live partial matches in store order.
	PartialMatches() []*PartialMatch
	// Leaves returns the leaves under the node, left to right.
	Leaves() []*LeafNode
	// Condition returns the part of the pattern condition checked here.
	Condition() *condition.Formula

	base() *nodeBase
	children() []Node
	applyCondition(f *condition.Formula)
	shape(sb *strings.Builder)
}

// internalNode is a node that receives partial matches from its children.
type internalNode interface {
	Node
	handleNewPartialMatch(source Node, pm *PartialMatch)
}

// nodeBase holds the state shared by every node kind.
type nodeBase struct {
	window    time.Duration
	parent    internalNode
	store     Store
	condition *condition.Formula
	defs      []EventDef
	single    *singleGate
	// reference is the latest timestamp the node has been cleaned against.
	reference time.Time
}

func (b *nodeBase) base() *nodeBase { return b }

func (b *nodeBase) EventDefs() []EventDef { return slices.Clone(b.defs) }

func (b *nodeBase) PartialMatches() []*PartialMatch { return b.store.All() }

func (b *nodeBase) Condition() *condition.Formula { return b.condition }

func (b *nodeBase) names() []string {
	names := make([]string, len(b.defs))
	for i, d := range b.defs {
		names[i] = d.Name
	}
	return names
}

func (b *nodeBase) parentBase() *nodeBase {
	if b.parent == nil {
		return nil
	}
	return b.parent.base()
}

// clean evicts the partial matches that can no longer complete within the
// window of ref. Single-consumption events held by evicted matches are
// released here and at every ancestor.
func (b *nodeBase) clean(ref time.Time) {
	if ref.After(b.reference) {
		b.reference = ref
	}
	expired := b.store.EvictExpired(b.reference, b.window)
	if len(expired) == 0 {
		return
	}
	for n := b; n != nil; n = n.parentBase() {
		n.single.release(expired)
	}
}

// registerSingleType enforces single consumption of typ at b and every
// ancestor.
func (b *nodeBase) registerSingleType(typ string) {
	for n := b; n != nil; n = n.parentBase() {
		n.addSingleType(typ)
	}
}

func (b *nodeBase) addSingleType(typ string) {
	if b.single == nil {
		b.single = &singleGate{types: map[string]struct{}{}, inUse: map[*event.Event]struct{}{}}
	}
	b.single.types[typ] = struct{}{}
}

// emit stores pm at n and hands it to n's parent. It reports false when a
// single-consumption event of pm is already taken at n.
func emit(n Node, pm *PartialMatch) bool {
	b := n.base()
	if !b.single.acquire(pm) {
		return false
	}
	b.store.Insert(pm)
	if b.parent != nil {
		b.parent.handleNewPartialMatch(n, pm)
	}
	return true
}

// singleGate tracks which single-consumption events are held by the live
// partial matches of one node. A nil gate admits everything.
type singleGate struct {
	types map[string]struct{}
	inUse map[*event.Event]struct{}
}

func (g *singleGate) acquire(pm *PartialMatch) bool {
	if g == nil {
		return true
	}
	var fresh []*event.Event
	for _, e := range pm.Events() {
		if _, single := g.types[e.Type]; !single {
			continue
		}
		if _, taken := g.inUse[e]; taken {
			return false
		}
		fresh = append(fresh, e)
	}
	for _, e := range fresh {
		g.inUse[e] = struct{}{}
	}
	return true
}

func (g *singleGate) release(pms []*PartialMatch) {
	if g == nil {
		return
	}
	for _, pm := range pms {
		for _, e := range pm.Events() {
			delete(g.inUse, e)
		}
	}
}

// bind builds the condition binding of a match with the given slots.
func bind(defs []EventDef, slots [][]*event.Event) condition.Binding {
	b := make(condition.Binding, len(defs))
	for k, d := range defs {
		if d.Kleene {
			list := make([]map[string]any, len(slots[k]))
			for i, e := range slots[k] {
				list[i] = e.Payload
			}
			b[d.Name] = list
			continue
		}
		if len(slots[k]) > 0 {
			b[d.Name] = map[string]any(slots[k][0].Payload)
		}
	}
	return b
}
