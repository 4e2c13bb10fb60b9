package tree

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

// Match is a full pattern match. Events are ordered by their position in
// the pattern structure; a Kleene event contributes all of its elements.
type Match struct {
	Pattern string
	Events  []*event.Event
	// Names holds the pattern name bound to each entry of Events.
	Names []string
	First time.Time
	Last  time.Time
}

func (m Match) String() string {
	parts := make([]string, len(m.Events))
	for i, e := range m.Events {
		parts[i] = m.Names[i] + "=" + e.String()
	}
	return m.Pattern + "[" + strings.Join(parts, " ") + "]"
}

// Tree evaluates one pattern over a stream of events.
type Tree struct {
	pattern   *pattern.Pattern
	root      Node
	leaves    []*LeafNode
	listeners map[string][]*LeafNode
	// unbounded lists the unbounded negation nodes in post-order.
	unbounded []*negationNode
	freeze    *freezeGate
	matches   []Match
}

// New builds the evaluation tree of pat following p.
//
// Condition atoms are pushed to the lowest node that binds all of their
// names. An atom no node can take is a configuration error.
func New(p plan.Node, pat *pattern.Pattern, params StorageParams) (*Tree, error) {
	if pat == nil {
		return nil, configError(ErrCodeInvalidPlan, nil, "pattern is required")
	}
	if err := pat.Validate(); err != nil {
		return nil, configError(ErrCodeIllegalStructure, nil, "%v", err)
	}
	if p == nil {
		return nil, configError(ErrCodeInvalidPlan, nil, "plan is required")
	}

	b := &builder{pat: pat, params: params, used: map[*pattern.Primitive]bool{}}
	root, err := b.construct(pat.Structure, p, nil, false)
	if err != nil {
		return nil, err
	}
	for _, ref := range pat.Primitives() {
		if !b.used[ref.Primitive] {
			return nil, configError(ErrCodeInvalidPlan, p, "plan does not cover event %q", ref.Name)
		}
	}

	t := &Tree{
		pattern:   pat,
		root:      root,
		leaves:    root.Leaves(),
		listeners: map[string][]*LeafNode{},
		freeze:    newFreezeGate(pat),
	}
	for _, l := range t.leaves {
		t.listeners[l.Type()] = append(t.listeners[l.Type()], l)
	}
	walk(root, func(n Node) {
		if neg, ok := n.(*negationNode); ok && neg.unbounded {
			t.unbounded = append(t.unbounded, neg)
		}
	})

	t.registerSingleTypes()

	remaining := pat.Condition.Clone()
	root.applyCondition(remaining)
	if remaining.Len() > 0 {
		return nil, configError(ErrCodeUnusedConditions, p, "no node binds every event of %s", remaining)
	}
	return t, nil
}

func (t *Tree) registerSingleTypes() {
	policy := t.pattern.Policy
	if policy == nil || len(policy.Single) == 0 {
		return
	}
	if policy.Mechanism == pattern.MechanismRoot {
		for _, typ := range policy.Single {
			t.root.base().addSingleType(typ)
		}
		return
	}
	for _, l := range t.leaves {
		if policy.IsSingle(l.Type()) && l.parent != nil {
			l.parent.base().registerSingleType(l.Type())
		}
	}
}

// walk visits n and its descendants in post-order.
func walk(n Node, visit func(Node)) {
	for _, c := range n.children() {
		walk(c, visit)
	}
	visit(n)
}

// Pattern returns the pattern the tree evaluates.
func (t *Tree) Pattern() *pattern.Pattern { return t.pattern }

// Leaves returns the leaves left to right.
func (t *Tree) Leaves() []*LeafNode { return slices.Clone(t.leaves) }

// HandleEvent routes e to every leaf of its type, in leaf order, and
// queues the matches that complete.
func (t *Tree) HandleEvent(e *event.Event) {
	t.advance(e.Timestamp)
	leaves := t.listeners[e.Type]
	if len(leaves) == 0 {
		return
	}
	t.freeze.expire(e.Timestamp)
	for _, l := range leaves {
		if t.freeze.blocks(l.Name()) {
			continue
		}
		t.freeze.register(e, l.Name())
		l.handleEvent(e)
		t.collect()
	}
}

// advance releases negation matches whose window closed before ts.
func (t *Tree) advance(ts time.Time) {
	if len(t.unbounded) == 0 {
		return
	}
	for _, n := range t.unbounded {
		n.advance(ts)
	}
	for _, n := range t.unbounded {
		n.releaseExpired()
	}
	t.collect()
}

func (t *Tree) collect() {
	store := t.root.base().store
	for {
		pm, ok := store.TakeFirst()
		if !ok {
			return
		}
		m := t.toMatch(pm)
		t.freeze.matched(m)
		t.matches = append(t.matches, m)
	}
}

func (t *Tree) toMatch(pm *PartialMatch) Match {
	defs := t.root.EventDefs()
	order := make([]int, len(defs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(defs[a].Index, defs[b].Index)
	})
	m := Match{Pattern: t.pattern.Name, First: pm.first, Last: pm.last}
	for _, k := range order {
		for _, e := range pm.slots[k] {
			m.Events = append(m.Events, e)
			m.Names = append(m.Names, defs[k].Name)
		}
	}
	return m
}

// Drain returns the matches found since the previous call.
func (t *Tree) Drain() []Match {
	out := t.matches
	t.matches = nil
	return out
}

// Flush ends the stream: matches held back by unbounded negations are
// released as if their window had closed, and all queued matches are
// returned.
func (t *Tree) Flush() []Match {
	for _, n := range t.unbounded {
		n.flush()
	}
	t.collect()
	return t.Drain()
}

// Summary describes the shape of a tree.
type Summary struct {
	Pattern   string
	Shape     string
	Window    time.Duration
	Depth     int
	Leaves    int
	Seq       int
	And       int
	Negations int
	Kleene    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%s %s window=%s depth=%d leaves=%d seq=%d and=%d neg=%d kc=%d",
		s.Pattern, s.Shape, s.Window, s.Depth, s.Leaves, s.Seq, s.And, s.Negations, s.Kleene)
}

// Summary reports the tree's shape and node counts.
func (t *Tree) Summary() Summary {
	var sb strings.Builder
	t.root.shape(&sb)
	s := Summary{Pattern: t.pattern.Name, Shape: sb.String(), Window: t.pattern.Window, Depth: depth(t.root)}
	walk(t.root, func(n Node) {
		switch n := n.(type) {
		case *LeafNode:
			s.Leaves++
		case *binaryNode:
			if n.op == plan.OpSeq {
				s.Seq++
			} else {
				s.And++
			}
		case *negationNode:
			s.Negations++
		case *kleeneNode:
			s.Kleene++
		}
	})
	return s
}

func depth(n Node) int {
	d := 0
	for _, c := range n.children() {
		d = max(d, depth(c))
	}
	return d + 1
}
