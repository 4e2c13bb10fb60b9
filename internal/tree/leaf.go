package tree

import (
	"strings"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
)

// LeafNode accepts events of one type and emits them as single-event
// partial matches.
type LeafNode struct {
	nodeBase
	def EventDef
}

// Name returns the pattern name bound by the leaf.
func (l *LeafNode) Name() string { return l.def.Name }

// Type returns the event type the leaf accepts.
func (l *LeafNode) Type() string { return l.def.Type }

// Index returns the depth-first position of the leaf's primitive.
func (l *LeafNode) Index() int { return l.def.Index }

func (l *LeafNode) Leaves() []*LeafNode { return []*LeafNode{l} }

func (l *LeafNode) children() []Node { return nil }

func (l *LeafNode) applyCondition(f *condition.Formula) {
	l.condition = f.Extract([]string{l.def.Name}, false)
}

func (l *LeafNode) shape(sb *strings.Builder) {
	sb.WriteString(l.def.Name)
}

func (l *LeafNode) handleEvent(e *event.Event) {
	l.clean(e.Timestamp)
	if l.condition.Len() > 0 && !l.condition.Eval(condition.Binding{l.def.Name: map[string]any(e.Payload)}) {
		return
	}
	emit(l, newPartialMatch([][]*event.Event{{e}}))
}
