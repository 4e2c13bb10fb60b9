package condition

import (
	"fmt"
	"strings"
)

// Binding maps pattern event names to their payloads.
//
// A plain event binds to a single map[string]any; an event under Kleene
// closure binds to a []map[string]any in timestamp order.
type Binding map[string]any

// Op is a binary comparison operator.
type Op string

const (
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
	OpEQ Op = "=="
	OpNE Op = "!="
)

// ParseOp validates a textual operator.
func ParseOp(s string) (Op, error) {
	switch op := Op(s); op {
	case OpLT, OpLE, OpGT, OpGE, OpEQ, OpNE:
		return op, nil
	case "=":
		return OpEQ, nil
	}
	return "", fmt.Errorf("unknown comparison operator %q", s)
}

// Atom is a single conjunct of a Formula.
//
// This is a sealed interface; the marker method keeps implementations in
// this package so the tree can rely on Names being exact.
type Atom interface {
	// Names returns the pattern event names the atom reads.
	Names() []string
	// Eval reports whether the atom holds under b. Atoms referencing a name
	// missing from b evaluate to false.
	Eval(b Binding) bool
	String() string
	// kleene reports whether the atom only makes sense on a Kleene event.
	kleene() bool
}

// Operand is one side of a Comparison: an event attribute or a constant.
type Operand interface {
	operand()
	String() string
}

// Attr reads Field from the event bound to Name.
type Attr struct {
	Name  string
	Field string
}

func (Attr) operand() {}

func (a Attr) String() string { return a.Name + "." + a.Field }

// ParseAttr splits "name.field".
func ParseAttr(s string) (Attr, error) {
	name, field, ok := strings.Cut(s, ".")
	if !ok || name == "" || field == "" {
		return Attr{}, fmt.Errorf("attribute reference %q must be name.field", s)
	}
	return Attr{Name: name, Field: field}, nil
}

// Const is a literal operand.
type Const struct {
	Value any
}

func (Const) operand() {}

func (c Const) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(c.Value)
}

// Comparison holds when Left Op Right.
//
// When an operand is bound to a Kleene event it yields one value per
// element, and the comparison must hold for every pair.
type Comparison struct {
	Left  Operand
	Op    Op
	Right Operand
}

// Consecutive holds when every adjacent pair of elements of a Kleene event
// satisfies prev.Field Op next.Field. A single element trivially holds.
type Consecutive struct {
	Name  string
	Field string
	Op    Op
}

// Predicate wraps an arbitrary Go function over the named events.
type Predicate struct {
	Label string
	On    []string
	Fn    func(Binding) bool
}
