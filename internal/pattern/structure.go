package pattern

import (
	"fmt"
	"strings"
)

// Structure is a node of the pattern structure.
//
// This is a sealed interface. Implementations are pointers so the tree
// builder can key lookups on node identity.
type Structure interface {
	structure()
	String() string
}

// Primitive matches a single event of Type and binds it to Name.
type Primitive struct {
	Type string
	Name string
}

// Seq requires its arguments to occur in order.
type Seq struct {
	Args []Structure
}

// And requires all of its arguments in any order.
type And struct {
	Args []Structure
}

// Not forbids Arg. It is only meaningful as an argument of Seq or And.
type Not struct {
	Arg Structure
}

// Kleene matches one or more occurrences of Arg.
// Max == 0 means unbounded; Min below 1 is treated as 1.
type Kleene struct {
	Arg Structure
	Min int
	Max int
}

func (*Primitive) structure() {}
func (*Seq) structure() {}
func (*And) structure() {}
func (*Not) structure() {}
func (*Kleene) structure() {}

func (p *Primitive) String() string { return p.Type + " " + p.Name }
func (s *Seq) String() string { return "SEQ(" + joinArgs(s.Args) + ")" }
func (a *And) String() string { return "AND(" + joinArgs(a.Args) + ")" }
func (n *Not) String() string { return "NOT(" + n.Arg.String() + ")" }

func (k *Kleene) String() string {
	if k.Min <= 1 && k.Max == 0 {
		return "KC(" + k.Arg.String() + ")"
	}
	return fmt.Sprintf("KC(%s){%d,%d}", k.Arg.String(), k.Min, k.Max)
}

// NewPrimitive is shorthand for &Primitive{Type: typ, Name: name}.
func NewPrimitive(typ, name string) *Primitive {
	return &Primitive{Type: typ, Name: name}
}

// NewSeq builds a sequence.
func NewSeq(args ...Structure) *Seq { return &Seq{Args: args} }

// NewAnd builds a conjunction.
func NewAnd(args ...Structure) *And { return &And{Args: args} }

// NewNot negates arg.
func NewNot(arg Structure) *Not { return &Not{Arg: arg} }

// NewKleene builds an unbounded Kleene closure.
func NewKleene(arg Structure) *Kleene { return &Kleene{Arg: arg, Min: 1} }

// Args returns the direct arguments of s: the list of a composite, the
// single argument of a unary operator, or s itself for a primitive.
func Args(s Structure) []Structure {
	switch s := s.(type) {
	case *Seq:
		return s.Args
	case *And:
		return s.Args
	case *Not:
		return []Structure{s.Arg}
	case *Kleene:
		return []Structure{s.Arg}
	}
	return []Structure{s}
}

func joinArgs(args []Structure) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
