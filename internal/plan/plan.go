// Package plan describes the shape of an evaluation tree independently of
// the pattern it is built for.
//
// Leaves and nested sub-plans refer to pattern arguments by position in the
// argument list of the enclosing structure, so one plan can be reused for
// structurally identical patterns.
package plan

import "fmt"

// Operator is the operator of an internal plan node.
type Operator string

const (
	OpSeq    Operator = "SEQ"
	OpAnd    Operator = "AND"
	OpNSeq   Operator = "NSEQ"
	OpNAnd   Operator = "NAND"
	OpKleene Operator = "KC"
)

// IsNegation reports whether op filters positive matches by a negative
// sub-tree.
func (op Operator) IsNegation() bool {
	return op == OpNSeq || op == OpNAnd
}

// Node is a plan node. This is a sealed interface.
type Node interface {
	planNode()
	String() string
}

// Leaf selects argument Index of the enclosing structure.
type Leaf struct {
	Index int
}

// Unary applies Op to a single child. Index selects the Kleene argument of
// the enclosing structure; it is ignored when the whole structure is the
// closure.
type Unary struct {
	Op    Operator
	Index int
	Child Node
}

// Binary joins two sub-plans. For negation operators Right is the negative
// side. Unbounded marks a negation with no positive event after it, whose
// matches must wait for the window to close before they can be emitted.
type Binary struct {
	Op        Operator
	Left      Node
	Right     Node
	Unbounded bool
}

// Nested evaluates argument Index, a composite structure, with its own plan.
type Nested struct {
	Index int
	Plan  Node
}

func (Leaf) planNode() {}
func (Unary) planNode() {}
func (Binary) planNode() {}
func (Nested) planNode() {}

func (l Leaf) String() string { return fmt.Sprintf("%d", l.Index) }

func (u Unary) String() string { return fmt.Sprintf("%s(%s)", u.Op, u.Child) }

func (b Binary) String() string {
	if b.Unbounded {
		return fmt.Sprintf("%s*(%s, %s)", b.Op, b.Left, b.Right)
	}
	return fmt.Sprintf("%s(%s, %s)", b.Op, b.Left, b.Right)
}

func (n Nested) String() string { return fmt.Sprintf("[%d: %s]", n.Index, n.Plan) }
