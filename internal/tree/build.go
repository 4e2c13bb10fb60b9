package tree

import (
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

// builder lowers a plan onto a pattern structure.
type builder struct {
	pat    *pattern.Pattern
	params StorageParams
	used   map[*pattern.Primitive]bool
}

func (b *builder) newBase(parent internalNode) nodeBase {
	return nodeBase{
		window: b.pat.Window,
		parent: parent,
		store:  newStore(b.params),
	}
}

// construct builds the node for p, whose leaf and nested indices refer to
// the arguments of s. negated is set below the negative side of a negation.
func (b *builder) construct(s pattern.Structure, p plan.Node, parent internalNode, negated bool) (Node, error) {
	args := pattern.Args(s)
	switch p := p.(type) {
	case plan.Leaf:
		if p.Index < 0 || p.Index >= len(args) {
			return nil, configError(ErrCodeInvalidPlan, p, "leaf index %d out of range for %s", p.Index, s)
		}
		prim, ok := unwrapNot(args[p.Index]).(*pattern.Primitive)
		if !ok {
			return nil, configError(ErrCodeIllegalStructure, p, "leaf refers to %s, not a primitive event", args[p.Index])
		}
		return b.leaf(prim, p, parent, negated)

	case plan.Nested:
		if p.Index < 0 || p.Index >= len(args) {
			return nil, configError(ErrCodeInvalidPlan, p, "nested index %d out of range for %s", p.Index, s)
		}
		return b.construct(unwrapNot(args[p.Index]), p.Plan, parent, negated)

	case plan.Unary:
		if p.Op != plan.OpKleene {
			return nil, configError(ErrCodeUnknownOperator, p, "unary operator %q", p.Op)
		}
		k, ok := s.(*pattern.Kleene)
		if !ok {
			if p.Index < 0 || p.Index >= len(args) {
				return nil, configError(ErrCodeInvalidPlan, p, "kleene index %d out of range for %s", p.Index, s)
			}
			k, ok = args[p.Index].(*pattern.Kleene)
		}
		if !ok {
			return nil, configError(ErrCodeIllegalStructure, p, "kleene plan node over %s", s)
		}
		return b.kleene(k, p, parent, negated)

	case plan.Binary:
		return b.binary(s, p, parent, negated)

	case nil:
		return nil, configError(ErrCodeInvalidPlan, nil, "missing plan node under %s", s)
	}
	return nil, configError(ErrCodeUnknownOperator, p, "plan node %T", p)
}

func (b *builder) leaf(prim *pattern.Primitive, p plan.Leaf, parent internalNode, negated bool) (Node, error) {
	ref, ok := b.pat.RefOf(prim)
	if !ok {
		return nil, configError(ErrCodeIllegalStructure, p, "event %q is not part of the pattern", prim.Name)
	}
	if b.used[prim] {
		return nil, configError(ErrCodeIllegalStructure, p, "event %q appears twice in the plan", prim.Name)
	}
	if ref.Negated != negated {
		return nil, configError(ErrCodeIllegalStructure, p, "event %q is placed on the wrong side of a negation", prim.Name)
	}
	b.used[prim] = true
	def := EventDef{Index: ref.Index, Name: ref.Name, Type: ref.Type, Path: ref.Path}
	l := &LeafNode{nodeBase: b.newBase(parent), def: def}
	l.defs = []EventDef{def}
	return l, nil
}

func (b *builder) kleene(k *pattern.Kleene, p plan.Unary, parent internalNode, negated bool) (Node, error) {
	minSize := max(k.Min, 1)
	if k.Max != 0 && k.Max < minSize {
		return nil, configError(ErrCodeInvalidKleeneBounds, p, "bounds {%d,%d} admit no size", k.Min, k.Max)
	}
	n := &kleeneNode{nodeBase: b.newBase(parent), min: minSize, max: k.Max}
	child, err := b.construct(k, p.Child, n, negated)
	if err != nil {
		return nil, err
	}
	n.child = child
	for _, d := range child.EventDefs() {
		d.Kleene = true
		n.defs = append(n.defs, d)
	}
	return n, nil
}

func (b *builder) binary(s pattern.Structure, p plan.Binary, parent internalNode, negated bool) (Node, error) {
	var ordered bool
	switch p.Op {
	case plan.OpSeq, plan.OpNSeq:
		if _, ok := s.(*pattern.Seq); !ok {
			return nil, configError(ErrCodeIllegalStructure, p, "%s plan node over %s", p.Op, s)
		}
		ordered = true
	case plan.OpAnd, plan.OpNAnd:
		if _, ok := s.(*pattern.And); !ok {
			return nil, configError(ErrCodeIllegalStructure, p, "%s plan node over %s", p.Op, s)
		}
	default:
		return nil, configError(ErrCodeUnknownOperator, p, "binary operator %q", p.Op)
	}
	path, _ := b.pat.PathOf(s)
	level := len(path)

	if p.Op.IsNegation() {
		n := &negationNode{nodeBase: b.newBase(parent), op: p.Op, unbounded: p.Unbounded}
		pos, err := b.construct(s, p.Left, n, negated)
		if err != nil {
			return nil, err
		}
		neg, err := b.construct(s, p.Right, n, true)
		if err != nil {
			return nil, err
		}
		n.positive, n.negative = pos, neg
		n.merger = newMerger(pos.EventDefs(), neg.EventDefs(), ordered, level, b.pat.Window)
		n.defs = pos.EventDefs()
		return n, nil
	}

	n := &binaryNode{nodeBase: b.newBase(parent), op: p.Op}
	left, err := b.construct(s, p.Left, n, negated)
	if err != nil {
		return nil, err
	}
	right, err := b.construct(s, p.Right, n, negated)
	if err != nil {
		return nil, err
	}
	n.left, n.right = left, right
	n.merger = newMerger(left.EventDefs(), right.EventDefs(), ordered, level, b.pat.Window)
	n.defs = n.merger.defs
	return n, nil
}

func unwrapNot(s pattern.Structure) pattern.Structure {
	if n, ok := s.(*pattern.Not); ok {
		return n.Arg
	}
	return s
}
