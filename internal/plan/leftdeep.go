package plan

import (
	"errors"
	"fmt"

	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
)

// LeftDeep builds the default plan for a pattern: positive arguments are
// joined left to right in declaration order and each negated argument is
// stacked above them in turn.
//
// A negation inside a sequence is unbounded when no positive argument
// follows it; inside a conjunction it always is.
func LeftDeep(p *pattern.Pattern) (Node, error) {
	if p == nil || p.Structure == nil {
		return nil, errors.New("pattern is required")
	}
	switch s := p.Structure.(type) {
	case *pattern.Primitive:
		return Leaf{Index: 0}, nil
	case *pattern.Kleene:
		child, err := kleeneChild(s)
		if err != nil {
			return nil, err
		}
		return Unary{Op: OpKleene, Child: child}, nil
	case *pattern.Not:
		return nil, errors.New("top-level structure cannot be negated")
	}
	return composite(p.Structure)
}

func composite(s pattern.Structure) (Node, error) {
	var positiveOp, negativeOp Operator
	switch s.(type) {
	case *pattern.Seq:
		positiveOp, negativeOp = OpSeq, OpNSeq
	case *pattern.And:
		positiveOp, negativeOp = OpAnd, OpNAnd
	default:
		return nil, fmt.Errorf("cannot plan %T as a composite", s)
	}
	args := pattern.Args(s)

	var root Node
	lastPositive := -1
	for i, a := range args {
		if _, neg := a.(*pattern.Not); neg {
			continue
		}
		arg, err := argument(i, a)
		if err != nil {
			return nil, err
		}
		if root == nil {
			root = arg
		} else {
			root = Binary{Op: positiveOp, Left: root, Right: arg}
		}
		lastPositive = i
	}
	if root == nil {
		return nil, fmt.Errorf("%s has no positive arguments", s)
	}

	for i, a := range args {
		not, neg := a.(*pattern.Not)
		if !neg {
			continue
		}
		arg, err := argument(i, not.Arg)
		if err != nil {
			return nil, err
		}
		root = Binary{
			Op:        negativeOp,
			Left:      root,
			Right:     arg,
			Unbounded: negativeOp == OpNAnd || i > lastPositive,
		}
	}
	return root, nil
}

// argument plans argument i of a composite.
func argument(i int, a pattern.Structure) (Node, error) {
	switch a := a.(type) {
	case *pattern.Primitive:
		return Leaf{Index: i}, nil
	case *pattern.Kleene:
		child, err := kleeneChild(a)
		if err != nil {
			return nil, err
		}
		return Unary{Op: OpKleene, Index: i, Child: child}, nil
	case *pattern.Seq, *pattern.And:
		sub, err := composite(a)
		if err != nil {
			return nil, err
		}
		return Nested{Index: i, Plan: sub}, nil
	}
	return nil, fmt.Errorf("cannot plan argument %d of type %T", i, a)
}

func kleeneChild(k *pattern.Kleene) (Node, error) {
	if _, ok := k.Arg.(*pattern.Primitive); ok {
		return Leaf{Index: 0}, nil
	}
	sub, err := composite(k.Arg)
	if err != nil {
		return nil, err
	}
	return Nested{Index: 0, Plan: sub}, nil
}
