package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

// parsePlan reads an explicit tree plan:
//
//	2                                       leaf over argument 2
//	{op: "SEQ", left: <node>, right: <node>}
//	{op: "NSEQ", left: <node>, right: <node>, unbounded: true}
//	{op: "KC", index: 1, child: <node>}
//	{nested: 1, plan: <node>}
func parsePlan(v cue.Value, field string) (plan.Node, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: field, Message: "plan node is required"}
	}
	if idx, err := v.Int64(); err == nil {
		if idx < 0 {
			return nil, &CompileError{Field: field, Message: "leaf index must not be negative", Pos: v.Pos()}
		}
		return plan.Leaf{Index: int(idx)}, nil
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   field,
			Message: "plan node must be an argument index or a struct",
			Pos:     v.Pos(),
		}
	}

	if nestedVal := v.LookupPath(cue.ParsePath("nested")); nestedVal.Exists() {
		idx, err := optionalInt(v, "nested", field, 0)
		if err != nil {
			return nil, err
		}
		sub, err := parsePlan(v.LookupPath(cue.ParsePath("plan")), field+".plan")
		if err != nil {
			return nil, err
		}
		return plan.Nested{Index: idx, Plan: sub}, nil
	}

	opStr, err := requireString(v, "op", field)
	if err != nil {
		return nil, err
	}
	switch op := plan.Operator(opStr); op {
	case plan.OpKleene:
		idx, err := optionalInt(v, "index", field, 0)
		if err != nil {
			return nil, err
		}
		child, err := parsePlan(v.LookupPath(cue.ParsePath("child")), field+".child")
		if err != nil {
			return nil, err
		}
		return plan.Unary{Op: op, Index: idx, Child: child}, nil

	case plan.OpSeq, plan.OpAnd, plan.OpNSeq, plan.OpNAnd:
		left, err := parsePlan(v.LookupPath(cue.ParsePath("left")), field+".left")
		if err != nil {
			return nil, err
		}
		right, err := parsePlan(v.LookupPath(cue.ParsePath("right")), field+".right")
		if err != nil {
			return nil, err
		}
		b := plan.Binary{Op: op, Left: left, Right: right}
		if ubVal := v.LookupPath(cue.ParsePath("unbounded")); ubVal.Exists() {
			if b.Unbounded, err = ubVal.Bool(); err != nil {
				return nil, &CompileError{Field: field + ".unbounded", Message: "unbounded must be a bool", Pos: ubVal.Pos()}
			}
		}
		return b, nil

	default:
		return nil, &CompileError{
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown plan operator %q", opStr),
			Pos:     v.Pos(),
		}
	}
}
