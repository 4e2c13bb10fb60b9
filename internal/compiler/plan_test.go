package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want plan.Node
	}{
		{"leaf", `2`, plan.Leaf{Index: 2}},
		{
			"binary",
			`{op: "SEQ", left: 0, right: 1}`,
			plan.Binary{Op: plan.OpSeq, Left: plan.Leaf{Index: 0}, Right: plan.Leaf{Index: 1}},
		},
		{
			"unbounded negation",
			`{op: "NSEQ", left: 0, right: 1, unbounded: true}`,
			plan.Binary{Op: plan.OpNSeq, Left: plan.Leaf{Index: 0}, Right: plan.Leaf{Index: 1}, Unbounded: true},
		},
		{
			"kleene",
			`{op: "KC", index: 1, child: 0}`,
			plan.Unary{Op: plan.OpKleene, Index: 1, Child: plan.Leaf{Index: 0}},
		},
		{
			"nested",
			`{nested: 1, plan: {op: "AND", left: 1, right: 0}}`,
			plan.Nested{Index: 1, Plan: plan.Binary{Op: plan.OpAnd, Left: plan.Leaf{Index: 1}, Right: plan.Leaf{Index: 0}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())
			got, err := parsePlan(v, "plan")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"negative leaf", `-1`, "plan"},
		{"string", `"SEQ"`, "plan"},
		{"missing op", `{left: 0, right: 1}`, "plan.op"},
		{"missing right", `{op: "SEQ", left: 0}`, "plan.right"},
		{"bad unbounded", `{op: "NAND", left: 0, right: 1, unbounded: "yes"}`, "plan.unbounded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())
			_, err := parsePlan(v, "plan")
			require.Error(t, err)
			ce, ok := err.(*CompileError)
			require.True(t, ok, "expected *CompileError, got %T", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
