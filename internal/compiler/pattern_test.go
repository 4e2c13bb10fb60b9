package compiler

import (
	"errors"
	"testing"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
)

// compile compiles the pattern at pattern.<name> in src.
func compile(t *testing.T, src, name string) (Compiled, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompilePattern(v.LookupPath(cue.ParsePath("pattern." + name)))
}

func TestCompilePatternBasic(t *testing.T) {
	c, err := compile(t, `
		pattern: rising: {
			structure: seq: [
				{type: "Stock", name: "a"},
				{type: "Stock", name: "b"},
			]
			where: ["a.price < b.price"]
			within: "5m"
		}
	`, "rising")
	require.NoError(t, err)

	assert.Equal(t, "rising", c.Pattern.Name)
	assert.Equal(t, "SEQ(Stock a, Stock b)", c.Pattern.Structure.String())
	assert.Equal(t, "a.price < b.price", c.Pattern.Condition.String())
	assert.Equal(t, 5*time.Minute, c.Pattern.Window)
	assert.Nil(t, c.Pattern.Policy)
	assert.Nil(t, c.Plan, "left-deep plan is the default")
}

func TestCompilePatternFullSyntax(t *testing.T) {
	c, err := compile(t, `
		pattern: "burst-then-quiet": {
			structure: seq: [
				{type: "Stock", name: "a"},
				{kleene: {type: "Stock", name: "b"}, min: 2, max: 3},
				{and: [{type: "News", name: "n"}, {type: "Rating", name: "r"}]},
				{not: {type: "Halt", name: "h"}},
			]
			where: [
				"a.price < b.price",
				{consecutive: "b.price", op: "<"},
				"n.ticker == a.ticker",
			]
			within: 90
			policy: {single: ["News"], mechanism: "root", freeze: ["a"]}
		}
	`, `"burst-then-quiet"`)
	require.NoError(t, err)

	pat := c.Pattern
	assert.Equal(t, "burst-then-quiet", pat.Name)
	assert.Equal(t, 90*time.Second, pat.Window)
	assert.Equal(t,
		"SEQ(Stock a, KC(Stock b){2,3}, AND(News n, Rating r), NOT(Halt h))",
		pat.Structure.String())
	assert.Equal(t, 3, pat.Condition.Len())
	require.NotNil(t, pat.Policy)
	assert.Equal(t, []string{"News"}, pat.Policy.Single)
	assert.Equal(t, pattern.MechanismRoot, pat.Policy.Mechanism)
	assert.Equal(t, []string{"a"}, pat.Policy.Freeze)
}

func TestCompilePatternUnboundedWindow(t *testing.T) {
	c, err := compile(t, `
		pattern: p: {
			structure: {type: "A", name: "a"}
			within: "unbounded"
		}
	`, "p")
	require.NoError(t, err)
	assert.Equal(t, pattern.Unbounded, c.Pattern.Window)
}

func TestCompilePatternExplicitPlan(t *testing.T) {
	c, err := compile(t, `
		pattern: p: {
			structure: and: [
				{type: "A", name: "a"},
				{type: "B", name: "b"},
				{type: "C", name: "c"},
			]
			within: "1m"
			plan: {op: "AND", left: 2, right: {op: "AND", left: 0, right: 1}}
		}
	`, "p")
	require.NoError(t, err)
	require.NotNil(t, c.Plan)
	assert.Equal(t, "AND(2, AND(0, 1))", c.Plan.String())
}

func TestCompilePatternErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "missing structure",
			body:  `within: "1m"`,
			field: "structure",
		},
		{
			name:  "missing window",
			body:  `structure: {type: "A", name: "a"}`,
			field: "within",
		},
		{
			name:  "bad window",
			body:  `structure: {type: "A", name: "a"}, within: "soon"`,
			field: "within",
		},
		{
			name:  "non-positive window",
			body:  `structure: {type: "A", name: "a"}, within: 0`,
			field: "within",
		},
		{
			name:  "ambiguous node",
			body:  `structure: {type: "A", name: "a", seq: []}, within: 1`,
			field: "structure",
		},
		{
			name:  "primitive without name",
			body:  `structure: {type: "A"}, within: 1`,
			field: "structure.name",
		},
		{
			name:  "empty seq",
			body:  `structure: {seq: []}, within: 1`,
			field: "structure.seq",
		},
		{
			name:  "bad comparison",
			body:  `structure: {type: "A", name: "a"}, within: 1, where: ["a.price"]`,
			field: "where[0]",
		},
		{
			name:  "bad consecutive op",
			body:  `structure: {kleene: {type: "A", name: "a"}}, within: 1, where: [{consecutive: "a.p", op: "~"}]`,
			field: "where[0].op",
		},
		{
			name:  "bad mechanism",
			body:  `structure: {type: "A", name: "a"}, within: 1, policy: mechanism: "leaf"`,
			field: "policy.mechanism",
		},
		{
			name:  "unknown condition name",
			body:  `structure: {type: "A", name: "a"}, within: 1, where: "z.p > 1"`,
			field: "pattern",
		},
		{
			name:  "unknown plan operator",
			body:  `structure: {type: "A", name: "a"}, within: 1, plan: {op: "OR", left: 0, right: 0}`,
			field: "plan.op",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(t, "pattern: p: {"+tt.body+"}", "p")
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "expected CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	_, err := compile(t, `pattern: p: {
		structure: {type: "A", name: "a"}
		within: "soon"
	}`, "p")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, 3, ce.Pos.Line())
	assert.Contains(t, err.Error(), ":3:")
}
