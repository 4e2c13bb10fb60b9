package condition

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lt(a, b string) *Comparison {
	l, _ := ParseAttr(a)
	r, _ := ParseAttr(b)
	return &Comparison{Left: l, Op: OpLT, Right: r}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name  string
		left  any
		op    Op
		right any
		want  bool
	}{
		{"int vs float", 10, OpLT, 10.5, true},
		{"json number vs int", json.Number("20"), OpEQ, 20, true},
		{"decimal exact", decimal.RequireFromString("0.1"), OpEQ, json.Number("0.10"), true},
		{"strings", "abc", OpLT, "abd", true},
		{"times", time.Unix(1, 0), OpGE, time.Unix(2, 0), false},
		{"number vs string ordering", 1, OpLT, "2", false},
		{"number vs string inequality", 1, OpNE, "1", true},
		{"bools equal", true, OpEQ, true, true},
		{"bools unordered", true, OpLT, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.left, tt.op, tt.right))
		})
	}
}

func TestParseOp(t *testing.T) {
	op, err := ParseOp("=")
	require.NoError(t, err)
	assert.Equal(t, OpEQ, op)

	_, err = ParseOp("~")
	assert.Error(t, err)
}

func TestComparison_KleeneElementwise(t *testing.T) {
	c := &Comparison{Left: Attr{Name: "a", Field: "price"}, Op: OpLT, Right: Attr{Name: "b", Field: "price"}}
	b := Binding{
		"a": []map[string]any{{"price": 1}, {"price": 2}},
		"b": map[string]any{"price": 3},
	}
	assert.True(t, c.Eval(b))

	b["a"] = []map[string]any{{"price": 1}, {"price": 5}}
	assert.False(t, c.Eval(b))

	delete(b, "b")
	assert.False(t, c.Eval(b), "missing binding never holds")
}

func TestConsecutive(t *testing.T) {
	c := &Consecutive{Name: "a", Field: "price", Op: OpLT}
	assert.True(t, c.Eval(Binding{"a": []map[string]any{{"price": 1}, {"price": 2}, {"price": 3}}}))
	assert.False(t, c.Eval(Binding{"a": []map[string]any{{"price": 1}, {"price": 3}, {"price": 2}}}))
	assert.True(t, c.Eval(Binding{"a": map[string]any{"price": 1}}))
}

func TestFormula_Extract(t *testing.T) {
	ab := lt("a.x", "b.x")
	bc := lt("b.x", "c.x")
	aConst := &Comparison{Left: Attr{Name: "a", Field: "x"}, Op: OpGT, Right: Const{Value: 0}}
	cons := &Consecutive{Name: "a", Field: "x", Op: OpLE}
	f := And(ab, bc, aConst, cons)

	leaf := f.Extract([]string{"a"}, false)
	assert.Equal(t, []Atom{aConst}, leaf.Atoms())
	assert.Equal(t, 3, f.Len())

	kc := f.Extract([]string{"a"}, true)
	assert.Equal(t, []Atom{cons}, kc.Atoms())

	node := f.Extract([]string{"a", "b"}, false)
	assert.Equal(t, []Atom{ab}, node.Atoms())

	assert.Equal(t, []string{"b", "c"}, f.Names())
	assert.Equal(t, "b.x < c.x", f.String())
}

func TestFormula_EvalAndClone(t *testing.T) {
	var nilFormula *Formula
	assert.True(t, nilFormula.Eval(nil))
	assert.Equal(t, "true", True().String())

	f := And(lt("a.x", "b.x"))
	clone := f.Clone()
	clone.Extract([]string{"a", "b"}, false)
	assert.Equal(t, 1, f.Len())
	assert.Equal(t, 0, clone.Len())

	assert.True(t, f.Eval(Binding{"a": map[string]any{"x": 1}, "b": map[string]any{"x": 2}}))
	assert.False(t, f.Eval(Binding{"a": map[string]any{"x": 2}, "b": map[string]any{"x": 2}}))
}

func TestPredicate(t *testing.T) {
	p := &Predicate{Label: "same symbol", On: []string{"b", "a", "a"}, Fn: func(b Binding) bool {
		return b["a"].(map[string]any)["sym"] == b["b"].(map[string]any)["sym"]
	}}
	assert.Equal(t, []string{"a", "b"}, p.Names())
	assert.Equal(t, "same symbol", p.String())
	assert.True(t, p.Eval(Binding{"a": map[string]any{"sym": "X"}, "b": map[string]any{"sym": "X"}}))
	assert.False(t, p.Eval(Binding{"a": map[string]any{"sym": "X"}}))
}
