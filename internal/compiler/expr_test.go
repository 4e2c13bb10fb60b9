package compiler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
)

func TestParseComparison(t *testing.T) {
	tests := []struct {
		input string
		left  condition.Operand
		op    condition.Op
		right condition.Operand
	}{
		{"a.price < b.price", condition.Attr{Name: "a", Field: "price"}, condition.OpLT, condition.Attr{Name: "b", Field: "price"}},
		{"a.price<=b.price", condition.Attr{Name: "a", Field: "price"}, condition.OpLE, condition.Attr{Name: "b", Field: "price"}},
		{`a.symbol == "AAPL"`, condition.Attr{Name: "a", Field: "symbol"}, condition.OpEQ, condition.Const{Value: "AAPL"}},
		{"a.symbol = b.symbol", condition.Attr{Name: "a", Field: "symbol"}, condition.OpEQ, condition.Attr{Name: "b", Field: "symbol"}},
		{"a.open != true", condition.Attr{Name: "a", Field: "open"}, condition.OpNE, condition.Const{Value: true}},
		{`"x<y" != a.tag`, condition.Const{Value: "x<y"}, condition.OpNE, condition.Attr{Name: "a", Field: "tag"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := ParseComparison(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.left, c.Left)
			assert.Equal(t, tt.op, c.Op)
			assert.Equal(t, tt.right, c.Right)
		})
	}
}

func TestParseComparisonNumbers(t *testing.T) {
	c, err := ParseComparison("b.volume >= -12.50")
	require.NoError(t, err)

	constant, ok := c.Right.(condition.Const)
	require.True(t, ok)
	d, ok := constant.Value.(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("-12.5")))
	assert.Equal(t, condition.OpGE, c.Op)
}

func TestParseComparisonErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a.price", "no comparison operator"},
		{"< b.price", "empty operand"},
		{"1 < 2", "at least one attribute"},
		{"price < b.price", "name.field"},
		{`a.tag == "open`, "invalid string literal"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseComparison(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
