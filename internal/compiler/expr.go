package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
)

// Operators in match order: two-character operators before their prefixes.
var comparisonOps = []string{"<=", ">=", "==", "!=", "<", ">", "="}

// ParseComparison parses "left op right", where each side is a name.field
// attribute reference, a quoted string, a number, true or false.
//
//	a.price < b.price
//	a.symbol == "AAPL"
//	b.volume >= 1000
func ParseComparison(s string) (*condition.Comparison, error) {
	pos, op, err := findOperator(s)
	if err != nil {
		return nil, err
	}
	left, err := parseOperand(strings.TrimSpace(s[:pos]))
	if err != nil {
		return nil, fmt.Errorf("%q: left side: %w", s, err)
	}
	right, err := parseOperand(strings.TrimSpace(s[pos+len(op):]))
	if err != nil {
		return nil, fmt.Errorf("%q: right side: %w", s, err)
	}
	parsedOp, err := condition.ParseOp(op)
	if err != nil {
		return nil, err
	}

	_, lAttr := left.(condition.Attr)
	_, rAttr := right.(condition.Attr)
	if !lAttr && !rAttr {
		return nil, fmt.Errorf("%q: comparison must reference at least one attribute", s)
	}
	return &condition.Comparison{Left: left, Op: parsedOp, Right: right}, nil
}

// findOperator returns the first comparison operator outside a quoted string.
func findOperator(s string) (int, string, error) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && inQuote:
			i++
		case c == '"':
			inQuote = !inQuote
		case !inQuote:
			for _, op := range comparisonOps {
				if strings.HasPrefix(s[i:], op) {
					return i, op, nil
				}
			}
		}
	}
	return 0, "", fmt.Errorf("%q: no comparison operator", s)
}

func parseOperand(s string) (condition.Operand, error) {
	switch {
	case s == "":
		return nil, errors.New("empty operand")
	case strings.HasPrefix(s, `"`):
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("invalid string literal %s", s)
		}
		return condition.Const{Value: v}, nil
	case s == "true" || s == "false":
		return condition.Const{Value: s == "true"}, nil
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return condition.Const{Value: d}, nil
	}
	attr, err := condition.ParseAttr(s)
	if err != nil {
		return nil, err
	}
	if strings.ContainsAny(attr.Name+attr.Field, " \t\"") {
		return nil, fmt.Errorf("invalid attribute reference %q", s)
	}
	return attr, nil
}
