package condition

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Compare applies op to two attribute values.
//
// Numbers of any Go numeric type, json.Number and decimal.Decimal compare
// exactly by value. Strings compare lexicographically and times
// chronologically. Any other pair only supports == and !=. Values of
// incomparable kinds never satisfy an ordering operator.
func Compare(left any, op Op, right any) bool {
	if l, ok := toDecimal(left); ok {
		if r, ok := toDecimal(right); ok {
			return holds(l.Cmp(r), op)
		}
		return op == OpNE
	}
	switch l := left.(type) {
	case string:
		if r, ok := right.(string); ok {
			return holds(strings.Compare(l, r), op)
		}
	case time.Time:
		if r, ok := right.(time.Time); ok {
			return holds(l.Compare(r), op)
		}
	}
	switch op {
	case OpEQ:
		return reflect.DeepEqual(left, right)
	case OpNE:
		return !reflect.DeepEqual(left, right)
	}
	return false
}

func holds(cmp int, op Op) bool {
	switch op {
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	case OpEQ:
		return cmp == 0
	case OpNE:
		return cmp != 0
	}
	return false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int8:
		return decimal.NewFromInt(int64(n)), true
	case int16:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint:
		return decimal.NewFromUint64(uint64(n)), true
	case uint8:
		return decimal.NewFromUint64(uint64(n)), true
	case uint16:
		return decimal.NewFromUint64(uint64(n)), true
	case uint32:
		return decimal.NewFromUint64(uint64(n)), true
	case uint64:
		return decimal.NewFromUint64(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case json.Number:
		d, err := decimal.NewFromString(string(n))
		return d, err == nil
	case decimal.Decimal:
		return n, true
	}
	return decimal.Decimal{}, false
}
