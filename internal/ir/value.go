package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"
	"unicode/utf16"

	"github.com/shopspring/decimal"

	"github.com/YossiLevi4497/OpenCEP/internal/event"
)

// IRValue is a sealed interface over the values a persisted payload may hold.
type IRValue interface {
	irValue()
}

// IRNull is JSON null.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString is a UTF-8 string.
type IRString string

func (IRString) irValue() {}

// IRInt is an integral number.
type IRInt int64

func (IRInt) irValue() {}

// IRNumber is a non-integral number held as an exact decimal.
type IRNumber struct {
	decimal.Decimal
}

func (IRNumber) irValue() {}

// IRBool is a boolean.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRNumber returns the most compact representation of d: an IRInt when d
// is integral and fits in int64, an IRNumber otherwise.
func NewIRNumber(d decimal.Decimal) IRValue {
	if d.IsInteger() && d.GreaterThanOrEqual(minInt) && d.LessThanOrEqual(maxInt) {
		return IRInt(d.IntPart())
	}
	return IRNumber{d}
}

var (
	minInt = decimal.NewFromInt(math.MinInt64)
	maxInt = decimal.NewFromInt(math.MaxInt64)
)

// SortedKeys returns the object keys in RFC 8785 order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeysRFC8785(keys[i], keys[j]) < 0
	})
	return keys
}

// compareKeysRFC8785 orders strings by their UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return 0
}

// FromAny converts a Go value taken from an event payload into an IRValue.
//
// Floats go through their shortest decimal form. time.Time becomes an
// RFC 3339 string. Unsupported types are an error.
func FromAny(v any) (IRValue, error) {
	switch x := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return x, nil
	case string:
		return IRString(x), nil
	case bool:
		return IRBool(x), nil
	case int:
		return IRInt(x), nil
	case int8:
		return IRInt(x), nil
	case int16:
		return IRInt(x), nil
	case int32:
		return IRInt(x), nil
	case int64:
		return IRInt(x), nil
	case uint:
		return NewIRNumber(fromUint(uint64(x))), nil
	case uint8:
		return IRInt(x), nil
	case uint16:
		return IRInt(x), nil
	case uint32:
		return IRInt(x), nil
	case uint64:
		return NewIRNumber(fromUint(x)), nil
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", x, err)
		}
		return NewIRNumber(d), nil
	case decimal.Decimal:
		return NewIRNumber(x), nil
	case time.Time:
		return IRString(x.UTC().Format(time.RFC3339Nano)), nil
	case []any:
		arr := make(IRArray, len(x))
		for i, elem := range x {
			val, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil
	case []map[string]any:
		arr := make(IRArray, len(x))
		for i, elem := range x {
			val, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = val
		}
		return arr, nil
	case event.Payload:
		return FromAny(map[string]any(x))
	case map[string]any:
		obj := make(IRObject, len(x))
		for k, elem := range x {
			val, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = val
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func fromFloat(f float64) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	return NewIRNumber(decimal.NewFromFloat(f)), nil
}

// PayloadFromAny converts an event payload into an IRObject.
func PayloadFromAny(p event.Payload) (IRObject, error) {
	v, err := FromAny(p)
	if err != nil {
		return nil, err
	}
	return v.(IRObject), nil
}

// ToAny converts v back into plain Go values. Numbers come back as
// json.Number so condition evaluation keeps exact precision.
func ToAny(v IRValue) any {
	switch x := v.(type) {
	case IRNull:
		return nil
	case IRString:
		return string(x)
	case IRBool:
		return bool(x)
	case IRInt:
		return json.Number(fmt.Sprint(int64(x)))
	case IRNumber:
		return json.Number(x.String())
	case IRArray:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = ToAny(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = ToAny(elem)
		}
		return out
	}
	return nil
}

// UnmarshalJSON decodes a JSON object, keeping numbers exact.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// MarshalJSON encodes the object canonically.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// UnmarshalIRValue decodes any JSON document into an IRValue.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return FromAny(raw)
}
