package compiler

import (
	"fmt"
	"strings"
	"time"

	"cuelang.org/go/cue"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/evaluation"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

// Compiled is a validated pattern together with its plan.
// A nil Plan selects the left-deep plan.
type Compiled struct {
	Pattern *pattern.Pattern
	Plan    plan.Node
}

// Definition returns c in the form the evaluation package builds trees from.
func (c Compiled) Definition() evaluation.Definition {
	return evaluation.Definition{Pattern: c.Pattern, Plan: c.Plan}
}

// CompilePattern parses a CUE value into a pattern.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the pattern struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`pattern: rising: { ... }`)
//	c, err := CompilePattern(v.LookupPath(cue.ParsePath("pattern.rising")))
func CompilePattern(v cue.Value) (Compiled, error) {
	if err := v.Err(); err != nil {
		return Compiled{}, formatCUEError(err)
	}

	var name string
	if labels := v.Path().Selectors(); len(labels) > 0 {
		name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	structVal := v.LookupPath(cue.ParsePath("structure"))
	if !structVal.Exists() {
		return Compiled{}, &CompileError{
			Field:   "structure",
			Message: "structure is required",
			Pos:     v.Pos(),
		}
	}
	structure, err := parseStructure(structVal, "structure")
	if err != nil {
		return Compiled{}, err
	}

	window, err := parseWindow(v)
	if err != nil {
		return Compiled{}, err
	}

	cond := condition.True()
	if whereVal := v.LookupPath(cue.ParsePath("where")); whereVal.Exists() {
		if cond, err = parseWhere(whereVal); err != nil {
			return Compiled{}, err
		}
	}

	var policy *pattern.ConsumptionPolicy
	if policyVal := v.LookupPath(cue.ParsePath("policy")); policyVal.Exists() {
		if policy, err = parsePolicy(policyVal); err != nil {
			return Compiled{}, err
		}
	}

	pat, err := pattern.New(name, structure, cond, window, policy)
	if err != nil {
		return Compiled{}, &CompileError{
			Field:   "pattern",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}

	c := Compiled{Pattern: pat}
	if planVal := v.LookupPath(cue.ParsePath("plan")); planVal.Exists() {
		if c.Plan, err = parsePlan(planVal, "plan"); err != nil {
			return Compiled{}, err
		}
	}
	return c, nil
}

// parseStructure parses one node of the structure tree. Exactly one of the
// shapes below must be present:
//
//	{type: "T", name: "n"}
//	{seq: [...]} or {and: [...]}
//	{not: <node>}
//	{kleene: <node>, min?: int, max?: int}
func parseStructure(v cue.Value, field string) (pattern.Structure, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   field,
			Message: "structure node must be a struct",
			Pos:     v.Pos(),
		}
	}

	var shapes []string
	for _, key := range []string{"type", "seq", "and", "not", "kleene"} {
		if v.LookupPath(cue.ParsePath(key)).Exists() {
			shapes = append(shapes, key)
		}
	}
	if len(shapes) != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("structure node needs exactly one of type, seq, and, not, kleene (found %v)", shapes),
			Pos:     v.Pos(),
		}
	}

	switch shapes[0] {
	case "type":
		typ, err := requireString(v, "type", field)
		if err != nil {
			return nil, err
		}
		name, err := requireString(v, "name", field)
		if err != nil {
			return nil, err
		}
		return pattern.NewPrimitive(typ, name), nil

	case "seq", "and":
		listVal := v.LookupPath(cue.ParsePath(shapes[0]))
		iter, err := listVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var args []pattern.Structure
		for i := 0; iter.Next(); i++ {
			arg, err := parseStructure(iter.Value(), fmt.Sprintf("%s.%s[%d]", field, shapes[0], i))
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		if len(args) == 0 {
			return nil, &CompileError{
				Field:   field + "." + shapes[0],
				Message: "operator needs at least one argument",
				Pos:     listVal.Pos(),
			}
		}
		if shapes[0] == "seq" {
			return pattern.NewSeq(args...), nil
		}
		return pattern.NewAnd(args...), nil

	case "not":
		arg, err := parseStructure(v.LookupPath(cue.ParsePath("not")), field+".not")
		if err != nil {
			return nil, err
		}
		return pattern.NewNot(arg), nil

	default:
		arg, err := parseStructure(v.LookupPath(cue.ParsePath("kleene")), field+".kleene")
		if err != nil {
			return nil, err
		}
		k := pattern.NewKleene(arg)
		if k.Min, err = optionalInt(v, "min", field, k.Min); err != nil {
			return nil, err
		}
		if k.Max, err = optionalInt(v, "max", field, k.Max); err != nil {
			return nil, err
		}
		return k, nil
	}
}

// parseWindow reads "within": a Go duration string, a number of seconds, or
// "unbounded".
func parseWindow(v cue.Value) (time.Duration, error) {
	winVal := v.LookupPath(cue.ParsePath("within"))
	if !winVal.Exists() {
		return 0, &CompileError{
			Field:   "within",
			Message: "within is required",
			Pos:     v.Pos(),
		}
	}

	if secs, err := winVal.Int64(); err == nil {
		if secs <= 0 {
			return 0, &CompileError{Field: "within", Message: "window must be positive", Pos: winVal.Pos()}
		}
		return time.Duration(secs) * time.Second, nil
	}

	s, err := winVal.String()
	if err != nil {
		return 0, &CompileError{
			Field:   "within",
			Message: "within must be a duration string or a number of seconds",
			Pos:     winVal.Pos(),
		}
	}
	if s == "unbounded" {
		return pattern.Unbounded, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{Field: "within", Message: err.Error(), Pos: winVal.Pos()}
	}
	if d <= 0 {
		return 0, &CompileError{Field: "within", Message: "window must be positive", Pos: winVal.Pos()}
	}
	return d, nil
}

// parseWhere reads a single condition or a list of conjuncts.
func parseWhere(v cue.Value) (*condition.Formula, error) {
	if v.IncompleteKind() != cue.ListKind {
		atom, err := parseAtom(v, "where")
		if err != nil {
			return nil, err
		}
		return condition.And(atom), nil
	}

	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var atoms []condition.Atom
	for i := 0; iter.Next(); i++ {
		atom, err := parseAtom(iter.Value(), fmt.Sprintf("where[%d]", i))
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	return condition.And(atoms...), nil
}

// parseAtom reads a comparison string or a {consecutive, op} struct.
func parseAtom(v cue.Value, field string) (condition.Atom, error) {
	if s, err := v.String(); err == nil {
		atom, err := ParseComparison(s)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return atom, nil
	}

	attrStr, err := requireString(v, "consecutive", field)
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: `condition must be a comparison string or {consecutive: "name.field", op: "<"}`,
			Pos:     v.Pos(),
		}
	}
	attr, err := condition.ParseAttr(attrStr)
	if err != nil {
		return nil, &CompileError{Field: field + ".consecutive", Message: err.Error(), Pos: v.Pos()}
	}
	opStr, err := requireString(v, "op", field)
	if err != nil {
		return nil, err
	}
	op, err := condition.ParseOp(opStr)
	if err != nil {
		return nil, &CompileError{Field: field + ".op", Message: err.Error(), Pos: v.Pos()}
	}
	return &condition.Consecutive{Name: attr.Name, Field: attr.Field, Op: op}, nil
}

func parsePolicy(v cue.Value) (*pattern.ConsumptionPolicy, error) {
	policy := &pattern.ConsumptionPolicy{}

	var err error
	if policy.Single, err = optionalStrings(v, "single", "policy"); err != nil {
		return nil, err
	}
	if policy.Freeze, err = optionalStrings(v, "freeze", "policy"); err != nil {
		return nil, err
	}
	if mechVal := v.LookupPath(cue.ParsePath("mechanism")); mechVal.Exists() {
		mech, err := mechVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		switch m := pattern.Mechanism(mech); m {
		case pattern.MechanismNode, pattern.MechanismRoot:
			policy.Mechanism = m
		default:
			return nil, &CompileError{
				Field:   "policy.mechanism",
				Message: fmt.Sprintf("invalid mechanism %q, must be \"node\" or \"root\"", mech),
				Pos:     mechVal.Pos(),
			}
		}
	}
	return policy, nil
}

func requireString(v cue.Value, key, field string) (string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return "", &CompileError{
			Field:   field + "." + key,
			Message: key + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", &CompileError{
			Field:   field + "." + key,
			Message: key + " must be a string",
			Pos:     val.Pos(),
		}
	}
	return s, nil
}

func optionalInt(v cue.Value, key, field string, def int) (int, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return def, nil
	}
	n, err := val.Int64()
	if err != nil {
		return 0, &CompileError{
			Field:   field + "." + key,
			Message: key + " must be an integer",
			Pos:     val.Pos(),
		}
	}
	return int(n), nil
}

func optionalStrings(v cue.Value, key, field string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field + "." + key,
			Message: key + " must be a list of strings",
			Pos:     val.Pos(),
		}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field + "." + key,
				Message: key + " must be a list of strings",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}
