package condition

import (
	"slices"
	"sort"
)

func (c *Comparison) Names() []string {
	var names []string
	for _, o := range []Operand{c.Left, c.Right} {
		if a, ok := o.(Attr); ok && !slices.Contains(names, a.Name) {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Comparison) Eval(b Binding) bool {
	left, ok := resolve(c.Left, b)
	if !ok {
		return false
	}
	right, ok := resolve(c.Right, b)
	if !ok {
		return false
	}
	for _, l := range left {
		for _, r := range right {
			if !Compare(l, c.Op, r) {
				return false
			}
		}
	}
	return true
}

func (c *Comparison) String() string {
	return c.Left.String() + " " + string(c.Op) + " " + c.Right.String()
}

func (*Comparison) kleene() bool { return false }

func (c *Consecutive) Names() []string { return []string{c.Name} }

func (c *Consecutive) Eval(b Binding) bool {
	vals, ok := resolve(Attr{Name: c.Name, Field: c.Field}, b)
	if !ok {
		return false
	}
	for i := 1; i < len(vals); i++ {
		if !Compare(vals[i-1], c.Op, vals[i]) {
			return false
		}
	}
	return true
}

func (c *Consecutive) String() string {
	return "consecutive(" + c.Name + "." + c.Field + " " + string(c.Op) + ")"
}

func (*Consecutive) kleene() bool { return true }

func (p *Predicate) Names() []string {
	names := slices.Clone(p.On)
	sort.Strings(names)
	return slices.Compact(names)
}

func (p *Predicate) Eval(b Binding) bool {
	for _, n := range p.On {
		if _, ok := b[n]; !ok {
			return false
		}
	}
	return p.Fn(b)
}

func (p *Predicate) String() string {
	if p.Label != "" {
		return p.Label
	}
	return "predicate"
}

func (*Predicate) kleene() bool { return false }

// resolve returns every value an operand denotes under b.
func resolve(o Operand, b Binding) ([]any, bool) {
	switch o := o.(type) {
	case Const:
		return []any{o.Value}, true
	case Attr:
		bound, ok := b[o.Name]
		if !ok {
			return nil, false
		}
		switch v := bound.(type) {
		case map[string]any:
			f, ok := v[o.Field]
			return []any{f}, ok
		case []map[string]any:
			out := make([]any, 0, len(v))
			for _, p := range v {
				f, ok := p[o.Field]
				if !ok {
					return nil, false
				}
				out = append(out, f)
			}
			return out, true
		}
	}
	return nil, false
}
