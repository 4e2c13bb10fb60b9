package pattern

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
)

// Unbounded is the window of a pattern without a time limit.
const Unbounded = time.Duration(math.MaxInt64)

// Mechanism selects where single-type consumption is enforced.
type Mechanism string

const (
	// MechanismNode registers single types at every internal node from the
	// parent of a consuming leaf up to the root.
	MechanismNode Mechanism = "node"
	// MechanismRoot registers single types only at the root.
	MechanismRoot Mechanism = "root"
)

// ConsumptionPolicy restricts event reuse across matches.
type ConsumptionPolicy struct {
	// Single lists event types whose events may take part in at most one
	// live partial match per node.
	Single []string
	// Mechanism selects where Single is enforced. Empty means node.
	Mechanism Mechanism
	// Freeze lists event names that, once seen, block the events following
	// them in a flat sequence until they are matched or expire.
	Freeze []string
}

// IsSingle reports whether events of typ are single-consumption.
func (c *ConsumptionPolicy) IsSingle(typ string) bool {
	return c != nil && slices.Contains(c.Single, typ)
}

// Pattern is an immutable pattern definition.
type Pattern struct {
	Name      string
	Structure Structure
	Condition *condition.Formula
	Window    time.Duration
	Policy    *ConsumptionPolicy

	refs  []Ref
	paths map[Structure][]int
}

// Ref locates one primitive event in the pattern.
type Ref struct {
	// Index is the position of the primitive in a depth-first walk of the
	// structure. Matches order their events by it.
	Index int
	// Path lists argument positions from the root. Not and Kleene do not
	// add a level.
	Path []int
	*Primitive
	Negated bool
	Kleene  bool
}

// New validates and indexes a pattern.
func New(name string, s Structure, cond *condition.Formula, window time.Duration, policy *ConsumptionPolicy) (*Pattern, error) {
	p := &Pattern{Name: name, Structure: s, Condition: cond, Window: window, Policy: policy}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(name string, s Structure, cond *condition.Formula, window time.Duration, policy *ConsumptionPolicy) *Pattern {
	p, err := New(name, s, cond, window, policy)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate checks the structure and builds the primitive index.
func (p *Pattern) Validate() error {
	if p.Structure == nil {
		return errors.New("pattern structure is required")
	}
	if p.Window <= 0 {
		return fmt.Errorf("pattern %q: window must be positive", p.Name)
	}
	if p.Condition == nil {
		p.Condition = condition.True()
	}
	p.refs = nil
	p.paths = map[Structure][]int{}
	if err := p.walk(p.Structure, nil, false, false); err != nil {
		return fmt.Errorf("pattern %q: %w", p.Name, err)
	}
	if len(p.refs) == 0 {
		return fmt.Errorf("pattern %q: no primitive events", p.Name)
	}
	if _, ok := p.Structure.(*Not); ok {
		return fmt.Errorf("pattern %q: top-level structure cannot be negated", p.Name)
	}
	seen := map[string]bool{}
	for _, r := range p.refs {
		if seen[r.Name] {
			return fmt.Errorf("pattern %q: duplicate event name %q", p.Name, r.Name)
		}
		seen[r.Name] = true
	}
	if p.Policy != nil {
		switch p.Policy.Mechanism {
		case "", MechanismNode, MechanismRoot:
		default:
			return fmt.Errorf("pattern %q: unknown single mechanism %q", p.Name, p.Policy.Mechanism)
		}
		for _, n := range p.Policy.Freeze {
			if !seen[n] {
				return fmt.Errorf("pattern %q: freeze names unknown event %q", p.Name, n)
			}
		}
	}
	for _, n := range p.Condition.Names() {
		if !seen[n] {
			return fmt.Errorf("pattern %q: condition references unknown event %q", p.Name, n)
		}
	}
	return nil
}

func (p *Pattern) walk(s Structure, path []int, negated, kleene bool) error {
	p.paths[s] = slices.Clone(path)
	switch s := s.(type) {
	case *Primitive:
		if s.Type == "" || s.Name == "" {
			return errors.New("primitive events need a type and a name")
		}
		p.refs = append(p.refs, Ref{
			Index:     len(p.refs),
			Path:      slices.Clone(path),
			Primitive: s,
			Negated:   negated,
			Kleene:    kleene,
		})
		return nil
	case *Seq, *And:
		args := Args(s)
		if len(args) == 0 {
			return fmt.Errorf("%T has no arguments", s)
		}
		for i, a := range args {
			if err := p.walk(a, append(slices.Clone(path), i), negated, kleene); err != nil {
				return err
			}
		}
		return nil
	case *Not:
		if negated {
			return errors.New("nested negation is not supported")
		}
		return p.walk(s.Arg, path, true, kleene)
	case *Kleene:
		switch s.Arg.(type) {
		case *Not:
			return errors.New("kleene closure of a negation is not supported")
		case *Kleene:
			return errors.New("nested kleene closure is not supported")
		}
		return p.walk(s.Arg, path, negated, true)
	case nil:
		return errors.New("nil structure")
	}
	return fmt.Errorf("unknown structure %T", s)
}

// Primitives returns every primitive in depth-first order.
func (p *Pattern) Primitives() []Ref {
	return slices.Clone(p.refs)
}

// RefOf returns the index entry of a primitive of this pattern.
func (p *Pattern) RefOf(prim *Primitive) (Ref, bool) {
	for _, r := range p.refs {
		if r.Primitive == prim {
			return r, true
		}
	}
	return Ref{}, false
}

// PathOf returns the argument path of any node of the structure.
func (p *Pattern) PathOf(s Structure) ([]int, bool) {
	path, ok := p.paths[s]
	return path, ok
}

// FlatSequences returns the runs of consecutive primitive names inside each
// Seq of the structure. Negated arguments break a run. Freeze uses these to
// decide which events a freezer blocks.
func (p *Pattern) FlatSequences() [][]string {
	var out [][]string
	var visit func(s Structure)
	visit = func(s Structure) {
		switch s := s.(type) {
		case *Seq:
			var run []string
			for _, a := range s.Args {
				if prim, ok := a.(*Primitive); ok {
					run = append(run, prim.Name)
					continue
				}
				if len(run) > 0 {
					out = append(out, run)
					run = nil
				}
				visit(a)
			}
			if len(run) > 0 {
				out = append(out, run)
			}
		case *And:
			for _, a := range s.Args {
				visit(a)
			}
		case *Kleene:
			visit(s.Arg)
		}
	}
	visit(p.Structure)
	return out
}

// FreezeMap maps each freeze-designated name to the names it blocks while
// active: every name of its flat sequences up to and including itself.
func (p *Pattern) FreezeMap() map[string][]string {
	if p.Policy == nil || len(p.Policy.Freeze) == 0 {
		return nil
	}
	out := map[string][]string{}
	for _, freezer := range p.Policy.Freeze {
		for _, seq := range p.FlatSequences() {
			i := slices.Index(seq, freezer)
			if i < 0 {
				continue
			}
			for _, name := range seq[:i+1] {
				if !slices.Contains(out[freezer], name) {
					out[freezer] = append(out[freezer], name)
				}
			}
		}
	}
	return out
}

func (p *Pattern) String() string {
	return fmt.Sprintf("%s: %s WHERE %s WITHIN %s", p.Name, p.Structure, p.Condition, p.Window)
}
