package condition

import (
	"slices"
	"strings"
)

// Formula is a conjunction of atoms. The empty formula is true.
//
// Extract consumes atoms, so a tree hands a single Formula down its nodes
// and checks that nothing is left over once every node has taken its share.
type Formula struct {
	atoms []Atom
}

// And builds a formula from atoms.
func And(atoms ...Atom) *Formula {
	return &Formula{atoms: slices.Clone(atoms)}
}

// True returns the empty formula.
func True() *Formula {
	return &Formula{}
}

// Atoms returns the remaining atoms in insertion order.
func (f *Formula) Atoms() []Atom {
	if f == nil {
		return nil
	}
	return slices.Clone(f.atoms)
}

// Len returns the number of atoms.
func (f *Formula) Len() int {
	if f == nil {
		return 0
	}
	return len(f.atoms)
}

// Clone returns an independent copy.
func (f *Formula) Clone() *Formula {
	if f == nil {
		return True()
	}
	return &Formula{atoms: slices.Clone(f.atoms)}
}

// Names returns every event name referenced by the formula, sorted.
func (f *Formula) Names() []string {
	var names []string
	for _, a := range f.Atoms() {
		names = append(names, a.Names()...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Eval reports whether every atom holds under b.
func (f *Formula) Eval(b Binding) bool {
	if f == nil {
		return true
	}
	for _, a := range f.atoms {
		if !a.Eval(b) {
			return false
		}
	}
	return true
}

// Extract removes and returns the atoms whose names all belong to names.
// Kleene-only atoms are taken only when includeKleene is set.
func (f *Formula) Extract(names []string, includeKleene bool) *Formula {
	out := True()
	if f == nil {
		return out
	}
	kept := f.atoms[:0:0]
	for _, a := range f.atoms {
		if (includeKleene || !a.kleene()) && subset(a.Names(), names) {
			out.atoms = append(out.atoms, a)
			continue
		}
		kept = append(kept, a)
	}
	f.atoms = kept
	return out
}

func (f *Formula) String() string {
	if f.Len() == 0 {
		return "true"
	}
	parts := make([]string, len(f.atoms))
	for i, a := range f.atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, " && ")
}

func subset(sub, set []string) bool {
	for _, n := range sub {
		if !slices.Contains(set, n) {
			return false
		}
	}
	return true
}
