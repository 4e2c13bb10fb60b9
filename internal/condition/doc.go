// Package condition implements the predicate language attached to patterns.
//
// A Formula is a conjunction of atoms. Each atom names the pattern events it
// reads, which lets the tree push every atom down to the lowest node whose
// events cover those names:
//
//	a.price < b.price     -> evaluated where a and b first meet
//	a.price > 100         -> evaluated at the leaf for a
//	consecutive(a.price)  -> evaluated at the Kleene node that owns a
//
// Atoms are evaluated against a Binding: event name to payload, or to the
// ordered payload list of a Kleene event.
package condition
