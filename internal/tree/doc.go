// Package tree implements tree-based pattern evaluation.
//
// A Tree is built from a pattern and a plan. Leaves accept events of one
// type and turn them into single-event partial matches; internal nodes
// combine the partial matches of their children according to their
// operator (SEQ, AND, negation or Kleene closure), check the part of the
// pattern condition that first becomes decidable at that node, and pass the
// survivors upward. Partial matches that reach the root are full matches.
//
// Every node keeps its partial matches in a store ordered by first
// timestamp and evicts those that can no longer complete within the
// pattern window.
//
// Threading model: a Tree is not safe for concurrent use. One goroutine
// feeds events through HandleEvent and collects results with Drain.
package tree
