// Package pattern describes what a tree detects: a structure of primitive
// events combined with SEQ, AND, NOT and Kleene closure, a condition over
// the named events, a time window and a consumption policy.
package pattern
