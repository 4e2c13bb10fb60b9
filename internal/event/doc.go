// Package event defines the primitive input records of the engine: typed,
// timestamped events with an attribute payload, and the streams that carry
// them.
//
// Events are compared by identity. Two events with equal type, payload and
// timestamp are still distinct occurrences, so partial matches hold
// *Event pointers and never copies.
package event
