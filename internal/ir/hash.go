package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the algorithm to change without collisions.
const (
	DomainMatch   = "opencep/match/v2"
	DomainPattern = "opencep/pattern/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventRef is one matched event as it enters a match identity: the
// pattern name it is bound to and its sequence number.
type EventRef struct {
	Name string
	Seq  int64
}

// MatchID computes the content-addressed ID of a match.
//
// The ID covers the run, the pattern name and the (name, sequence number)
// pairs of the matched events in pattern order. Names keep apart matches
// that bind the same events to different slots, as adjacent Kleene
// closures can. Payloads are excluded: within a run an event is identified
// by its sequence number.
func MatchID(runID, pattern string, refs []EventRef) (string, error) {
	events := make(IRArray, len(refs))
	for i, r := range refs {
		events[i] = IRArray{IRString(r.Name), IRInt(r.Seq)}
	}
	obj := IRObject{
		"run_id":  IRString(runID),
		"pattern": IRString(pattern),
		"events":  events,
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal match identity: %w", err)
	}
	return hashWithDomain(DomainMatch, data), nil
}

// MustMatchID is MatchID that panics on error. Use in tests only.
func MustMatchID(runID, pattern string, refs []EventRef) string {
	id, err := MatchID(runID, pattern, refs)
	if err != nil {
		panic(err)
	}
	return id
}

// PatternHash fingerprints a pattern definition, typically its String form.
// Runs record it so stored matches can be tied to the exact pattern that
// produced them.
func PatternHash(definition string) string {
	// A string always marshals.
	data, _ := MarshalCanonical(IRString(definition))
	return hashWithDomain(DomainPattern, data)
}
