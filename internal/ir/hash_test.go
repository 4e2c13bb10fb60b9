package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refs(pairs ...any) []EventRef {
	out := make([]EventRef, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, EventRef{Name: pairs[i].(string), Seq: int64(pairs[i+1].(int))})
	}
	return out
}

func TestMatchIDDeterminism(t *testing.T) {
	id1, err := MatchID("run-1", "rising", refs("a", 1, "b", 4, "c", 9))
	require.NoError(t, err)

	id2, err := MatchID("run-1", "rising", refs("a", 1, "b", 4, "c", 9))
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "MatchID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestMatchIDChangesWithInput(t *testing.T) {
	base := MustMatchID("run-1", "rising", refs("a", 1, "b", 4, "c", 9))

	assert.NotEqual(t, base, MustMatchID("run-2", "rising", refs("a", 1, "b", 4, "c", 9)), "different run")
	assert.NotEqual(t, base, MustMatchID("run-1", "falling", refs("a", 1, "b", 4, "c", 9)), "different pattern")
	assert.NotEqual(t, base, MustMatchID("run-1", "rising", refs("a", 4, "b", 1, "c", 9)), "order matters")
	assert.NotEqual(t, base, MustMatchID("run-1", "rising", refs("a", 1, "b", 4)), "different events")
	assert.NotEqual(t, base, MustMatchID("run-1", "rising", refs("x", 1, "b", 4, "c", 9)), "different name")
}

func TestMatchIDSeparatesKleeneSlots(t *testing.T) {
	// SEQ(KC(b), KC(c)) over X#1 X#2 X#3 splits the same events two ways.
	left := MustMatchID("run-1", "kk", refs("b", 1, "b", 2, "c", 3))
	right := MustMatchID("run-1", "kk", refs("b", 1, "c", 2, "c", 3))

	assert.NotEqual(t, left, right)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`"x"`)

	assert.NotEqual(t, hashWithDomain(DomainMatch, data), hashWithDomain(DomainPattern, data))
	// Moving bytes across the separator must change the hash.
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

func TestPatternHash(t *testing.T) {
	a := PatternHash("p: SEQ(A a, B b) WHERE true WITHIN 1m0s")
	b := PatternHash("p: SEQ(A a, B b) WHERE true WITHIN 2m0s")

	assert.Len(t, a, 64)
	assert.Equal(t, a, PatternHash("p: SEQ(A a, B b) WHERE true WITHIN 1m0s"))
	assert.NotEqual(t, a, b)
}
