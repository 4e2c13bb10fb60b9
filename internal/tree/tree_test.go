package tree

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YossiLevi4497/OpenCEP/internal/condition"
	"github.com/YossiLevi4497/OpenCEP/internal/event"
	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
	"github.com/YossiLevi4497/OpenCEP/internal/plan"
)

func TestSeq_PriceWithinWindow(t *testing.T) {
	pat := pattern.MustNew("rise",
		pattern.NewSeq(pattern.NewPrimitive("X", "a"), pattern.NewPrimitive("Y", "b")),
		condition.And(attrLess("a", "b")),
		5*time.Minute, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	x := f.at("X", 0, price(10))
	y1 := f.at("Y", 1, price(20))
	y2 := f.at("Y", 400, price(5))

	matches := run(tr, x, y1, y2)
	require.Len(t, matches, 1)
	assert.Equal(t, []*event.Event{x, y1}, matches[0].Events)
	assert.Equal(t, []string{"a", "b"}, matches[0].Names)
	assert.Equal(t, "rise", matches[0].Pattern)
	assert.True(t, matches[0].First.Equal(x.Timestamp))
	assert.True(t, matches[0].Last.Equal(y1.Timestamp))
}

func TestSeq_OrderAndCompleteness(t *testing.T) {
	pat := pattern.MustNew("ab",
		pattern.NewSeq(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b")),
		nil, time.Minute, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	b0 := f.at("B", 0, nil)
	a1 := f.at("A", 1, nil)
	a2 := f.at("A", 2, nil)
	b3 := f.at("B", 3, nil)

	matches := run(tr, b0, a1, a2, b3)
	assert.Equal(t, [][]int64{{a1.Seq, b3.Seq}, {a2.Seq, b3.Seq}}, seqs(matches),
		"every valid combination is found once and b0 precedes every a")
}

func TestAnd_OrdersByPatternPosition(t *testing.T) {
	pat := pattern.MustNew("abc",
		pattern.NewAnd(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b"), pattern.NewPrimitive("C", "c")),
		nil, time.Minute, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	c := f.at("C", 0, nil)
	a := f.at("A", 1, nil)
	b := f.at("B", 2, nil)

	matches := run(tr, c, a, b)
	require.Len(t, matches, 1)
	assert.Equal(t, []*event.Event{a, b, c}, matches[0].Events)
}

func TestAnd_EveryArrivalOrder(t *testing.T) {
	orders := [][]string{
		{"A", "B", "C"}, {"A", "C", "B"},
		{"B", "A", "C"}, {"B", "C", "A"},
		{"C", "A", "B"}, {"C", "B", "A"},
	}
	for _, order := range orders {
		t.Run(strings.Join(order, ""), func(t *testing.T) {
			pat := pattern.MustNew("abc",
				pattern.NewAnd(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b"), pattern.NewPrimitive("C", "c")),
				nil, time.Minute, nil)
			tr := build(t, pat, DefaultStorageParams())

			f := newFeed()
			byType := map[string]*event.Event{}
			var events []*event.Event
			for i, typ := range order {
				e := f.at(typ, i, nil)
				byType[typ] = e
				events = append(events, e)
			}

			matches := run(tr, events...)
			require.Len(t, matches, 1)
			assert.Equal(t, []*event.Event{byType["A"], byType["B"], byType["C"]}, matches[0].Events)
			assert.Equal(t, []string{"a", "b", "c"}, matches[0].Names)
		})
	}
}

func TestSeq_ExplicitPlansAgreeWithLeftDeep(t *testing.T) {
	pat := pattern.MustNew("abcd",
		pattern.NewSeq(
			pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b"),
			pattern.NewPrimitive("C", "c"), pattern.NewPrimitive("D", "d")),
		condition.And(attrLess("a", "d")),
		time.Minute, nil)

	stream := func() []*event.Event {
		f := newFeed()
		return []*event.Event{
			f.at("A", 0, price(10)), // 1
			f.at("C", 1, price(0)),  // 2, before every B
			f.at("B", 2, price(0)),  // 3
			f.at("A", 3, price(30)), // 4, above every D
			f.at("C", 4, price(0)),  // 5
			f.at("B", 5, price(0)),  // 6
			f.at("D", 6, price(20)), // 7
			f.at("C", 7, price(0)),  // 8
			f.at("D", 8, price(15)), // 9
		}
	}
	want := [][]int64{{1, 3, 5, 7}, {1, 3, 5, 9}, {1, 3, 8, 9}, {1, 6, 8, 9}}

	leftDeep := run(build(t, pat, DefaultStorageParams()), stream()...)
	assert.ElementsMatch(t, want, seqs(leftDeep))

	plans := map[string]plan.Node{
		"bushy": plan.Binary{Op: plan.OpSeq,
			Left:  plan.Binary{Op: plan.OpSeq, Left: plan.Leaf{Index: 3}, Right: plan.Leaf{Index: 1}},
			Right: plan.Binary{Op: plan.OpSeq, Left: plan.Leaf{Index: 2}, Right: plan.Leaf{Index: 0}},
		},
		"reversed": plan.Binary{Op: plan.OpSeq,
			Left: plan.Leaf{Index: 3},
			Right: plan.Binary{Op: plan.OpSeq,
				Left:  plan.Leaf{Index: 2},
				Right: plan.Binary{Op: plan.OpSeq, Left: plan.Leaf{Index: 1}, Right: plan.Leaf{Index: 0}},
			},
		},
	}
	for name, p := range plans {
		t.Run(name, func(t *testing.T) {
			tr, err := New(p, pat, DefaultStorageParams())
			require.NoError(t, err)

			matches := run(tr, stream()...)
			assert.Equal(t, keys(leftDeep), keys(matches))
			for _, m := range matches {
				assert.Equal(t, []string{"a", "b", "c", "d"}, m.Names)
				for i := 1; i < len(m.Events); i++ {
					assert.False(t, m.Events[i].Timestamp.Before(m.Events[i-1].Timestamp),
						"events out of order in %s", m)
				}
			}
		})
	}
}

func TestDrain_Idempotent(t *testing.T) {
	pat := pattern.MustNew("ab",
		pattern.NewSeq(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b")),
		nil, time.Minute, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	tr.HandleEvent(f.at("A", 0, nil))
	tr.HandleEvent(f.at("B", 1, nil))

	assert.Len(t, tr.Drain(), 1)
	assert.Empty(t, tr.Drain())
	assert.Empty(t, tr.Flush())
}

func TestSameTypeLeaves_NeverShareAnEvent(t *testing.T) {
	pat := pattern.MustNew("pair",
		pattern.NewSeq(pattern.NewPrimitive("A", "first"), pattern.NewPrimitive("A", "second")),
		nil, time.Minute, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	a1 := f.at("A", 0, nil)
	a2 := f.at("A", 1, nil)

	matches := run(tr, a1, a2)
	assert.Equal(t, [][]int64{{a1.Seq, a2.Seq}}, seqs(matches))
}

func TestNested_SeqOfAnd(t *testing.T) {
	pat := pattern.MustNew("nested",
		pattern.NewSeq(
			pattern.NewPrimitive("A", "a"),
			pattern.NewAnd(pattern.NewPrimitive("B", "b"), pattern.NewPrimitive("C", "c")),
			pattern.NewPrimitive("D", "d"),
		),
		nil, time.Minute, nil)

	t.Run("in order", func(t *testing.T) {
		tr := build(t, pat, DefaultStorageParams())
		f := newFeed()
		a := f.at("A", 0, nil)
		c := f.at("C", 1, nil)
		b := f.at("B", 2, nil)
		d := f.at("D", 3, nil)
		matches := run(tr, a, c, b, d)
		require.Len(t, matches, 1)
		assert.Equal(t, []*event.Event{a, b, c, d}, matches[0].Events)
	})

	t.Run("group out of order", func(t *testing.T) {
		tr := build(t, pat, DefaultStorageParams())
		f := newFeed()
		assert.Empty(t, run(tr, f.at("A", 0, nil), f.at("C", 1, nil), f.at("D", 2, nil), f.at("B", 3, nil)))
	})

	t.Run("group before first", func(t *testing.T) {
		tr := build(t, pat, DefaultStorageParams())
		f := newFeed()
		assert.Empty(t, run(tr, f.at("B", 0, nil), f.at("A", 1, nil), f.at("C", 2, nil), f.at("D", 3, nil)))
	})
}

func TestSingle_EventJoinsOneMatch(t *testing.T) {
	pat := pattern.MustNew("single",
		pattern.NewSeq(pattern.NewPrimitive("X", "a"), pattern.NewPrimitive("Y", "b")),
		nil, time.Minute, &pattern.ConsumptionPolicy{Single: []string{"X"}})
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	x1 := f.at("X", 0, nil)
	y1 := f.at("Y", 1, nil)
	y2 := f.at("Y", 2, nil)

	matches := run(tr, x1, y1, y2)
	require.Len(t, matches, 1)
	assert.Same(t, x1, matches[0].Events[0])
	assert.Contains(t, []*event.Event{y1, y2}, matches[0].Events[1])
}

func TestSingle_ReleasedAfterExpiry(t *testing.T) {
	pat := pattern.MustNew("single",
		pattern.NewSeq(pattern.NewPrimitive("X", "a"), pattern.NewPrimitive("Y", "b")),
		nil, 10*time.Second, &pattern.ConsumptionPolicy{Single: []string{"X"}})
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	x1 := f.at("X", 0, nil)
	y1 := f.at("Y", 1, nil)
	x2 := f.at("X", 20, nil)
	y2 := f.at("Y", 21, nil)

	assert.Equal(t, [][]int64{{x1.Seq, y1.Seq}, {x2.Seq, y2.Seq}}, seqs(run(tr, x1, y1, x2, y2)))
	walk(tr.root, func(n Node) {
		if g := n.base().single; g != nil {
			assert.NotContains(t, g.inUse, x1, "expired events are released")
		}
	})
}

func TestSingle_Mechanisms(t *testing.T) {
	structure := func() pattern.Structure {
		return pattern.NewSeq(pattern.NewPrimitive("X", "a"), pattern.NewPrimitive("Y", "b"), pattern.NewPrimitive("Z", "c"))
	}
	tests := []struct {
		mechanism  pattern.Mechanism
		innerCount int
	}{
		{pattern.MechanismNode, 1},
		{pattern.MechanismRoot, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.mechanism), func(t *testing.T) {
			pat := pattern.MustNew("single", structure(), nil, time.Minute,
				&pattern.ConsumptionPolicy{Single: []string{"X"}, Mechanism: tt.mechanism})
			tr := build(t, pat, DefaultStorageParams())

			f := newFeed()
			matches := run(tr, f.at("X", 0, nil), f.at("Y", 1, nil), f.at("Y", 2, nil), f.at("Z", 3, nil))
			assert.Len(t, matches, 1)

			inner := tr.root.children()[0]
			assert.Len(t, inner.PartialMatches(), tt.innerCount)
		})
	}
}

func TestFreeze_BlocksNewSequences(t *testing.T) {
	structure := func() pattern.Structure {
		return pattern.NewSeq(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b"))
	}
	f := newFeed()
	a1 := f.at("A", 0, nil)
	a2 := f.at("A", 1, nil)
	b1 := f.at("B", 2, nil)
	a3 := f.at("A", 3, nil)
	b2 := f.at("B", 4, nil)

	frozen := build(t, pattern.MustNew("freeze", structure(), nil, time.Minute,
		&pattern.ConsumptionPolicy{Freeze: []string{"a"}}), DefaultStorageParams())
	got := run(frozen, a1, a2, b1, a3, b2)
	assert.Equal(t, [][]int64{{a1.Seq, b1.Seq}, {a1.Seq, b2.Seq}, {a3.Seq, b2.Seq}}, seqs(got),
		"a2 arrives while a1 is an active freezer")

	plain := build(t, pattern.MustNew("plain", structure(), nil, time.Minute, nil), DefaultStorageParams())
	assert.Len(t, run(plain, a1, a2, b1, a3, b2), 5)
}

func TestFreeze_ExpiredFreezerUnblocks(t *testing.T) {
	pat := pattern.MustNew("freeze",
		pattern.NewSeq(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b")),
		nil, 10*time.Second, &pattern.ConsumptionPolicy{Freeze: []string{"a"}})
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	a1 := f.at("A", 0, nil)
	a2 := f.at("A", 20, nil)
	b := f.at("B", 21, nil)
	assert.Equal(t, [][]int64{{a2.Seq, b.Seq}}, seqs(run(tr, a1, a2, b)))
}

func TestUnsortedStorage_SameMatches(t *testing.T) {
	pat := func() *pattern.Pattern {
		return pattern.MustNew("mix",
			pattern.NewSeq(
				pattern.NewPrimitive("A", "a"),
				pattern.NewAnd(pattern.NewPrimitive("B", "b"), pattern.NewPrimitive("C", "c")),
			),
			condition.And(attrLess("a", "c")),
			5*time.Second, nil)
	}
	f := newFeed()
	var events []*event.Event
	types := []string{"A", "B", "C", "A", "C", "B", "B", "A", "C", "C", "B", "A"}
	for i, typ := range types {
		events = append(events, f.at(typ, i, price(i%4)))
	}

	sorted := build(t, pat(), DefaultStorageParams())
	unsorted := build(t, pat(), StorageParams{Sorted: false})

	want := run(sorted, events...)
	assert.NotEmpty(t, want)
	assert.Equal(t, keys(want), keys(run(unsorted, events...)))
}

func TestWindow_StoresStayWithinWindow(t *testing.T) {
	pat := pattern.MustNew("win",
		pattern.NewSeq(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b"), pattern.NewPrimitive("C", "c")),
		nil, 3*time.Second, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	for i := 0; i < 30; i++ {
		tr.HandleEvent(f.at([]string{"A", "B", "C"}[i%3], i, nil))
		windowHolds(t, tr)
		for _, m := range tr.Drain() {
			assert.LessOrEqual(t, m.Last.Sub(m.First), 3*time.Second)
		}
	}
}

func TestUnboundedWindow(t *testing.T) {
	pat := pattern.MustNew("forever",
		pattern.NewSeq(pattern.NewPrimitive("A", "a"), pattern.NewPrimitive("B", "b")),
		nil, pattern.Unbounded, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	a := f.at("A", 0, nil)
	b := f.at("B", 1_000_000, nil)
	assert.Equal(t, [][]int64{{a.Seq, b.Seq}}, seqs(run(tr, a, b)))
}

func TestSinglePrimitivePattern(t *testing.T) {
	pat := pattern.MustNew("one", pattern.NewPrimitive("A", "a"),
		condition.And(&condition.Comparison{Left: condition.Attr{Name: "a", Field: "price"}, Op: condition.OpGT, Right: condition.Const{Value: 5}}),
		time.Minute, nil)
	tr := build(t, pat, DefaultStorageParams())

	f := newFeed()
	hit := f.at("A", 0, price(10))
	assert.Equal(t, [][]int64{{hit.Seq}}, seqs(run(tr, f.at("A", 0, price(1)), hit, f.at("B", 1, price(10)))))
}

func TestSummary(t *testing.T) {
	pat := pattern.MustNew("sum",
		pattern.NewSeq(
			pattern.NewPrimitive("A", "a"),
			pattern.NewKleene(pattern.NewPrimitive("B", "b")),
			pattern.NewAnd(pattern.NewPrimitive("C", "c"), pattern.NewPrimitive("D", "d")),
			pattern.NewNot(pattern.NewPrimitive("E", "e")),
		),
		nil, time.Minute, nil)
	tr := build(t, pat, DefaultStorageParams())

	s := tr.Summary()
	assert.Equal(t, "NSEQ(SEQ(SEQ(a,KC(b)),AND(c,d)),~e)", s.Shape)
	assert.Equal(t, Summary{
		Pattern: "sum", Shape: s.Shape, Window: time.Minute,
		Depth: 5, Leaves: 5, Seq: 2, And: 1, Negations: 1, Kleene: 1,
	}, s)

	names := []string{}
	for _, l := range tr.Leaves() {
		names = append(names, l.Name())
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, names)
}
