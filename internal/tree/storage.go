package tree

import (
	"slices"
	"sort"
	"time"

	"github.com/YossiLevi4497/OpenCEP/internal/pattern"
)

// StorageParams configures the partial match stores of every node.
type StorageParams struct {
	// Sorted keeps each store ordered by first timestamp so eviction is a
	// binary search. Unsorted stores append and scan.
	Sorted bool
}

// DefaultStorageParams returns sorted storage.
func DefaultStorageParams() StorageParams {
	return StorageParams{Sorted: true}
}

// Store holds the live partial matches of a node.
type Store interface {
	Insert(pm *PartialMatch)
	// EvictExpired removes and returns every match whose first timestamp
	// is older than ref minus window.
	EvictExpired(ref time.Time, window time.Duration) []*PartialMatch
	// Remove deletes and returns the matches selected by drop.
	Remove(drop func(*PartialMatch) bool) []*PartialMatch
	// All returns the live matches. Callers must not modify the result.
	All() []*PartialMatch
	// TakeFirst removes and returns the earliest match.
	TakeFirst() (*PartialMatch, bool)
	Len() int
}

func newStore(params StorageParams) Store {
	if params.Sorted {
		return &sortedStore{}
	}
	return &unsortedStore{}
}

// sortedStore keeps matches ordered by first timestamp. Matches with equal
// first timestamps keep insertion order.
type sortedStore struct {
	pms []*PartialMatch
}

func (s *sortedStore) Insert(pm *PartialMatch) {
	i := sort.Search(len(s.pms), func(i int) bool {
		return s.pms[i].first.After(pm.first)
	})
	s.pms = slices.Insert(s.pms, i, pm)
}

func (s *sortedStore) EvictExpired(ref time.Time, window time.Duration) []*PartialMatch {
	if window == pattern.Unbounded || len(s.pms) == 0 {
		return nil
	}
	threshold := ref.Add(-window)
	n := sort.Search(len(s.pms), func(i int) bool {
		return !s.pms[i].first.Before(threshold)
	})
	if n == 0 {
		return nil
	}
	expired := slices.Clone(s.pms[:n])
	s.pms = slices.Clone(s.pms[n:])
	return expired
}

func (s *sortedStore) Remove(drop func(*PartialMatch) bool) []*PartialMatch {
	return removeFunc(&s.pms, drop)
}

func (s *sortedStore) All() []*PartialMatch { return s.pms }

func (s *sortedStore) TakeFirst() (*PartialMatch, bool) {
	if len(s.pms) == 0 {
		return nil, false
	}
	pm := s.pms[0]
	s.pms = s.pms[1:]
	return pm, true
}

func (s *sortedStore) Len() int { return len(s.pms) }

// unsortedStore keeps matches in insertion order.
type unsortedStore struct {
	pms []*PartialMatch
}

func (s *unsortedStore) Insert(pm *PartialMatch) {
	s.pms = append(s.pms, pm)
}

func (s *unsortedStore) EvictExpired(ref time.Time, window time.Duration) []*PartialMatch {
	if window == pattern.Unbounded {
		return nil
	}
	threshold := ref.Add(-window)
	return removeFunc(&s.pms, func(pm *PartialMatch) bool {
		return pm.first.Before(threshold)
	})
}

func (s *unsortedStore) Remove(drop func(*PartialMatch) bool) []*PartialMatch {
	return removeFunc(&s.pms, drop)
}

func (s *unsortedStore) All() []*PartialMatch { return s.pms }

func (s *unsortedStore) TakeFirst() (*PartialMatch, bool) {
	if len(s.pms) == 0 {
		return nil, false
	}
	pm := s.pms[0]
	s.pms = s.pms[1:]
	return pm, true
}

func (s *unsortedStore) Len() int { return len(s.pms) }

// removeFunc rebuilds *pms without the dropped entries. The old backing
// array is left untouched so callers iterating a previous All() result are
// unaffected.
func removeFunc(pms *[]*PartialMatch, drop func(*PartialMatch) bool) []*PartialMatch {
	var removed []*PartialMatch
	kept := make([]*PartialMatch, 0, len(*pms))
	for _, pm := range *pms {
		if drop(pm) {
			removed = append(removed, pm)
			continue
		}
		kept = append(kept, pm)
	}
	if len(removed) > 0 {
		*pms = kept
	}
	return removed
}
