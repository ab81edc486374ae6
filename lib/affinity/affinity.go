// Package affinity tracks how often a visitor has looked at each genre.
package affinity

import (
	"sort"

	"github.com/icco/animeportal/models"
)

// Affinity maps genre ids to view counts and remembers the order in which
// genres were first seen. The zero value is an empty affinity.
type Affinity struct {
	Counts map[uint]int `json:"counts"`
	Order  []uint       `json:"order"`
}

// New returns an empty affinity.
func New() Affinity {
	return Affinity{Counts: map[uint]int{}}
}

// Empty reports whether no genre has been counted.
func (a Affinity) Empty() bool {
	return len(a.Order) == 0
}

// Count returns the counter for a genre, zero when absent.
func (a Affinity) Count(genreID uint) int {
	return a.Counts[genreID]
}

// Clone returns a deep copy.
func (a Affinity) Clone() Affinity {
	out := Affinity{
		Counts: make(map[uint]int, len(a.Counts)),
		Order:  make([]uint, len(a.Order)),
	}
	for k, v := range a.Counts {
		out.Counts[k] = v
	}
	copy(out.Order, a.Order)
	return out
}

// Add increments a genre counter by n, recording it on first sight.
func (a *Affinity) Add(genreID uint, n int) {
	if a.Counts == nil {
		a.Counts = map[uint]int{}
	}
	if _, ok := a.Counts[genreID]; !ok {
		a.Order = append(a.Order, genreID)
	}
	a.Counts[genreID] += n
}

// RecordView counts one view of an item tagged with genres. Genres whose name
// is in reserved are skipped. The input is left untouched.
func RecordView(a Affinity, genres []models.Genre, reserved map[string]bool) Affinity {
	out := a.Clone()
	for _, g := range genres {
		if reserved[g.Name] {
			continue
		}
		out.Add(g.ID, 1)
	}
	return out
}

// Ranked returns genre ids by count descending. Ties keep first-seen order.
func (a Affinity) Ranked() []uint {
	ids := make([]uint, 0, len(a.Order))
	for _, id := range a.Order {
		if a.Counts[id] > 0 {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return a.Counts[ids[i]] > a.Counts[ids[j]]
	})
	return ids
}

// Top returns at most n of the highest ranked genre ids.
func (a Affinity) Top(n int) []uint {
	ids := a.Ranked()
	if n >= 0 && len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// ReservedSet turns a list of genre names into a lookup set.
func ReservedSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
