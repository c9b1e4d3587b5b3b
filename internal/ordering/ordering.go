// Package ordering holds the sibling-order rules shared by the storage
// backends and the listing view: next-ord allocation, insert-at-index
// renumbering and the deterministic sort laws.
package ordering

import (
	"sort"
	"strings"
	"time"

	"github.com/shoplist/shoplist/internal/models"
)

// Next returns the ord for an entity appended to a scope whose current
// maximum active ord is max. An empty scope has max 0.
func Next(max int64) int64 {
	if max < 0 {
		max = 0
	}
	return max + 1
}

// Clamp bounds index to [0, n].
func Clamp(index, n int) int {
	if index < 0 {
		return 0
	}
	if index > n {
		return n
	}
	return index
}

// InsertAt returns siblings with id removed and then re-inserted at the
// clamped index. The input slice is not modified.
func InsertAt(siblings []int64, id int64, index int) []int64 {
	rest := make([]int64, 0, len(siblings)+1)
	for _, s := range siblings {
		if s != id {
			rest = append(rest, s)
		}
	}
	index = Clamp(index, len(rest))
	out := make([]int64, 0, len(rest)+1)
	out = append(out, rest[:index]...)
	out = append(out, id)
	out = append(out, rest[index:]...)
	return out
}

// Position is the ord assigned to the i-th (zero-based) member of a
// renumbered sequence.
func Position(i int) int64 { return int64(i) + 1 }

// SameMembers reports whether want is a permutation of have.
func SameMembers(have, want []int64) bool {
	if len(have) != len(want) {
		return false
	}
	seen := make(map[int64]int, len(have))
	for _, id := range have {
		seen[id]++
	}
	for _, id := range want {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}

// before orders by ord ascending, then most recently updated first.
func before(ordA, ordB int64, updatedA, updatedB time.Time) bool {
	if ordA != ordB {
		return ordA < ordB
	}
	return updatedA.After(updatedB)
}

func SortItems(items []models.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return before(items[i].Ord, items[j].Ord, items[i].UpdatedAt, items[j].UpdatedAt)
	})
}

func SortSections(sections []models.Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		return before(sections[i].Ord, sections[j].Ord, sections[i].UpdatedAt, sections[j].UpdatedAt)
	})
}

// SortStores orders stores by name ascending, then most recently updated first.
func SortStores(stores []models.Store) {
	sort.SliceStable(stores, func(i, j int) bool {
		if c := strings.Compare(stores[i].Name, stores[j].Name); c != 0 {
			return c < 0
		}
		return stores[i].UpdatedAt.After(stores[j].UpdatedAt)
	})
}

func SortListStores(stores []models.ItemListStore) {
	sort.SliceStable(stores, func(i, j int) bool {
		if c := strings.Compare(stores[i].Name, stores[j].Name); c != 0 {
			return c < 0
		}
		return stores[i].UpdatedAt.After(stores[j].UpdatedAt)
	})
}

func SortListSections(sections []models.ItemListSection) {
	sort.SliceStable(sections, func(i, j int) bool {
		return before(sections[i].Ord, sections[j].Ord, sections[i].UpdatedAt, sections[j].UpdatedAt)
	})
}
