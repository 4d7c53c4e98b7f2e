// Package index keeps one ranked set per attribute-value cell in sync
// with target accept predicates. Cells are per single attribute value;
// conjunctions across attributes are resolved by sorted-set
// intersection at query time, never by materializing cross-products.
package index

import (
	"context"
	"sort"

	"ad-routing-service/internal/storage"
)

// Cell is one concrete attribute-value pair, e.g. geoState=ca.
type Cell struct {
	Attr  string
	Value string
}

// Key construction is centralized here so the cell encoding can change
// without touching index maintenance or selection.

// RankKey names the sorted set ranking the cell's targets by value.
func (c Cell) RankKey() string {
	return "target:cell:value:" + c.Attr + ":" + c.Value
}

// MemberKey names the plain set of target ids in the cell.
func (c Cell) MemberKey() string {
	return "target:cell:id:" + c.Attr + ":" + c.Value
}

// CellsFor flattens an accept predicate (attribute -> allowed values)
// into its cells: the union of each attribute's individual values.
func CellsFor(accept map[string][]string) []Cell {
	var cells []Cell
	for attr, values := range accept {
		for _, v := range values {
			cells = append(cells, Cell{Attr: attr, Value: v})
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Attr != cells[j].Attr {
			return cells[i].Attr < cells[j].Attr
		}
		return cells[i].Value < cells[j].Value
	})
	return cells
}

// Diff returns the cells present only in the new predicate and the
// cells present only in the old one.
func Diff(oldAccept, newAccept map[string][]string) (added, removed []Cell) {
	oldCells := CellsFor(oldAccept)
	newCells := CellsFor(newAccept)

	oldSet := make(map[Cell]struct{}, len(oldCells))
	for _, c := range oldCells {
		oldSet[c] = struct{}{}
	}
	newSet := make(map[Cell]struct{}, len(newCells))
	for _, c := range newCells {
		newSet[c] = struct{}{}
	}

	for _, c := range newCells {
		if _, ok := oldSet[c]; !ok {
			added = append(added, c)
		}
	}
	for _, c := range oldCells {
		if _, ok := newSet[c]; !ok {
			removed = append(removed, c)
		}
	}
	return added, removed
}

// Apply queues the cell membership changes for one target onto a batch.
// Re-adding an existing member refreshes its score, so callers pass
// every current cell as added when the target's value changed.
func Apply(p storage.Pipeline, id string, value float64, added, removed []Cell) {
	for _, c := range removed {
		p.ZRem(c.RankKey(), id)
		p.SRem(c.MemberKey(), id)
	}
	for _, c := range added {
		p.ZAdd(c.RankKey(), value, id)
		p.SAdd(c.MemberKey(), id)
	}
}

// CellMembers reads back the ids registered in a cell.
func CellMembers(ctx context.Context, st storage.Store, c Cell) ([]string, error) {
	return st.SMembers(ctx, c.MemberKey())
}

// CellRanking reads back a cell's ids in descending value order.
func CellRanking(ctx context.Context, st storage.Store, c Cell) ([]string, error) {
	return st.ZRevRange(ctx, c.RankKey(), 0, -1)
}

// CellScore returns the ranking score a cell holds for one target id.
func CellScore(ctx context.Context, st storage.Store, c Cell, id string) (float64, error) {
	return st.ZScore(ctx, c.RankKey(), id)
}
