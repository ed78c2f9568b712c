package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// AggregateRow is one line of a volume aggregation report.
type AggregateRow struct {
	Group  string
	Price  decimal.Decimal
	Volume int64
}

// Aggregator indexes the resting orders of every instrument so they can be
// grouped by any order attribute. It reads order state through the arena and
// never owns it.
type Aggregator struct {
	arena *Arena
	bids  map[Handle]struct{}
	asks  map[Handle]struct{}
	mu    sync.RWMutex
}

func NewAggregator(arena *Arena) *Aggregator {
	return &Aggregator{
		arena: arena,
		bids:  make(map[Handle]struct{}),
		asks:  make(map[Handle]struct{}),
	}
}

func (a *Aggregator) index(side Side) map[Handle]struct{} {
	if side == SideBid {
		return a.bids
	}
	return a.asks
}

func (a *Aggregator) Register(h Handle, side Side) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.index(side)[h] = struct{}{}
}

func (a *Aggregator) Remove(h Handle, side Side) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.index(side), h)
}

func (a *Aggregator) Len(side Side) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.index(side))
}

func (a *Aggregator) snapshot(side Side) []Handle {
	a.mu.RLock()
	defer a.mu.RUnlock()

	index := a.index(side)
	handles := make([]Handle, 0, len(index))
	for h := range index {
		handles = append(handles, h)
	}
	return handles
}

type groupKey struct {
	group string
	price string
}

// AggregateBy groups the resting orders of one side by (attribute, price) and
// sums their live remaining volume. Rows are sorted by group then price and
// groups that sum to zero are left out. The lock is only held while copying
// the handle set.
func (a *Aggregator) AggregateBy(attr Attribute, side Side) []AggregateRow {
	groups := make(map[groupKey]*AggregateRow)
	for _, h := range a.snapshot(side) {
		order, ok := a.arena.Get(h)
		if !ok {
			continue
		}
		key := groupKey{group: order.Attribute(attr), price: order.Price.String()}
		row, ok := groups[key]
		if !ok {
			row = &AggregateRow{Group: key.group, Price: order.Price}
			groups[key] = row
		}
		row.Volume += order.RemainingVolume()
	}

	rows := make([]AggregateRow, 0, len(groups))
	for _, row := range groups {
		if row.Volume == 0 {
			continue
		}
		rows = append(rows, *row)
	}
	SortRows(rows)
	return rows
}

// SortRows orders report rows by group, then price ascending.
func SortRows(rows []AggregateRow) {
	sort.Slice(rows, func(i, j int) bool {
		if c := strings.Compare(rows[i].Group, rows[j].Group); c != 0 {
			return c < 0
		}
		return rows[i].Price.LessThan(rows[j].Price)
	})
}
