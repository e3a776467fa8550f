// Package domain holds the canonical market-data snapshot types shared by
// the CEX and DEX connectors. Connectors own these; every other component
// only ever holds read copies passed through the event bus.
package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MaxBookLevels is the number of price levels retained per side.
const MaxBookLevels = 20

// PriceLevel is one price/size pair in an order book.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BookSnapshot is the canonical L2 order book for one CEX symbol.
type BookSnapshot struct {
	Venue     string
	Symbol    string
	Timestamp time.Time
	Bids      []PriceLevel // descending by price
	Asks      []PriceLevel // ascending by price
	Sequence  *int64
}

// BestBid returns the highest bid level, or the zero value and false if the
// book has no bids.
func (b BookSnapshot) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask level, or the zero value and false if the
// book has no asks.
func (b BookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// Valid reports whether the snapshot satisfies the book invariants: sides
// sorted correctly, no duplicate prices, at most MaxBookLevels per side,
// and best_bid < best_ask when both sides are non-empty.
func (b BookSnapshot) Valid() bool {
	if len(b.Bids) > MaxBookLevels || len(b.Asks) > MaxBookLevels {
		return false
	}
	if !sort.SliceIsSorted(b.Bids, func(i, j int) bool { return b.Bids[i].Price.GreaterThan(b.Bids[j].Price) }) {
		return false
	}
	if !sort.SliceIsSorted(b.Asks, func(i, j int) bool { return b.Asks[i].Price.LessThan(b.Asks[j].Price) }) {
		return false
	}
	if hasDuplicatePrices(b.Bids) || hasDuplicatePrices(b.Asks) {
		return false
	}
	bestBid, hasBid := b.BestBid()
	bestAsk, hasAsk := b.BestAsk()
	if hasBid && hasAsk && !bestBid.Price.LessThan(bestAsk.Price) {
		return false
	}
	return true
}

func hasDuplicatePrices(levels []PriceLevel) bool {
	seen := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		key := l.Price.String()
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}

// ApplyMutations merges (side, price, new_size) mutations into current,
// removing zero-size levels, overwriting non-zero ones (last write within
// the batch wins on duplicate prices), re-sorting and truncating to
// MaxBookLevels. isBid selects descending (bids) vs ascending (asks) sort.
func ApplyMutations(current []PriceLevel, mutations []PriceLevel, isBid bool) []PriceLevel {
	byPrice := make(map[string]PriceLevel, len(current))
	order := make([]string, 0, len(current))
	for _, l := range current {
		key := l.Price.String()
		if _, exists := byPrice[key]; !exists {
			order = append(order, key)
		}
		byPrice[key] = l
	}

	for _, m := range mutations {
		key := m.Price.String()
		if m.Size.IsZero() {
			delete(byPrice, key)
			continue
		}
		if _, exists := byPrice[key]; !exists {
			order = append(order, key)
		}
		byPrice[key] = m
	}

	result := make([]PriceLevel, 0, len(byPrice))
	for _, key := range order {
		if l, ok := byPrice[key]; ok {
			result = append(result, l)
		}
	}

	if isBid {
		sort.Slice(result, func(i, j int) bool { return result[i].Price.GreaterThan(result[j].Price) })
	} else {
		sort.Slice(result, func(i, j int) bool { return result[i].Price.LessThan(result[j].Price) })
	}

	if len(result) > MaxBookLevels {
		result = result[:MaxBookLevels]
	}
	return result
}
