package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Venue routes orders to one book per instrument. Books are created the
// first time an instrument is seen and share one arena and one aggregator.
type Venue struct {
	books      map[string]*OrderBook
	arena      *Arena
	aggregator *Aggregator
	mu         sync.RWMutex
}

func NewVenue() *Venue {
	arena := NewArena()
	return &Venue{
		books:      make(map[string]*OrderBook),
		arena:      arena,
		aggregator: NewAggregator(arena),
	}
}

func (v *Venue) Aggregator() *Aggregator {
	return v.aggregator
}

func (v *Venue) Book(instrument string) (*OrderBook, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ob, ok := v.books[instrument]
	return ob, ok
}

func (v *Venue) GetOrCreateBook(instrument string) *OrderBook {
	v.mu.RLock()
	if ob, exists := v.books[instrument]; exists {
		v.mu.RUnlock()
		return ob
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// edge case: double-check after acquiring write lock
	if ob, exists := v.books[instrument]; exists {
		return ob
	}

	ob := NewOrderBook(instrument, v.arena, v.aggregator)
	v.books[instrument] = ob
	return ob
}

// Instruments returns the known instrument codes in sorted order.
func (v *Venue) Instruments() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	instruments := make([]string, 0, len(v.books))
	for instrument := range v.books {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)
	return instruments
}

// Submit routes one order to its instrument's book. Only a New order creates
// a book; cancel and amend for an unseen instrument fail without touching
// the venue.
func (v *Venue) Submit(order *Order) (*ProcessResult, error) {
	result, err := v.process(order)
	if err != nil {
		log.Debug().
			Err(err).
			Str("trade_id", order.TradeID).
			Str("instrument", order.Instrument).
			Str("action", string(order.Action)).
			Msg("Order rejected")
		return nil, err
	}

	log.Debug().
		Str("trade_id", order.TradeID).
		Str("instrument", order.Instrument).
		Str("side", string(order.Side)).
		Str("action", string(order.Action)).
		Str("status", string(result.Status)).
		Int64("filled", result.FilledVolume).
		Int64("remaining", result.RemainingVolume).
		Int("fills", len(result.Fills)).
		Msg("Order processed")

	return result, nil
}

func (v *Venue) process(order *Order) (*ProcessResult, error) {
	if order.Action == ActionNew {
		return v.GetOrCreateBook(order.Instrument).Process(order)
	}

	ob, ok := v.Book(order.Instrument)
	if !ok {
		return nil, &UnknownOrderError{
			TradeID:    order.TradeID,
			Instrument: order.Instrument,
			Side:       order.Side,
		}
	}
	return ob.Process(order)
}

// SubmitBatch submits orders one at a time in the given order. A failed
// submission does not stop the batch: its slot in the results is nil and its
// error is joined into the returned error.
func (v *Venue) SubmitBatch(orders []*Order) ([]*ProcessResult, error) {
	results := make([]*ProcessResult, len(orders))
	var errs []error

	for i, order := range orders {
		result, err := v.Submit(order)
		if err != nil {
			errs = append(errs, fmt.Errorf("order %d (%s): %w", i, order.TradeID, err))
			continue
		}
		results[i] = result
	}

	return results, errors.Join(errs...)
}

// AggregateByInstrument reads every book's own level aggregation for the
// requested side. It costs instruments x levels rather than a scan of all
// resting orders.
func (v *Venue) AggregateByInstrument(side Side) []AggregateRow {
	rows := make([]AggregateRow, 0)
	for _, instrument := range v.Instruments() {
		ob, ok := v.Book(instrument)
		if !ok {
			continue
		}
		for _, lvl := range ob.Levels(side) {
			rows = append(rows, AggregateRow{
				Group:  instrument,
				Price:  lvl.Price,
				Volume: lvl.Volume,
			})
		}
	}
	return rows
}

// AggregateBy reports volume per (attribute, price). BBGCode takes the
// per-instrument path; other attributes scan the aggregator.
func (v *Venue) AggregateBy(attr Attribute, side Side) []AggregateRow {
	if attr == AttributeInstrument {
		return v.AggregateByInstrument(side)
	}
	return v.aggregator.AggregateBy(attr, side)
}

// Depth returns up to depth levels per side of one instrument, best price
// first. Unknown instruments have empty sides.
func (v *Venue) Depth(instrument string, depth int) (bids []PriceLevel, asks []PriceLevel) {
	ob, ok := v.Book(instrument)
	if !ok {
		return make([]PriceLevel, 0), make([]PriceLevel, 0)
	}
	return ob.Depth(depth)
}

func (v *Venue) RestingCount() int {
	return v.arena.Len()
}
