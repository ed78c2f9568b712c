package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceLevel is the aggregated resting volume at one price on one side.
type PriceLevel struct {
	Price  decimal.Decimal
	Volume int64
}

type bookEntry struct {
	key    priorityKey
	handle Handle
}

// handle breaks ties between distinct orders sharing trade ID, price and time
func entryLess(a, b bookEntry) bool {
	if a.key.before(b.key) {
		return true
	}
	if b.key.before(a.key) {
		return false
	}
	return a.handle < b.handle
}

type bookSide struct {
	side   Side
	orders *btree.BTreeG[bookEntry]
	levels *btree.BTreeG[*PriceLevel] // best price first
	ids    map[string][]Handle
}

func newBookSide(side Side) *bookSide {
	levelLess := func(a, b *PriceLevel) bool {
		return a.Price.LessThan(b.Price)
	}
	if side == SideBid {
		levelLess = func(a, b *PriceLevel) bool {
			return a.Price.GreaterThan(b.Price)
		}
	}
	return &bookSide{
		side:   side,
		orders: btree.NewG(32, entryLess),
		levels: btree.NewG(32, levelLess),
		ids:    make(map[string][]Handle),
	}
}

func (s *bookSide) addLevel(price decimal.Decimal, volume int64) {
	if lvl, ok := s.levels.Get(&PriceLevel{Price: price}); ok {
		lvl.Volume += volume
		return
	}
	s.levels.ReplaceOrInsert(&PriceLevel{Price: price, Volume: volume})
}

func (s *bookSide) reduceLevel(price decimal.Decimal, volume int64) {
	lvl, ok := s.levels.Get(&PriceLevel{Price: price})
	if !ok {
		return
	}
	lvl.Volume -= volume
	// edge case: drop the level once nothing rests at it
	if lvl.Volume <= 0 {
		s.levels.Delete(lvl)
	}
}

func (s *bookSide) forgetID(tradeID string, h Handle) {
	handles := s.ids[tradeID]
	for i, other := range handles {
		if other == h {
			handles = append(handles[:i], handles[i+1:]...)
			break
		}
	}
	if len(handles) == 0 {
		delete(s.ids, tradeID)
		return
	}
	s.ids[tradeID] = handles
}

// OrderBook is the book of one instrument. Process is its only mutator and
// holds the book lock for the whole step, so matching and the level
// aggregation change together.
type OrderBook struct {
	Instrument string

	bids       *bookSide
	asks       *bookSide
	arena      *Arena
	aggregator *Aggregator
	mu         sync.Mutex
}

func NewOrderBook(instrument string, arena *Arena, aggregator *Aggregator) *OrderBook {
	return &OrderBook{
		Instrument: instrument,
		bids:       newBookSide(SideBid),
		asks:       newBookSide(SideAsk),
		arena:      arena,
		aggregator: aggregator,
	}
}

type ProcessResult struct {
	Status          OrderStatus
	FilledVolume    int64
	RemainingVolume int64
	CancelledVolume int64
	Fills           []*Fill
}

func (ob *OrderBook) sides(side Side) (own, opposite *bookSide) {
	if side == SideBid {
		return ob.bids, ob.asks
	}
	return ob.asks, ob.bids
}

func (ob *OrderBook) side(side Side) *bookSide {
	own, _ := ob.sides(side)
	return own
}

// Process applies one order message to the book.
func (ob *OrderBook) Process(order *Order) (*ProcessResult, error) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	switch order.Action {
	case ActionNew:
		return ob.match(order), nil
	case ActionCancel:
		cancelled, err := ob.cancel(order)
		if err != nil {
			return nil, err
		}
		return &ProcessResult{
			Status:          StatusCancelled,
			CancelledVolume: cancelled,
			Fills:           make([]*Fill, 0),
		}, nil
	case ActionAmend:
		// cancel-replace: the amended order queues behind existing liquidity
		cancelled, err := ob.cancel(order)
		if err != nil {
			return nil, err
		}
		result := ob.match(order)
		result.CancelledVolume = cancelled
		return result, nil
	}
	return nil, fmt.Errorf("unsupported action %q for order %s", order.Action, order.TradeID)
}

func (ob *OrderBook) match(order *Order) *ProcessResult {
	own, opposite := ob.sides(order.Side)
	result := &ProcessResult{
		Fills: make([]*Fill, 0),
	}

	for order.RemainingVolume() > 0 {
		best, ok := opposite.orders.Min()
		if !ok {
			break
		}
		// handles in a book are only released by evict, under the book lock
		resting, _ := ob.arena.Get(best.handle)
		if !order.Crosses(resting) {
			break
		}

		quantity := min(order.RemainingVolume(), resting.RemainingVolume())
		order.Fill(quantity)
		resting.Fill(quantity)

		// the opposite level is keyed by the resting order's own price. The
		// incoming order has not rested yet, so its own side has nothing to
		// give back.
		opposite.reduceLevel(resting.Price, quantity)

		result.FilledVolume += quantity
		result.Fills = append(result.Fills, &Fill{
			FillID:        uuid.New().String(),
			Instrument:    ob.Instrument,
			AggressorID:   order.TradeID,
			RestingID:     resting.TradeID,
			AggressorSide: order.Side,
			Price:         resting.Price,
			Volume:        quantity,
			Timestamp:     time.Now().UnixMilli(),
		})

		if resting.IsFilled() {
			ob.evict(opposite, best)
		}
	}

	result.RemainingVolume = order.RemainingVolume()

	if result.RemainingVolume > 0 {
		ob.rest(own, order)
		if result.FilledVolume == 0 {
			result.Status = StatusAccepted
		} else {
			result.Status = StatusPartialFill
		}
	} else {
		result.Status = StatusFilled
	}

	return result
}

func (ob *OrderBook) rest(s *bookSide, order *Order) {
	h := ob.arena.Store(order)
	s.orders.ReplaceOrInsert(bookEntry{key: order.key(), handle: h})
	s.addLevel(order.Price, order.RemainingVolume())
	s.ids[order.TradeID] = append(s.ids[order.TradeID], h)
	ob.aggregator.Register(h, s.side)
}

func (ob *OrderBook) evict(s *bookSide, entry bookEntry) {
	s.orders.Delete(entry)
	s.forgetID(entry.key.id, entry.handle)
	ob.aggregator.Remove(entry.handle, s.side)
	ob.arena.Release(entry.handle)
}

// cancel removes every resting order carrying the message's trade ID on the
// message's side and returns the volume taken off the book.
func (ob *OrderBook) cancel(order *Order) (int64, error) {
	s := ob.side(order.Side)

	handles := s.ids[order.TradeID]
	if len(handles) == 0 {
		return 0, &UnknownOrderError{
			TradeID:    order.TradeID,
			Instrument: ob.Instrument,
			Side:       order.Side,
		}
	}

	var cancelled int64
	for _, h := range append([]Handle(nil), handles...) {
		resting, _ := ob.arena.Get(h)
		remaining := resting.RemainingVolume()
		s.reduceLevel(resting.Price, remaining)
		ob.evict(s, bookEntry{key: resting.key(), handle: h})
		cancelled += remaining
	}
	return cancelled, nil
}

// Levels returns the aggregated volume per price for one side, lowest price
// first.
func (ob *OrderBook) Levels(side Side) []PriceLevel {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	s := ob.side(side)
	levels := make([]PriceLevel, 0, s.levels.Len())
	iterate := s.levels.Ascend
	if side == SideBid {
		iterate = s.levels.Descend
	}
	iterate(func(lvl *PriceLevel) bool {
		levels = append(levels, *lvl)
		return true
	})
	return levels
}

// Depth returns up to depth levels per side, best price first.
func (ob *OrderBook) Depth(depth int) (bids []PriceLevel, asks []PriceLevel) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	// edge case: no levels requested
	if depth <= 0 {
		return make([]PriceLevel, 0), make([]PriceLevel, 0)
	}

	collect := func(s *bookSide) []PriceLevel {
		levels := make([]PriceLevel, 0, min(depth, s.levels.Len()))
		s.levels.Ascend(func(lvl *PriceLevel) bool {
			if len(levels) >= depth {
				return false
			}
			levels = append(levels, *lvl)
			return true
		})
		return levels
	}
	return collect(ob.bids), collect(ob.asks)
}

// Orders returns the resting orders of one side in priority order.
func (ob *OrderBook) Orders(side Side) []*Order {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	s := ob.side(side)
	orders := make([]*Order, 0, s.orders.Len())
	s.orders.Ascend(func(entry bookEntry) bool {
		if order, ok := ob.arena.Get(entry.handle); ok {
			orders = append(orders, order)
		}
		return true
	})
	return orders
}

func (ob *OrderBook) GetOrder(side Side, tradeID string) (*Order, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	handles := ob.side(side).ids[tradeID]
	if len(handles) == 0 {
		return nil, false
	}
	return ob.arena.Get(handles[0])
}

func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	return ob.best(ob.bids)
}

func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	return ob.best(ob.asks)
}

func (ob *OrderBook) best(s *bookSide) (PriceLevel, bool) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	lvl, ok := s.levels.Min()
	if !ok {
		return PriceLevel{}, false
	}
	return *lvl, true
}

func (ob *OrderBook) RestingCount() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	return ob.bids.orders.Len() + ob.asks.orders.Len()
}
