package engine_test

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-venue/src/engine"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// at returns baseTime plus n microseconds.
func at(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Microsecond)
}

func newOrder(id, instrument string, side engine.Side, action engine.Action, price string, volume int64, ts time.Time) *engine.Order {
	return engine.NewOrder(id, instrument, side, action, decimal.RequireFromString(price), volume, ts)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBook(instrument string) (*engine.OrderBook, *engine.Aggregator) {
	arena := engine.NewArena()
	aggregator := engine.NewAggregator(arena)
	return engine.NewOrderBook(instrument, arena, aggregator), aggregator
}

func mustProcess(t *testing.T, book *engine.OrderBook, order *engine.Order) *engine.ProcessResult {
	t.Helper()
	result, err := book.Process(order)
	if err != nil {
		t.Fatalf("Process(%s %s) returned error: %v", order.Action, order.TradeID, err)
	}
	return result
}

func levelMap(levels []engine.PriceLevel) map[string]int64 {
	m := make(map[string]int64, len(levels))
	for _, lvl := range levels {
		m[lvl.Price.String()] = lvl.Volume
	}
	return m
}

// checkBookInvariants verifies, for both sides, that level volumes equal the
// sum of resting volumes at that price, that no resting order is empty, and
// that resting orders are in price-time priority.
func checkBookInvariants(t *testing.T, book *engine.OrderBook) {
	t.Helper()

	for _, side := range []engine.Side{engine.SideBid, engine.SideAsk} {
		orders := book.Orders(side)
		sums := make(map[string]int64)

		for i, o := range orders {
			if o.RemainingVolume() <= 0 {
				t.Fatalf("%s side: order %s rests with volume %d", side.Label(), o.TradeID, o.RemainingVolume())
			}
			sums[o.Price.String()] += o.RemainingVolume()

			if i == 0 {
				continue
			}
			prev := orders[i-1]
			c := prev.Price.Cmp(o.Price)
			if side == engine.SideBid && c < 0 {
				t.Fatalf("bids out of price order: %s before %s", prev.Price, o.Price)
			}
			if side == engine.SideAsk && c > 0 {
				t.Fatalf("asks out of price order: %s before %s", prev.Price, o.Price)
			}
			if c == 0 && o.TradeTime.Before(prev.TradeTime) {
				t.Fatalf("%s side: time priority broken at price %s", side.Label(), o.Price)
			}
		}

		levels := levelMap(book.Levels(side))
		if len(levels) != len(sums) {
			t.Fatalf("%s side: %d levels, %d distinct resting prices", side.Label(), len(levels), len(sums))
		}
		for price, sum := range sums {
			if levels[price] != sum {
				t.Fatalf("%s side: level %s has %d, resting orders sum to %d", side.Label(), price, levels[price], sum)
			}
		}
	}
}
