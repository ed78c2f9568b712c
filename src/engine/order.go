package engine

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBid Side = "B"
	SideAsk Side = "S"
)

func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// Label is the report prefix for the side, as in BidAggregationsPerUser.
func (s Side) Label() string {
	if s == SideBid {
		return "Bid"
	}
	return "Ask"
}

type Action string

const (
	ActionNew    Action = "NEW"
	ActionAmend  Action = "AMEND"
	ActionCancel Action = "CANCEL"
)

type OrderStatus string

const (
	StatusAccepted    OrderStatus = "ACCEPTED"
	StatusPartialFill OrderStatus = "PARTIAL_FILL"
	StatusFilled      OrderStatus = "FILLED"
	StatusCancelled   OrderStatus = "CANCELLED"
)

// Order is a validated order message. Every field except the remaining
// volume is fixed once the order is built.
type Order struct {
	TradeID    string
	Instrument string // BBGCode
	Currency   string
	Side       Side
	Price      decimal.Decimal
	Portfolio  string
	Action     Action
	Account    string
	Strategy   string
	User       string
	TradeTime  time.Time // UTC, microsecond precision
	ValueDate  string

	volume int64
}

func NewOrder(tradeID, instrument string, side Side, action Action, price decimal.Decimal, volume int64, tradeTime time.Time) *Order {
	return &Order{
		TradeID:    tradeID,
		Instrument: instrument,
		Side:       side,
		Action:     action,
		Price:      price,
		TradeTime:  tradeTime.UTC().Truncate(time.Microsecond),
		volume:     volume,
	}
}

func (o *Order) RemainingVolume() int64 {
	return atomic.LoadInt64(&o.volume)
}

func (o *Order) IsFilled() bool {
	return atomic.LoadInt64(&o.volume) <= 0
}

// Fill takes quantity off the remaining volume and returns what is left.
func (o *Order) Fill(quantity int64) int64 {
	return atomic.AddInt64(&o.volume, -quantity)
}

// Crosses reports whether o can trade against a resting order on the
// opposite side.
func (o *Order) Crosses(resting *Order) bool {
	if o.Side == SideBid {
		return o.Price.GreaterThanOrEqual(resting.Price)
	}
	return o.Price.LessThanOrEqual(resting.Price)
}

// Attribute returns exactly the requested grouping attribute.
func (o *Order) Attribute(attr Attribute) string {
	switch attr {
	case AttributePortfolio:
		return o.Portfolio
	case AttributeStrategy:
		return o.Strategy
	case AttributeUser:
		return o.User
	case AttributeInstrument:
		return o.Instrument
	}
	return ""
}

// RanksBefore reports whether o has priority over other on the same side
// of a book: better price, then earlier time, then the larger trade ID.
func (o *Order) RanksBefore(other *Order) bool {
	return o.key().before(other.key())
}

func (o *Order) key() priorityKey {
	return priorityKey{
		side:  o.Side,
		price: o.Price,
		time:  o.TradeTime,
		id:    o.TradeID,
	}
}

// priorityKey holds the fields of an order that decide its place in a book.
// They never change after the order is built, so books copy them.
type priorityKey struct {
	side  Side
	price decimal.Decimal
	time  time.Time
	id    string
}

func (k priorityKey) before(other priorityKey) bool {
	if c := k.price.Cmp(other.price); c != 0 {
		if k.side == SideBid {
			return c > 0
		}
		return c < 0
	}
	if !k.time.Equal(other.time) {
		return k.time.Before(other.time)
	}
	return strings.Compare(k.id, other.id) > 0
}

type Attribute string

const (
	AttributeInstrument Attribute = "BBGCode"
	AttributePortfolio  Attribute = "Portfolio"
	AttributeStrategy   Attribute = "Strategy"
	AttributeUser       Attribute = "User"
)

// ParseAttribute accepts the report names case-insensitively.
func ParseAttribute(name string) (Attribute, error) {
	for _, attr := range []Attribute{AttributeInstrument, AttributePortfolio, AttributeStrategy, AttributeUser} {
		if strings.EqualFold(name, string(attr)) {
			return attr, nil
		}
	}
	return "", &UnknownAttributeError{Name: name}
}

// ParseSide accepts B/S as well as BID/ASK, BUY/SELL.
func ParseSide(token string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "B", "BID", "BUY":
		return SideBid, true
	case "S", "ASK", "SELL":
		return SideAsk, true
	}
	return "", false
}

func ParseAction(token string) (Action, bool) {
	switch Action(strings.ToUpper(strings.TrimSpace(token))) {
	case ActionNew:
		return ActionNew, true
	case ActionAmend:
		return ActionAmend, true
	case ActionCancel:
		return ActionCancel, true
	}
	return "", false
}

type Fill struct {
	FillID        string
	Instrument    string
	AggressorID   string
	RestingID     string
	AggressorSide Side
	Price         decimal.Decimal // resting order's price
	Volume        int64
	Timestamp     int64 // unix milliseconds
}
