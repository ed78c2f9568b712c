package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trading-venue/src/engine"
)

// TradeTimeLayout is the TradeTimeUTC format, yyyy-MM-ddTHH:mm:ss.SSSSSS.
const TradeTimeLayout = "2006-01-02T15:04:05.000000"

// MessageHeader is the column order of an order message.
const MessageHeader = "TradeID,BBGCode,Currency,Side,Price,Volume,Portfolio,Action,Account,Strategy,User,TradeTimeUTC,ValueDate"

const fieldCount = 13

const (
	fieldTradeID = iota
	fieldInstrument
	fieldCurrency
	fieldSide
	fieldPrice
	fieldVolume
	fieldPortfolio
	fieldAction
	fieldAccount
	fieldStrategy
	fieldUser
	fieldTradeTime
	fieldValueDate
)

var fieldNames = [fieldCount]string{
	"TradeID", "BBGCode", "Currency", "Side", "Price", "Volume", "Portfolio",
	"Action", "Account", "Strategy", "User", "TradeTimeUTC", "ValueDate",
}

var ErrMalformedMessage = errors.New("malformed order message")

type MalformedKind string

const (
	KindFieldCount MalformedKind = "FIELD_COUNT"
	KindMissing    MalformedKind = "MISSING"
	KindSide       MalformedKind = "SIDE"
	KindAction     MalformedKind = "ACTION"
	KindPrice      MalformedKind = "PRICE"
	KindVolume     MalformedKind = "VOLUME"
	KindTimestamp  MalformedKind = "TIMESTAMP"
)

// MalformedMessageError names the field that stopped a message from parsing.
type MalformedMessageError struct {
	Kind  MalformedKind
	Field string
	Value string
	Line  int // 1-based, 0 when parsed on its own
	Err   error
}

func (e *MalformedMessageError) Error() string {
	msg := fmt.Sprintf("malformed order message: %s %q", e.Field, e.Value)
	if e.Kind == KindFieldCount {
		msg = fmt.Sprintf("malformed order message: expected %d fields, got %s", fieldCount, e.Value)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedMessageError) Is(target error) bool {
	return target == ErrMalformedMessage
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

func malformed(kind MalformedKind, field int, value string, err error) *MalformedMessageError {
	return &MalformedMessageError{
		Kind:  kind,
		Field: fieldNames[field],
		Value: value,
		Err:   err,
	}
}

// ParseMessage turns one comma-separated order message into an Order.
func ParseMessage(line string) (*engine.Order, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	return ParseFields(fields)
}

func ParseFields(fields []string) (*engine.Order, error) {
	if len(fields) != fieldCount {
		return nil, &MalformedMessageError{
			Kind:  KindFieldCount,
			Field: "message",
			Value: strconv.Itoa(len(fields)),
		}
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	for _, required := range []int{fieldTradeID, fieldInstrument} {
		if fields[required] == "" {
			return nil, malformed(KindMissing, required, "", nil)
		}
	}

	side, ok := engine.ParseSide(fields[fieldSide])
	if !ok {
		return nil, malformed(KindSide, fieldSide, fields[fieldSide], nil)
	}

	action, ok := engine.ParseAction(fields[fieldAction])
	if !ok {
		return nil, malformed(KindAction, fieldAction, fields[fieldAction], nil)
	}

	price, err := decimal.NewFromString(fields[fieldPrice])
	if err != nil {
		return nil, malformed(KindPrice, fieldPrice, fields[fieldPrice], err)
	}
	if !price.IsPositive() {
		return nil, malformed(KindPrice, fieldPrice, fields[fieldPrice], errors.New("price must be positive"))
	}

	volume, err := strconv.ParseInt(fields[fieldVolume], 10, 64)
	if err != nil {
		return nil, malformed(KindVolume, fieldVolume, fields[fieldVolume], err)
	}
	if volume < 0 {
		return nil, malformed(KindVolume, fieldVolume, fields[fieldVolume], errors.New("volume must not be negative"))
	}

	tradeTime, err := time.ParseInLocation(TradeTimeLayout, fields[fieldTradeTime], time.UTC)
	if err != nil {
		return nil, malformed(KindTimestamp, fieldTradeTime, fields[fieldTradeTime], err)
	}

	order := engine.NewOrder(fields[fieldTradeID], fields[fieldInstrument], side, action, price, volume, tradeTime)
	order.Currency = fields[fieldCurrency]
	order.Portfolio = fields[fieldPortfolio]
	order.Account = fields[fieldAccount]
	order.Strategy = fields[fieldStrategy]
	order.User = fields[fieldUser]
	order.ValueDate = fields[fieldValueDate]

	return order, nil
}

// ReadMessages reads every message from r in file order. Malformed lines are
// skipped and reported through the joined error; the well-formed orders are
// still returned.
func ReadMessages(r io.Reader, hasHeader bool) ([]*engine.Order, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	orders := make([]*engine.Order, 0)
	var errs []error
	records := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return orders, fmt.Errorf("read order messages: %w", err)
		}
		records++
		if records == 1 && hasHeader {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		line, _ := reader.FieldPos(0)

		order, err := ParseFields(record)
		if err != nil {
			var mm *MalformedMessageError
			if errors.As(err, &mm) {
				mm.Line = line
			}
			errs = append(errs, err)
			continue
		}
		orders = append(orders, order)
	}

	return orders, errors.Join(errs...)
}

// FormatMessage renders an order back into the message layout.
func FormatMessage(o *engine.Order) string {
	return strings.Join([]string{
		o.TradeID,
		o.Instrument,
		o.Currency,
		string(o.Side),
		o.Price.String(),
		strconv.FormatInt(o.RemainingVolume(), 10),
		o.Portfolio,
		string(o.Action),
		o.Account,
		o.Strategy,
		o.User,
		o.TradeTime.Format(TradeTimeLayout),
		o.ValueDate,
	}, ",")
}
