package engine

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOrder     = errors.New("unknown order")
	ErrUnknownAttribute = errors.New("unknown aggregation attribute")
)

type UnknownOrderError struct {
	TradeID    string
	Instrument string
	Side       Side
}

func (e *UnknownOrderError) Error() string {
	return fmt.Sprintf("unknown order %q on %s side of %s", e.TradeID, e.Side.Label(), e.Instrument)
}

func (e *UnknownOrderError) Unwrap() error {
	return ErrUnknownOrder
}

type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown aggregation attribute %q", e.Name)
}

func (e *UnknownAttributeError) Unwrap() error {
	return ErrUnknownAttribute
}
