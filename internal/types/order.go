package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/tradekit-lab/tradekit/pkg/errors"
)

// Direction is the side of an order or position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign returns +1 for long, -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}

	return 1
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}

	return DirectionLong
}

// OrderKind selects how an order is priced.
type OrderKind string

const (
	// OrderKindMarket fills at the current candle's open, adjusted by
	// half the configured spread against the trader.
	OrderKindMarket OrderKind = "MARKET"
	// OrderKindLimit rests until the market trades through its trigger
	// price, then fills at that price.
	OrderKindLimit OrderKind = "LIMIT"
	// OrderKindStop rests until the market trades through its trigger
	// price, then fills at that price.
	OrderKindStop OrderKind = "STOP"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

const (
	OrderReasonStrategy           string = "strategy"
	OrderReasonStopLoss           string = "stop_loss"
	OrderReasonTakeProfit         string = "take_profit"
	OrderReasonEndOfData          string = "end_of_data"
	OrderReasonPrecisionViolation string = "precision_violation"
	OrderReasonInsufficientMargin string = "insufficient_margin"
	OrderReasonSizeTooSmall       string = "size_too_small"
	OrderReasonInvalidOrder       string = "invalid_order"
)

// Reason records why an order was created, rejected or cancelled.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// Order is a request for execution against the matching engine.
// TriggerPrice carries the limit or stop price for resting orders and is
// ignored for market orders. StopLoss and TakeProfit become protective
// levels on the resulting position.
type Order struct {
	ID           string                   `yaml:"id" json:"id" validate:"required"`
	Symbol       string                   `yaml:"symbol" json:"symbol" validate:"required"`
	Direction    Direction                `yaml:"direction" json:"direction" validate:"required,oneof=LONG SHORT"`
	Kind         OrderKind                `yaml:"kind" json:"kind" validate:"required,oneof=MARKET LIMIT STOP"`
	Size         float64                  `yaml:"size" json:"size" validate:"required,gt=0"`
	TriggerPrice optional.Option[float64] `yaml:"trigger_price,omitempty" json:"trigger_price,omitempty"`
	StopLoss     optional.Option[float64] `yaml:"stop_loss,omitempty" json:"stop_loss,omitempty"`
	TakeProfit   optional.Option[float64] `yaml:"take_profit,omitempty" json:"take_profit,omitempty"`
	Status       OrderStatus              `yaml:"status" json:"status"`
	Reason       Reason                   `yaml:"reason" json:"reason"`
	CreatedAt    time.Time                `yaml:"created_at" json:"created_at"`
}

var orderValidator = validator.New()

// Validate checks structural validity of the order. Ordering of the
// protective levels against an entry price is the precision policy's
// job, not this one.
func (o *Order) Validate() error {
	if err := orderValidator.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "order validation failed", err)
	}

	if (o.Kind == OrderKindLimit || o.Kind == OrderKindStop) && o.TriggerPrice.IsNone() {
		return errors.Newf(errors.ErrCodeInvalidOrder, "%s order requires a trigger price", o.Kind)
	}

	if o.TriggerPrice.IsSome() && o.TriggerPrice.Unwrap() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "trigger price must be positive")
	}

	return nil
}
