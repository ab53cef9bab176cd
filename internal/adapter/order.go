package adapter

import (
	"swapper/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// Order is one exchange order as observed in a snapshot. Times are unix milliseconds.
type Order struct {
	ID               int64
	ClientOrderID    string
	Symbol           string
	Side             enum.OrderSide
	Type             enum.OrderType
	TimeInForce      enum.OrderTimeInForce
	Status           enum.OrderStatus
	Price            decimal.Decimal
	Quantity         decimal.Decimal
	ExecutedQuantity decimal.Decimal
	CreatedTime      int64
	UpdatedTime      int64
}

// IsActive reports whether the order is resting on the book.
func (o Order) IsActive() bool {
	return o.Status.IsActive()
}

// NewerThan orders snapshots by update time, then by exchange id.
func (o Order) NewerThan(other Order) bool {
	if o.UpdatedTime != other.UpdatedTime {
		return o.UpdatedTime > other.UpdatedTime
	}
	return o.ID > other.ID
}
