// Package risk decides whether a resting order is about to be filled by the market.
package risk

import (
	"swapper/internal/adapter"
	"swapper/internal/adapter/enum"
	"swapper/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// IsAtRisk reports whether the newly computed quote has reached the resting order.
//
// A bid is at risk when order.Price <= bidPrice, an ask when order.Price >= askPrice.
// Orders of any other side are never at risk.
func IsAtRisk(bidPrice, askPrice decimal.Decimal, order adapter.Order) (bool, error) {
	if bidPrice.IsNegative() || askPrice.IsNegative() {
		return false, errors.Wrap(exception.ErrInvalidInput, "prices cannot be negative").
			With("bid", bidPrice.String()).With("ask", askPrice.String())
	}

	switch order.Side {
	case enum.OrderSideBid:
		return order.Price.LessThanOrEqual(bidPrice), nil
	case enum.OrderSideAsk:
		return order.Price.GreaterThanOrEqual(askPrice), nil
	default:
		return false, nil
	}
}
