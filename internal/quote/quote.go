// Package quote derives a two-sided quote from a kline price range.
package quote

import (
	"swapper/internal/adapter"
	"swapper/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

var _hundred = decimal.NewFromInt(100)

// Spread returns (high - low) / low * 100.
func Spread(low, high decimal.Decimal) (decimal.Decimal, error) {
	if low.IsNegative() || high.IsNegative() {
		return decimal.Zero, errors.Wrap(exception.ErrInvalidInput, "prices cannot be negative").
			With("low", low.String()).With("high", high.String())
	}

	if low.IsZero() {
		return decimal.Zero, errors.Wrap(exception.ErrInvalidInput, "low price cannot be zero")
	}

	return high.Sub(low).Div(low).Mul(_hundred), nil
}

// BidPrice returns low * (1 - spread / 100).
func BidPrice(low, spread decimal.Decimal) (decimal.Decimal, error) {
	if low.IsNegative() || spread.IsNegative() {
		return decimal.Zero, errors.Wrap(exception.ErrInvalidInput, "prices and spread cannot be negative").
			With("low", low.String()).With("spread", spread.String())
	}

	return low.Mul(decimal.NewFromInt(1).Sub(spread.Div(_hundred))), nil
}

// AskPrice returns high * (1 + spread / 100).
func AskPrice(high, spread decimal.Decimal) (decimal.Decimal, error) {
	if high.IsNegative() || spread.IsNegative() {
		return decimal.Zero, errors.Wrap(exception.ErrInvalidInput, "prices and spread cannot be negative").
			With("high", high.String()).With("spread", spread.String())
	}

	return high.Mul(decimal.NewFromInt(1).Add(spread.Div(_hundred))), nil
}

// FromTick computes spread, bid and ask for one tick.
func FromTick(tick adapter.Tick) (adapter.Quote, error) {
	spread, err := Spread(tick.Low, tick.High)
	if err != nil {
		return adapter.Quote{}, errors.Wrap(err, "calculate spread")
	}

	bid, err := BidPrice(tick.Low, spread)
	if err != nil {
		return adapter.Quote{}, errors.Wrap(err, "calculate bid price")
	}

	ask, err := AskPrice(tick.High, spread)
	if err != nil {
		return adapter.Quote{}, errors.Wrap(err, "calculate ask price")
	}

	return adapter.Quote{
		Spread:   spread,
		BidPrice: bid,
		AskPrice: ask,
	}, nil
}
