package adapter

import (
	"swapper/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// Tick is the price range of the current kline interval.
type Tick struct {
	Low       decimal.Decimal
	High      decimal.Decimal
	EventTime int64
}

// Quote is the two-sided price derived from one tick.
type Quote struct {
	Spread   decimal.Decimal
	BidPrice decimal.Decimal
	AskPrice decimal.Decimal
}

// PriceOf returns the desired resting price for the side.
func (q Quote) PriceOf(side enum.OrderSide) decimal.Decimal {
	switch side {
	case enum.OrderSideBid:
		return q.BidPrice
	case enum.OrderSideAsk:
		return q.AskPrice
	default:
		return decimal.Zero
	}
}
