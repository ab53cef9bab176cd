package binance

import (
	"swapper/internal/adapter"
	"swapper/internal/adapter/enum"

	"github.com/shopspring/decimal"
)

// ResponseError is the body Binance returns with a non-2xx status.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// ResponseOrder covers the order bodies of allOrders, order placement and order cancel.
type ResponseOrder struct {
	Symbol        string          `json:"symbol"`
	OrderID       int64           `json:"orderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Price         decimal.Decimal `json:"price"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	Status        string          `json:"status"`
	TimeInForce   string          `json:"timeInForce"`
	Type          string          `json:"type"`
	Side          string          `json:"side"`
	Time          int64           `json:"time"`
	UpdateTime    int64           `json:"updateTime"`
	TransactTime  int64           `json:"transactTime"`
}

type ResponseServerTime struct {
	ServerTime int64 `json:"serverTime"`
}

func (r ResponseOrder) Order() adapter.Order {
	created, updated := r.Time, r.UpdateTime
	if created == 0 {
		created = r.TransactTime
	}
	if updated == 0 {
		updated = r.TransactTime
	}

	return adapter.Order{
		ID:               r.OrderID,
		ClientOrderID:    r.ClientOrderID,
		Symbol:           r.Symbol,
		Side:             parseSide(r.Side),
		Type:             parseType(r.Type),
		TimeInForce:      parseTimeInForce(r.TimeInForce),
		Status:           enum.ParseOrderStatus(r.Status),
		Price:            r.Price,
		Quantity:         r.OrigQty,
		ExecutedQuantity: r.ExecutedQty,
		CreatedTime:      created,
		UpdatedTime:      updated,
	}
}

func binanceSide(side enum.OrderSide) string {
	switch side {
	case enum.OrderSideBid:
		return "BUY"
	case enum.OrderSideAsk:
		return "SELL"
	default:
		return ""
	}
}

func parseSide(s string) enum.OrderSide {
	switch s {
	case "BUY":
		return enum.OrderSideBid
	case "SELL":
		return enum.OrderSideAsk
	default:
		var unknown enum.OrderSide
		return unknown
	}
}

func parseType(s string) enum.OrderType {
	switch s {
	case "LIMIT":
		return enum.OrderTypeLimit
	case "MARKET":
		return enum.OrderTypeMarket
	default:
		var unknown enum.OrderType
		return unknown
	}
}

func parseTimeInForce(s string) enum.OrderTimeInForce {
	switch s {
	case "GTC":
		return enum.OrderTimeInForceGTC
	case "IOC":
		return enum.OrderTimeInForceIOC
	case "FOK":
		return enum.OrderTimeInForceFOK
	default:
		var unknown enum.OrderTimeInForce
		return unknown
	}
}
