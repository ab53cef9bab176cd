package state

import (
	"sort"

	"swapper/internal/adapter"
	"swapper/internal/adapter/enum"
)

// MaxActiveOrders is the most NEW orders a healthy two-sided book can hold.
const MaxActiveOrders = 2

// Book is an immutable projection of the exchange orders of one snapshot.
type Book struct {
	orders map[int64]adapter.Order
	active []adapter.Order
}

// Rebuild replaces all held orders with the snapshot contents.
//
// When an id appears twice the entry with the later update wins.
func Rebuild(snapshot []adapter.Order) Book {
	orders := make(map[int64]adapter.Order, len(snapshot))
	for _, o := range snapshot {
		if existing, ok := orders[o.ID]; ok && !o.NewerThan(existing) {
			continue
		}
		orders[o.ID] = o
	}

	active := make([]adapter.Order, 0, MaxActiveOrders)
	for _, o := range orders {
		if o.IsActive() {
			active = append(active, o)
		}
	}

	// most recent first, so the first match per side is also the newest
	sort.Slice(active, func(i, j int) bool {
		return active[i].NewerThan(active[j])
	})

	return Book{
		orders: orders,
		active: active,
	}
}

// Len returns the number of orders in the snapshot.
func (b Book) Len() int {
	return len(b.orders)
}

// ActiveOrders returns the NEW orders, most recent first. The slice is a copy.
func (b Book) ActiveOrders() []adapter.Order {
	out := make([]adapter.Order, len(b.active))
	copy(out, b.active)
	return out
}

// ActiveBidOrder returns the most recent active bid.
func (b Book) ActiveBidOrder() (adapter.Order, bool) {
	return b.activeBySide(enum.OrderSideBid)
}

// ActiveAskOrder returns the most recent active ask.
func (b Book) ActiveAskOrder() (adapter.Order, bool) {
	return b.activeBySide(enum.OrderSideAsk)
}

// ActiveOrder returns the most recent active order of the side.
func (b Book) ActiveOrder(side enum.OrderSide) (adapter.Order, bool) {
	return b.activeBySide(side)
}

func (b Book) HasActiveOrders() bool {
	return len(b.active) != 0
}

func (b Book) HasBothSides() bool {
	_, bid := b.ActiveBidOrder()
	_, ask := b.ActiveAskOrder()
	return bid && ask
}

// IsAnomalous reports a book holding more active orders than one per side allows.
func (b Book) IsAnomalous() bool {
	return len(b.active) > MaxActiveOrders
}

func (b Book) activeBySide(side enum.OrderSide) (adapter.Order, bool) {
	for _, o := range b.active {
		if o.Side == side {
			return o, true
		}
	}
	return adapter.Order{}, false
}
