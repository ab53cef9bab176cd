package core

import (
	"context"
	"time"

	"swapper/internal/adapter"
	"swapper/internal/adapter/enum"
	"swapper/internal/journal"
	"swapper/internal/obs"
	"swapper/internal/quote"
	"swapper/internal/risk"
	"swapper/internal/state"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

// Gateway is the exchange the loop reconciles against.
type Gateway interface {
	ListOrders(ctx context.Context) ([]adapter.Order, error)
	PlaceOrder(ctx context.Context, side enum.OrderSide, price decimal.Decimal) (adapter.Order, error)
	// CancelOrder reports ok=false when the exchange refused the cancel.
	CancelOrder(ctx context.Context, id int64) (adapter.Order, bool, error)
}

// MarketFeed yields market messages. ok=false means the message carried no price.
type MarketFeed interface {
	Subscribe(ctx context.Context) error
	Next(ctx context.Context) (adapter.Tick, bool, error)
}

// Recorder receives every order action the loop performs.
type Recorder interface {
	Record(e journal.Entry)
}

type LoopConfig struct {
	Cooldown time.Duration
}

type Option func(*Loop)

func WithMetrics(m *obs.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

func WithTraceGenerator(g *obs.TraceGenerator) Option {
	return func(l *Loop) { l.trace = g }
}

// WithSleep replaces the cooldown wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Loop) { l.sleep = sleep }
}

// Loop keeps one resting bid and one resting ask around the latest market range.
type Loop struct {
	cfg      LoopConfig
	gateway  Gateway
	feed     MarketFeed
	metrics  *obs.Metrics
	recorder Recorder
	trace    *obs.TraceGenerator
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewLoop(cfg LoopConfig, gateway Gateway, feed MarketFeed, opts ...Option) *Loop {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}

	l := &Loop{
		cfg:     cfg,
		gateway: gateway,
		feed:    feed,
		trace:   obs.NewTraceGenerator(0),
		sleep:   sleepContext,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run subscribes the feed and runs cycles until ctx ends or a cycle fails.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.feed.Subscribe(ctx); err != nil {
		return errors.Wrap(err, "subscribe market feed")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.Cycle(ctx); err != nil {
			return err
		}
	}
}

// Cycle runs one snapshot, tick, decide and act pass.
func (l *Loop) Cycle(ctx context.Context) error {
	traceID := l.trace.Next()
	start := time.Now()

	outcome, err := l.cycle(ctx, traceID)
	if err != nil {
		outcome = obs.CycleFailed
	}
	l.metrics.ObserveCycle(outcome, time.Since(start))

	return err
}

func (l *Loop) cycle(ctx context.Context, traceID uint64) (string, error) {
	orders, err := l.gateway.ListOrders(ctx)
	if err != nil {
		return "", errors.Wrap(err, "list orders").With("trace", traceID)
	}

	book := state.Rebuild(orders)
	if book.IsAnomalous() {
		logs.Errorf("too many active orders, skip cycle, trace: %d, active: %d, orders: %d",
			traceID, len(book.ActiveOrders()), book.Len())
		return obs.CycleAnomaly, l.cooldown(ctx)
	}

	tick, ok, err := l.feed.Next(ctx)
	if err != nil {
		return "", errors.Wrap(err, "wait market tick").With("trace", traceID)
	}

	if !ok {
		return obs.CycleNoTick, l.cooldown(ctx)
	}

	q, err := quote.FromTick(tick)
	if err != nil {
		return "", errors.Wrap(err, "quote tick").With("trace", traceID)
	}

	// nothing has been issued yet, so shutdown still wins here
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !book.HasActiveOrders() {
		logs.Infof("empty book, place both sides, trace: %d, bid: %s, ask: %s, spread: %s",
			traceID, q.BidPrice.StringFixed(2), q.AskPrice.StringFixed(2), q.Spread.StringFixed(4))
	}

	acted, err := l.act(context.WithoutCancel(ctx), traceID, book, q)
	if err != nil {
		return "", err
	}

	if acted {
		return obs.CycleActed, nil
	}

	return obs.CycleIdle, nil
}

// act reconciles both sides concurrently and waits for both.
func (l *Loop) act(ctx context.Context, traceID uint64, book state.Book, q adapter.Quote) (bool, error) {
	sides := [2]enum.OrderSide{enum.OrderSideBid, enum.OrderSideAsk}
	acted := [2]bool{}

	var eg errgroup.Group
	for i, side := range sides {
		eg.Go(func() error {
			ok, err := l.reconcileSide(ctx, traceID, book, side, q)
			acted[i] = ok
			return err
		})
	}

	err := eg.Wait()
	return acted[0] || acted[1], err
}

func (l *Loop) reconcileSide(ctx context.Context, traceID uint64, book state.Book, side enum.OrderSide, q adapter.Quote) (bool, error) {
	if order, ok := book.ActiveOrder(side); ok {
		atRisk, err := risk.IsAtRisk(q.BidPrice, q.AskPrice, order)
		if err != nil {
			return false, errors.Wrap(err, "evaluate risk").With("trace", traceID).With("order", order.ID)
		}

		if !atRisk {
			return false, nil
		}

		if err := l.cancel(ctx, traceID, order); err != nil {
			return true, err
		}
	}

	if err := l.place(ctx, traceID, side, q.PriceOf(side)); err != nil {
		return true, err
	}

	return true, nil
}

// cancel tolerates a refused cancel. The order may already be filled or gone.
func (l *Loop) cancel(ctx context.Context, traceID uint64, order adapter.Order) error {
	start := time.Now()
	canceled, ok, err := l.gateway.CancelOrder(ctx, order.ID)
	l.metrics.ObserveAction(obs.ActionCancel, order.Side, time.Since(start))
	if err != nil {
		return errors.Wrap(err, "cancel order").With("trace", traceID).With("order", order.ID)
	}

	if !ok {
		l.metrics.IncCancelFailure()
		logs.Errorf("cancel order failed, trace: %d, side: %s, order: %d, price: %s", traceID, order.Side, order.ID, order.Price)
		return nil
	}

	logs.Infof("cancel at-risk order, trace: %d, side: %s, order: %d, price: %s", traceID, order.Side, order.ID, order.Price)
	if canceled.ID == 0 {
		canceled = order
	}
	l.record(journal.NewEntry(traceID, journal.ActionCancel, canceled))

	return nil
}

func (l *Loop) place(ctx context.Context, traceID uint64, side enum.OrderSide, price decimal.Decimal) error {
	start := time.Now()
	placed, err := l.gateway.PlaceOrder(ctx, side, price)
	l.metrics.ObserveAction(obs.ActionPlace, side, time.Since(start))
	if err != nil {
		return errors.Wrap(err, "place order").With("trace", traceID).With("side", side.String())
	}

	logs.Infof("place order, trace: %d, side: %s, order: %d, price: %s", traceID, side, placed.ID, placed.Price)
	l.record(journal.NewEntry(traceID, journal.ActionPlace, placed))

	return nil
}

func (l *Loop) record(e journal.Entry) {
	if l.recorder == nil {
		return
	}
	l.recorder.Record(e)
}

func (l *Loop) cooldown(ctx context.Context) error {
	return l.sleep(ctx, l.cfg.Cooldown)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
