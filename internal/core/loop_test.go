package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"swapper/internal/adapter"
	"swapper/internal/adapter/enum"
	"swapper/internal/journal"
	"swapper/internal/obs"
	"swapper/pkg/exception"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type placeCall struct {
	side  enum.OrderSide
	price decimal.Decimal
}

type fakeGateway struct {
	mu        sync.Mutex
	orders    []adapter.Order
	listErr   error
	placeErr  error
	cancelErr error
	cancelNOK bool
	onPlace   func()
	onCancel  func()
	nextID    int64

	placed    []placeCall
	cancelled []int64
}

func (g *fakeGateway) ListOrders(ctx context.Context) ([]adapter.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]adapter.Order(nil), g.orders...), nil
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, side enum.OrderSide, price decimal.Decimal) (adapter.Order, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Order{}, err
	}

	if g.onPlace != nil {
		g.onPlace()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.placeErr != nil {
		return adapter.Order{}, g.placeErr
	}

	g.nextID++
	g.placed = append(g.placed, placeCall{side: side, price: price})
	return adapter.Order{
		ID:     1000 + g.nextID,
		Symbol: "BTCUSDT",
		Side:   side,
		Status: enum.OrderStatusNew,
		Price:  price.Round(2),
	}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, id int64) (adapter.Order, bool, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Order{}, false, err
	}

	if g.onCancel != nil {
		g.onCancel()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelErr != nil {
		return adapter.Order{}, false, g.cancelErr
	}

	g.cancelled = append(g.cancelled, id)
	if g.cancelNOK {
		return adapter.Order{}, false, nil
	}
	return adapter.Order{ID: id, Status: enum.OrderStatusCanceled}, true, nil
}

func (g *fakeGateway) placedBySide(side enum.OrderSide) []placeCall {
	g.mu.Lock()
	defer g.mu.Unlock()

	var result []placeCall
	for _, p := range g.placed {
		if p.side == side {
			result = append(result, p)
		}
	}
	return result
}

type feedFrame struct {
	tick adapter.Tick
	ok   bool
	err  error
}

type fakeFeed struct {
	frames     []feedFrame
	subscribed int
	onNext     func()
}

func (f *fakeFeed) Subscribe(ctx context.Context) error {
	f.subscribed++
	return nil
}

func (f *fakeFeed) Next(ctx context.Context) (adapter.Tick, bool, error) {
	if f.onNext != nil {
		f.onNext()
	}

	if len(f.frames) == 0 {
		<-ctx.Done()
		return adapter.Tick{}, false, ctx.Err()
	}

	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame.tick, frame.ok, frame.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *fakeRecorder) Record(e journal.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// low 10000 and high 10010 quote a 0.1% spread: bid 9990, ask 10020.01.
func testTick() feedFrame {
	return feedFrame{tick: adapter.Tick{Low: dec("10000"), High: dec("10010")}, ok: true}
}

func activeOrder(id int64, side enum.OrderSide, price string) adapter.Order {
	return adapter.Order{
		ID:          id,
		Symbol:      "BTCUSDT",
		Side:        side,
		Status:      enum.OrderStatusNew,
		Price:       dec(price),
		UpdatedTime: id,
	}
}

type loopSuite struct {
	gateway  *fakeGateway
	feed     *fakeFeed
	recorder *fakeRecorder
	sleeper  *sleepRecorder
	metrics  *obs.Metrics
	loop     *Loop
}

func newLoopSuite(orders []adapter.Order, frames ...feedFrame) *loopSuite {
	s := &loopSuite{
		gateway:  &fakeGateway{orders: orders},
		feed:     &fakeFeed{frames: frames},
		recorder: &fakeRecorder{},
		sleeper:  &sleepRecorder{},
		metrics:  obs.NewMetrics(prometheus.NewRegistry()),
	}

	s.loop = NewLoop(LoopConfig{Cooldown: 5 * time.Second}, s.gateway, s.feed,
		WithMetrics(s.metrics),
		WithRecorder(s.recorder),
		WithTraceGenerator(obs.NewTraceGenerator(1)),
		WithSleep(s.sleeper.sleep),
	)

	return s
}

func TestCycleEmptyBookPlacesBothSides(t *testing.T) {
	s := newLoopSuite(nil, testTick())

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.Empty(t, s.gateway.cancelled)
	require.Len(t, s.gateway.placed, 2)

	bids := s.gateway.placedBySide(enum.OrderSideBid)
	asks := s.gateway.placedBySide(enum.OrderSideAsk)
	require.Len(t, bids, 1)
	require.Len(t, asks, 1)
	assert.True(t, bids[0].price.Equal(dec("9990")), bids[0].price.String())
	assert.True(t, asks[0].price.Equal(dec("10020.01")), asks[0].price.String())

	assert.Len(t, s.recorder.entries, 2)
	assert.Empty(t, s.sleeper.calls)
}

func TestCycleEmptyBookPlacesSidesConcurrently(t *testing.T) {
	s := newLoopSuite(nil, testTick())

	var arrived sync.WaitGroup
	arrived.Add(2)
	both := make(chan struct{})
	go func() {
		arrived.Wait()
		close(both)
	}()

	// each placement holds until the other side is also in flight
	var stalled atomic.Bool
	s.gateway.onPlace = func() {
		arrived.Done()
		select {
		case <-both:
		case <-time.After(time.Second):
			stalled.Store(true)
		}
	}

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.False(t, stalled.Load(), "bid and ask placements were not in flight together")
	assert.Len(t, s.gateway.placedBySide(enum.OrderSideBid), 1)
	assert.Len(t, s.gateway.placedBySide(enum.OrderSideAsk), 1)
}

func TestCycleSampleKline(t *testing.T) {
	s := newLoopSuite(nil, feedFrame{
		tick: adapter.Tick{Low: dec("23167.50000000"), High: dec("23180.67000000")},
		ok:   true,
	})

	require.NoError(t, s.loop.Cycle(context.Background()))

	bids := s.gateway.placedBySide(enum.OrderSideBid)
	asks := s.gateway.placedBySide(enum.OrderSideAsk)
	require.Len(t, bids, 1)
	require.Len(t, asks, 1)
	assert.Equal(t, "23154.33", bids[0].price.StringFixed(2))
	assert.Equal(t, "23193.85", asks[0].price.StringFixed(2))
}

func TestCycleBothSidesSafe(t *testing.T) {
	s := newLoopSuite([]adapter.Order{
		activeOrder(1, enum.OrderSideBid, "9995"),
		activeOrder(2, enum.OrderSideAsk, "10015"),
	}, testTick())

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.Empty(t, s.gateway.placed)
	assert.Empty(t, s.gateway.cancelled)
	assert.Empty(t, s.recorder.entries)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metricsCycles(obs.CycleIdle)))
}

func TestCycleBothSidesAtRisk(t *testing.T) {
	s := newLoopSuite([]adapter.Order{
		activeOrder(1, enum.OrderSideBid, "9990"),
		activeOrder(2, enum.OrderSideAsk, "10020.01"),
	}, testTick())

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.ElementsMatch(t, []int64{1, 2}, s.gateway.cancelled)
	assert.Len(t, s.gateway.placedBySide(enum.OrderSideBid), 1)
	assert.Len(t, s.gateway.placedBySide(enum.OrderSideAsk), 1)
	assert.Len(t, s.recorder.entries, 4)
}

func TestCycleOneSideAtRiskOtherAbsent(t *testing.T) {
	s := newLoopSuite([]adapter.Order{
		activeOrder(1, enum.OrderSideBid, "9985"),
		{ID: 2, Side: enum.OrderSideAsk, Status: enum.OrderStatusFilled, Price: dec("10015")},
	}, testTick())

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.Equal(t, []int64{1}, s.gateway.cancelled)
	assert.Len(t, s.gateway.placed, 2)
	assert.Len(t, s.gateway.placedBySide(enum.OrderSideBid), 1)
	assert.Len(t, s.gateway.placedBySide(enum.OrderSideAsk), 1)
}

func TestCycleOneSideSafeOtherAbsent(t *testing.T) {
	s := newLoopSuite([]adapter.Order{
		activeOrder(2, enum.OrderSideAsk, "10015"),
	}, testTick())

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.Empty(t, s.gateway.cancelled)
	require.Len(t, s.gateway.placed, 1)
	assert.Equal(t, enum.OrderSideBid, s.gateway.placed[0].side)
}

func TestCycleAnomalySkipsActions(t *testing.T) {
	s := newLoopSuite([]adapter.Order{
		activeOrder(1, enum.OrderSideBid, "9990"),
		activeOrder(2, enum.OrderSideAsk, "10020.01"),
		activeOrder(3, enum.OrderSideBid, "9980"),
	}, testTick())

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.Empty(t, s.gateway.placed)
	assert.Empty(t, s.gateway.cancelled)
	assert.Equal(t, []time.Duration{5 * time.Second}, s.sleeper.calls)
	assert.Len(t, s.feed.frames, 1, "tick must not be consumed")
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metricsCycles(obs.CycleAnomaly)))
}

func TestCycleNonTickSkipsActions(t *testing.T) {
	s := newLoopSuite(nil, feedFrame{ok: false})

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.Empty(t, s.gateway.placed)
	assert.Empty(t, s.gateway.cancelled)
	assert.Equal(t, []time.Duration{5 * time.Second}, s.sleeper.calls)
}

func TestCycleCancelFailureStillPlaces(t *testing.T) {
	s := newLoopSuite([]adapter.Order{
		activeOrder(1, enum.OrderSideBid, "9990"),
		activeOrder(2, enum.OrderSideAsk, "10015"),
	}, testTick())
	s.gateway.cancelNOK = true

	require.NoError(t, s.loop.Cycle(context.Background()))

	assert.Equal(t, []int64{1}, s.gateway.cancelled)
	require.Len(t, s.gateway.placed, 1)
	assert.Equal(t, enum.OrderSideBid, s.gateway.placed[0].side)
	require.Len(t, s.recorder.entries, 1)
	assert.Equal(t, journal.ActionPlace, s.recorder.entries[0].Action)
}

func TestCycleListError(t *testing.T) {
	s := newLoopSuite(nil, testTick())
	s.gateway.listErr = errors.Wrap(exception.ErrGatewayResponse, "list")

	err := s.loop.Cycle(context.Background())
	assert.True(t, errors.Is(err, exception.ErrGatewayResponse))
	assert.Empty(t, s.gateway.placed)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metricsCycles(obs.CycleFailed)))
}

func TestCyclePlaceError(t *testing.T) {
	s := newLoopSuite(nil, testTick())
	s.gateway.placeErr = errors.Wrap(exception.ErrGatewayResponse, "place")

	err := s.loop.Cycle(context.Background())
	assert.True(t, errors.Is(err, exception.ErrGatewayResponse))
}

func TestCycleInvalidTick(t *testing.T) {
	s := newLoopSuite(nil, feedFrame{tick: adapter.Tick{Low: dec("-1"), High: dec("10")}, ok: true})

	err := s.loop.Cycle(context.Background())
	assert.True(t, errors.Is(err, exception.ErrInvalidInput))
	assert.Empty(t, s.gateway.placed)
}

func TestCycleCanceledBeforeActing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newLoopSuite(nil, testTick())
	s.feed.onNext = cancel

	err := s.loop.Cycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.gateway.placed)
}

func TestCycleIssuedPairCompletesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newLoopSuite([]adapter.Order{
		activeOrder(1, enum.OrderSideBid, "9990"),
		activeOrder(2, enum.OrderSideAsk, "10015"),
	}, testTick())
	s.gateway.onCancel = cancel

	require.NoError(t, s.loop.Cycle(ctx))

	assert.Equal(t, []int64{1}, s.gateway.cancelled)
	assert.Len(t, s.gateway.placedBySide(enum.OrderSideBid), 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newLoopSuite(nil, testTick())
	done := make(chan error, 1)
	go func() { done <- s.loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(s.gateway.placedBySide(enum.OrderSideAsk)) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, 1, s.feed.subscribed)
}

func (s *loopSuite) metricsCycles(outcome string) prometheus.Collector {
	return s.metrics.Cycles(outcome)
}
