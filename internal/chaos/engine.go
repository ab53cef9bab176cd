package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"swapper/internal/adapter"
	"swapper/internal/adapter/enum"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

// Gateway is the exchange surface the engine wraps.
type Gateway interface {
	ListOrders(ctx context.Context) ([]adapter.Order, error)
	PlaceOrder(ctx context.Context, side enum.OrderSide, price decimal.Decimal) (adapter.Order, error)
	CancelOrder(ctx context.Context, id int64) (adapter.Order, bool, error)
}

// Config controls fault injection.
type Config struct {
	Seed             int64
	TimeoutRate      float64
	CancelRejectRate float64
	MaxDelay         time.Duration
}

// Enabled reports whether any fault would ever be injected.
func (c Config) Enabled() bool {
	return c.TimeoutRate > 0 || c.CancelRejectRate > 0 || c.MaxDelay > 0
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.TimeoutRate < 0 || c.TimeoutRate > 1 {
		return fmt.Errorf("timeoutRate must be between 0 and 1")
	}
	if c.CancelRejectRate < 0 || c.CancelRejectRate > 1 {
		return fmt.Errorf("cancelRejectRate must be between 0 and 1")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Engine injects latency, timeouts and refused cancels in front of a gateway.
type Engine struct {
	next Gateway
	cfg  Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a chaos engine with validation.
func NewEngine(next Gateway, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		next: next,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (e *Engine) ListOrders(ctx context.Context) ([]adapter.Order, error) {
	if err := e.disturb(ctx, "list orders"); err != nil {
		return nil, err
	}
	return e.next.ListOrders(ctx)
}

func (e *Engine) PlaceOrder(ctx context.Context, side enum.OrderSide, price decimal.Decimal) (adapter.Order, error) {
	if err := e.disturb(ctx, "place order"); err != nil {
		return adapter.Order{}, err
	}
	return e.next.PlaceOrder(ctx, side, price)
}

func (e *Engine) CancelOrder(ctx context.Context, id int64) (adapter.Order, bool, error) {
	if err := e.disturb(ctx, "cancel order"); err != nil {
		return adapter.Order{}, false, err
	}
	if e.roll(e.cfg.CancelRejectRate) {
		logs.Infof("chaos: reject cancel, id: %d", id)
		return adapter.Order{}, false, nil
	}
	return e.next.CancelOrder(ctx, id)
}

// disturb delays the call and may fail it with a deadline error.
func (e *Engine) disturb(ctx context.Context, op string) error {
	if delay := e.delay(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if e.roll(e.cfg.TimeoutRate) {
		logs.Infof("chaos: inject timeout, op: %s", op)
		return fmt.Errorf("chaos %s: %w", op, context.DeadlineExceeded)
	}

	return nil
}

func (e *Engine) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64() < rate
}

func (e *Engine) delay() time.Duration {
	maxDelay := e.cfg.MaxDelay.Nanoseconds()
	if maxDelay <= 0 {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Duration(e.rng.Int63n(maxDelay + 1))
}
