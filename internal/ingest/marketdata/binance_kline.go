package marketdata

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"swapper/internal/adapter"
	"swapper/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const BinanceStreamURL = "wss://stream.binance.com:9443/ws"

// BinanceKline reads one kline stream and hands the latest unread message to Next.
type BinanceKline struct {
	wss    *ws.WebSocket
	stream string
	nextID atomic.Int64

	mu         sync.Mutex
	subscribed bool
	released   bool
	frames     chan klineFrame
}

type klineFrame struct {
	tick adapter.Tick
	ok   bool
}

func NewBinanceKline(ctx context.Context, url, stream string) *BinanceKline {
	return &BinanceKline{
		wss:    ws.New(ctx, url),
		stream: strings.ToLower(stream),
	}
}

func (repo *BinanceKline) Close() {
	repo.wss.Close()
}

func (repo *BinanceKline) StartWebsocket(ctx context.Context) error {
	if err := repo.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type BinanceSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type BinanceSubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func subscriberResponseParser(m ws.Message) (BinanceSubscribeResponse, bool) {
	var resp BinanceSubscribeResponse
	err := m.Unmarshal(&resp)
	return resp, err == nil
}

// Subscribe subscribes the kline stream and starts forwarding its messages to Next.
// Calling it again on a live subscription does nothing.
func (repo *BinanceKline) Subscribe(ctx context.Context) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if repo.subscribed {
		return nil
	}

	id := repo.nextID.Add(1)
	appendIntoRegister := true
	if err := repo.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := BinanceSubscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{repo.stream},
				ID:     id,
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := subscriberResponseParser(m)
			if !ok || resp.ID != id {
				return false, nil
			}

			if resp.Result != nil {
				return false, errors.Wrap(exception.ErrFeedSubscribeReply, "subscribe and wait").With("result", resp.Result)
			}
			return true, nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait").With("stream", repo.stream)
	}

	repo.frames = make(chan klineFrame, 1)
	repo.subscribed = true
	repo.observe(ctx, repo.frames)
	logs.Infof("kline stream subscribed, stream: %s, id: %d", repo.stream, id)

	return nil
}

func (repo *BinanceKline) observe(ctx context.Context, frames chan klineFrame) {
	ch, cancel := repo.wss.Subscribe()

	go func() {
		defer cancel()
		defer repo.release(frames)
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				event, ok := ws.ReadMessage[KlineEvent](m)
				if !ok {
					publishLatest(frames, klineFrame{})
					continue
				}

				tick, ok := event.Tick()
				publishLatest(frames, klineFrame{tick: tick, ok: ok})
			}
		}
	}()
}

// release closes the frames of a finished observer so the next Subscribe starts over.
func (repo *BinanceKline) release(frames chan klineFrame) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	close(frames)
	if repo.frames == frames {
		repo.frames = nil
		repo.subscribed = false
		repo.released = true
	}
}

func (repo *BinanceKline) current() (chan klineFrame, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	switch {
	case repo.frames != nil:
		return repo.frames, nil
	case repo.released:
		return nil, exception.ErrFeedClosed
	default:
		return nil, exception.ErrFeedNotStarted
	}
}

// Next blocks until a message arrives. ok reports whether the message carried a kline.
// A stream that ended since the last Subscribe reports ErrFeedClosed.
func (repo *BinanceKline) Next(ctx context.Context) (adapter.Tick, bool, error) {
	frames, err := repo.current()
	if err != nil {
		return adapter.Tick{}, false, err
	}

	return nextFrame(ctx, frames)
}

func nextFrame(ctx context.Context, frames <-chan klineFrame) (adapter.Tick, bool, error) {
	select {
	case <-ctx.Done():
		return adapter.Tick{}, false, ctx.Err()
	case f, ok := <-frames:
		if !ok {
			if err := ctx.Err(); err != nil {
				return adapter.Tick{}, false, err
			}
			return adapter.Tick{}, false, exception.ErrFeedClosed
		}
		return f.tick, f.ok, nil
	}
}

// publishLatest replaces any unread frame with f. frames must have a single producer.
func publishLatest(frames chan klineFrame, f klineFrame) {
	for {
		select {
		case frames <- f:
			return
		default:
		}

		select {
		case <-frames:
		default:
		}
	}
}

// KlineEvent is the 'Kline/Candlestick Stream' payload.
type KlineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     *Kline `json:"k"`
}

type Kline struct {
	StartTime int64           `json:"t"`
	CloseTime int64           `json:"T"`
	Symbol    string          `json:"s"`
	Interval  string          `json:"i"`
	Open      decimal.Decimal `json:"o"`
	Close     decimal.Decimal `json:"c"`
	High      decimal.Decimal `json:"h"`
	Low       decimal.Decimal `json:"l"`
	Volume    decimal.Decimal `json:"v"`
	Closed    bool            `json:"x"`
}

// Tick extracts the price range. Messages without a kline payload are not ticks.
func (e KlineEvent) Tick() (adapter.Tick, bool) {
	if e.Kline == nil {
		return adapter.Tick{}, false
	}

	return adapter.Tick{
		Low:       e.Kline.Low,
		High:      e.Kline.High,
		EventTime: e.EventTime,
	}, true
}
