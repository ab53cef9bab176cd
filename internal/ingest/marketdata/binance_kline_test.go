package marketdata

import (
	"context"
	"testing"
	"time"

	"swapper/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

const _klineSample = `{"e":"kline","E":1675609847732,"s":"BTCUSDT","k":{"t":1675609800000,` +
	`"T":1675609859999,"s":"BTCUSDT","i":"1m","f":2636784741,"L":2636787507,` +
	`"o":"23171.33000000","c":"23179.43000000","h":"23180.67000000",` +
	`"l":"23167.50000000","v":"66.74750000","n":2767,"x":false,"q":"1546784.10530020",` +
	`"V":"41.71094000","Q":"966637.21078300","B":"0"}}`

func TestKlineEventTick(t *testing.T) {
	var event KlineEvent
	require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(_klineSample), &event))

	tick, ok := event.Tick()
	require.True(t, ok)
	assert.Equal(t, "23167.5", tick.Low.String())
	assert.Equal(t, "23180.67", tick.High.String())
	assert.Equal(t, int64(1675609847732), tick.EventTime)
	assert.Equal(t, "1m", event.Kline.Interval)
	assert.False(t, event.Kline.Closed)
}

func TestKlineEventNotTick(t *testing.T) {
	testCases := []struct {
		desc    string
		payload string
	}{
		{desc: "subscribe ack", payload: `{"result":null,"id":1}`},
		{desc: "empty object", payload: `{}`},
		{desc: "other event", payload: `{"e":"trade","E":1675609847732,"s":"BTCUSDT"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			var event KlineEvent
			require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(tc.payload), &event))

			_, ok := event.Tick()
			assert.False(t, ok)
		})
	}
}

func TestPublishLatestConflates(t *testing.T) {
	frames := make(chan klineFrame, 1)

	var first, second KlineEvent
	require.NoError(t, sonic.ConfigFastest.Unmarshal([]byte(_klineSample), &first))
	second = first
	second.EventTime = first.EventTime + 1

	t1, _ := first.Tick()
	t2, _ := second.Tick()
	publishLatest(frames, klineFrame{tick: t1, ok: true})
	publishLatest(frames, klineFrame{tick: t2, ok: true})

	tick, ok, err := nextFrame(context.Background(), frames)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, second.EventTime, tick.EventTime)
	assert.Len(t, frames, 0)
}

func TestNextFrameNonTick(t *testing.T) {
	frames := make(chan klineFrame, 1)
	publishLatest(frames, klineFrame{})

	_, ok, err := nextFrame(context.Background(), frames)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextFrameClosed(t *testing.T) {
	frames := make(chan klineFrame, 1)
	close(frames)

	_, _, err := nextFrame(context.Background(), frames)
	assert.True(t, errors.Is(err, exception.ErrFeedClosed))
}

func TestNextFrameCanceled(t *testing.T) {
	frames := make(chan klineFrame, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := nextFrame(ctx, frames)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextBeforeSubscribe(t *testing.T) {
	repo := &BinanceKline{}

	_, _, err := repo.Next(context.Background())
	assert.True(t, errors.Is(err, exception.ErrFeedNotStarted))
}

func TestNextAfterReleaseReportsClosed(t *testing.T) {
	frames := make(chan klineFrame, 1)
	repo := &BinanceKline{frames: frames, subscribed: true}
	repo.release(frames)

	_, _, err := repo.Next(context.Background())
	assert.True(t, errors.Is(err, exception.ErrFeedClosed))
	assert.False(t, repo.subscribed)
}

func TestNextAfterReleaseOfStaleObserver(t *testing.T) {
	stale := make(chan klineFrame, 1)
	live := make(chan klineFrame, 1)
	repo := &BinanceKline{frames: live, subscribed: true}
	repo.release(stale)

	publishLatest(live, klineFrame{ok: true})
	_, ok, err := repo.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
