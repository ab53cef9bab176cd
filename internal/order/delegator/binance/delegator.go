package binance

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"swapper/internal/adapter"
	"swapper/internal/adapter/enum"
	"swapper/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/time/rate"
)

const (
	BaseURL        = "https://api.binance.com/api/v3"
	BaseURLTestnet = "https://testnet.binance.vision/api/v3"
	TimeURL        = "https://api.binance.com/api/v3/time"

	_maxErrorBody = 4 << 10
)

// Config tunes one Delegator. Zero durations fall back to the values Binance documents.
type Config struct {
	BaseURL        string
	TimeURL        string
	Symbol         string
	Quantity       decimal.Decimal
	PricePrecision int32
	OrderWindow    time.Duration
	RecvWindow     time.Duration
	RequestTimeout time.Duration
	RequestsPerSec float64
	RequestBurst   int
}

// Delegator talks to the Binance spot REST API for a single symbol.
type Delegator struct {
	client  *http.Client
	cfg     Config
	token   adapter.Token
	limiter *rate.Limiter
	now     func() time.Time
}

func NewDelegator(client *http.Client, cfg Config, token adapter.Token) *Delegator {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.OrderWindow <= 0 {
		cfg.OrderWindow = time.Hour
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 10
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = 1
	}

	return &Delegator{
		client:  client,
		cfg:     cfg,
		token:   token,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestBurst),
		now:     time.Now,
	}
}

func (d *Delegator) timestamp() string {
	return strconv.FormatInt(d.now().UnixMilli(), 10)
}

// ListOrders returns every order of the symbol created inside the order window.
func (d *Delegator) ListOrders(ctx context.Context) ([]adapter.Order, error) {
	now := d.now()
	params := url.Values{}
	params.Set("symbol", d.cfg.Symbol)
	params.Set("startTime", strconv.FormatInt(now.Add(-d.cfg.OrderWindow).UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(now.UnixMilli(), 10))
	params.Set("timestamp", strconv.FormatInt(now.UnixMilli(), 10))

	var data []ResponseOrder
	if _, err := d.do(ctx, http.MethodGet, "/allOrders", params, &data); err != nil {
		return nil, errors.Wrap(err, "list orders").With("symbol", d.cfg.Symbol)
	}

	orders := make([]adapter.Order, 0, len(data))
	for _, o := range data {
		orders = append(orders, o.Order())
	}

	return orders, nil
}

// PlaceOrder places a GTC limit order of the configured quantity.
func (d *Delegator) PlaceOrder(ctx context.Context, side enum.OrderSide, price decimal.Decimal) (adapter.Order, error) {
	s := binanceSide(side)
	if len(s) == 0 {
		return adapter.Order{}, errors.Wrap(exception.ErrOrderUnsupportedSide, "place order").With("side", side)
	}

	params := url.Values{}
	params.Set("symbol", d.cfg.Symbol)
	params.Set("side", s)
	params.Set("type", enum.OrderTypeLimit.String())
	params.Set("timeInForce", enum.OrderTimeInForceGTC.String())
	params.Set("quantity", d.cfg.Quantity.String())
	params.Set("price", price.StringFixedBank(d.cfg.PricePrecision))
	params.Set("newClientOrderId", uuid.NewString())
	params.Set("timestamp", d.timestamp())

	var data ResponseOrder
	if _, err := d.do(ctx, http.MethodPost, "/order", params, &data); err != nil {
		return adapter.Order{}, errors.Wrap(err, "place order").With("side", side).With("price", params.Get("price"))
	}

	if data.OrderID == 0 {
		return adapter.Order{}, errors.Wrap(exception.ErrOrderEmptyResponseID, "place order").With("clientOrderId", params.Get("newClientOrderId"))
	}

	return data.Order(), nil
}

// CancelOrder cancels one order. A rejected cancel is logged and reported through ok.
func (d *Delegator) CancelOrder(ctx context.Context, id int64) (adapter.Order, bool, error) {
	params := url.Values{}
	params.Set("symbol", d.cfg.Symbol)
	params.Set("orderId", strconv.FormatInt(id, 10))
	params.Set("timestamp", d.serverTime(ctx))
	params.Set("recvWindow", strconv.FormatInt(d.cfg.RecvWindow.Milliseconds(), 10))

	var data ResponseOrder
	if status, err := d.do(ctx, http.MethodDelete, "/order", params, &data); err != nil {
		if status != 0 {
			logs.Errorf("cancel order failed, id: %d, err: %+v", id, err)
			return adapter.Order{}, false, nil
		}
		return adapter.Order{}, false, errors.Wrap(err, "cancel order").With("id", id)
	}

	logs.Infof("order cancelled, id: %d", id)
	return data.Order(), true, nil
}

// serverTime asks the exchange for its clock and falls back to the local one.
func (d *Delegator) serverTime(ctx context.Context) string {
	if len(d.cfg.TimeURL) == 0 {
		return d.timestamp()
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.TimeURL, nil)
	if err != nil {
		return d.timestamp()
	}

	resp, err := d.client.Do(r)
	if err != nil {
		logs.Errorf("fetch server time, err: %+v", err)
		return d.timestamp()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return d.timestamp()
	}

	var data ResponseServerTime
	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(&data); err != nil || data.ServerTime == 0 {
		return d.timestamp()
	}

	return strconv.FormatInt(data.ServerTime, 10)
}

// do sends one signed request. status is zero when no response was received.
func (d *Delegator) do(ctx context.Context, method, path string, params url.Values, out any) (status int, err error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(err, "wait rate limiter")
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()

	payload := sign(d.token.Secret, params)
	target := d.cfg.BaseURL + path
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(payload)
	} else {
		target += "?" + payload
	}

	r, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, errors.Wrap(err, "new request")
	}
	r.Header.Set("X-MBX-APIKEY", d.token.Key)
	if body != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := d.client.Do(r)
	if err != nil {
		return 0, errors.Wrap(err, "do request").With("method", method).With("path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
		var e ResponseError
		_ = sonic.ConfigFastest.Unmarshal(raw, &e)
		return resp.StatusCode, errors.Wrap(exception.ErrGatewayResponse, "unexpected status").
			With("status", resp.StatusCode).
			With("code", e.Code).
			With("body", string(raw))
	}

	if out == nil {
		return resp.StatusCode, nil
	}

	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, errors.Wrap(exception.ErrOrderDecodeResponseBody, err.Error())
	}

	return resp.StatusCode, nil
}
