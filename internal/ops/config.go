package ops

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"swapper/internal/adapter"
	"swapper/internal/chaos"
	"swapper/internal/ingest/marketdata"
	"swapper/internal/order/delegator/binance"
	"swapper/pkg/exception"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Config is the resolved, immutable configuration of one quoter process.
//
// Values are layered: defaults, then the optional JSON file, then environment variables.
// Credentials are only read from the environment.
type Config struct {
	// Trading
	Symbol         string          `json:"symbol" env:"QUOTER_SYMBOL"`
	Quantity       decimal.Decimal `json:"quantity" env:"QUOTER_QUANTITY"`
	PricePrecision int32           `json:"pricePrecision" env:"QUOTER_PRICE_PRECISION"`
	OrderWindowMin int             `json:"orderWindowMinutes" env:"QUOTER_ORDER_WINDOW_MINUTES"`
	RecvWindowMs   int64           `json:"recvWindowMs" env:"QUOTER_RECV_WINDOW_MS"`

	// Endpoints
	RESTBaseURL string `json:"restBaseUrl" env:"BINANCE_REST_API_BASE_URL"`
	TimeURL     string `json:"timeUrl" env:"BINANCE_TIME_API_URL"`
	StreamURL   string `json:"streamUrl" env:"BINANCE_WS_MARKET_STREAM_URL"`
	StreamName  string `json:"streamName" env:"QUOTER_STREAM_NAME"`

	// Loop
	CooldownMs       int64   `json:"cooldownMs" env:"QUOTER_COOLDOWN_MS"`
	RequestTimeoutMs int64   `json:"requestTimeoutMs" env:"QUOTER_REQUEST_TIMEOUT_MS"`
	RequestsPerSec   float64 `json:"requestsPerSecond" env:"QUOTER_REQUESTS_PER_SECOND"`
	RequestBurst     int     `json:"requestBurst" env:"QUOTER_REQUEST_BURST"`

	// Observability
	MetricsAddr     string `json:"metricsAddr" env:"METRICS_ADDR"`
	PyroscopeServer string `json:"pyroscopeServer" env:"PYROSCOPE_SERVER"`

	// Journal
	DatabaseURL     string `json:"-" env:"DATABASE_URL"`
	JournalCapacity int    `json:"journalCapacity" env:"QUOTER_JOURNAL_CAPACITY"`

	// Fault injection
	ChaosSeed             int64   `json:"chaosSeed" env:"QUOTER_CHAOS_SEED"`
	ChaosTimeoutRate      float64 `json:"chaosTimeoutRate" env:"QUOTER_CHAOS_TIMEOUT_RATE"`
	ChaosCancelRejectRate float64 `json:"chaosCancelRejectRate" env:"QUOTER_CHAOS_CANCEL_REJECT_RATE"`
	ChaosMaxDelayMs       int64   `json:"chaosMaxDelayMs" env:"QUOTER_CHAOS_MAX_DELAY_MS"`

	// Credentials
	APIKey    string `json:"-" env:"API_KEY"`
	SecretKey string `json:"-" env:"SECRET_KEY"`

	// Computed durations (not from file or env)
	Cooldown       time.Duration `json:"-"`
	RequestTimeout time.Duration `json:"-"`
	OrderWindow    time.Duration `json:"-"`
	RecvWindow     time.Duration `json:"-"`
}

// Default returns the built-in configuration for BTCUSDT on the Binance spot testnet.
func Default() Config {
	return Config{
		Symbol:           "BTCUSDT",
		Quantity:         decimal.RequireFromString("0.01"),
		PricePrecision:   2,
		OrderWindowMin:   60,
		RecvWindowMs:     5000,
		RESTBaseURL:      binance.BaseURLTestnet,
		TimeURL:          binance.TimeURL,
		StreamURL:        marketdata.BinanceStreamURL,
		StreamName:       "btcusdt@kline_1m",
		CooldownMs:       5000,
		RequestTimeoutMs: 15000,
		RequestsPerSec:   10,
		RequestBurst:     5,
		JournalCapacity:  1024,
	}
}

// Load resolves the configuration from an optional JSON file and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file").With("path", path)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "decode config file").With("path", path)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment variables")
	}

	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) resolve() {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	c.StreamName = strings.ToLower(strings.TrimSpace(c.StreamName))
	c.Cooldown = time.Duration(c.CooldownMs) * time.Millisecond
	c.RequestTimeout = time.Duration(c.RequestTimeoutMs) * time.Millisecond
	c.OrderWindow = time.Duration(c.OrderWindowMin) * time.Minute
	c.RecvWindow = time.Duration(c.RecvWindowMs) * time.Millisecond
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Symbol == "":
		return errors.Wrap(exception.ErrInvalidConfig, "symbol is empty")
	case !c.Quantity.IsPositive():
		return errors.Wrap(exception.ErrInvalidConfig, "quantity must be > 0")
	case c.PricePrecision < 0:
		return errors.Wrap(exception.ErrInvalidConfig, "price precision must be >= 0")
	case c.OrderWindow <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "order window must be > 0")
	case c.RecvWindow <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "recv window must be > 0")
	case c.RESTBaseURL == "" || c.StreamURL == "" || c.StreamName == "":
		return errors.Wrap(exception.ErrInvalidConfig, "endpoints must be set")
	case c.Cooldown <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "cooldown must be > 0")
	case c.RequestTimeout <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "request timeout must be > 0")
	case c.RequestsPerSec <= 0 || c.RequestBurst <= 0:
		return errors.Wrap(exception.ErrInvalidConfig, "request rate must be > 0")
	case c.Token().IsEmpty():
		return errors.Wrap(exception.ErrInvalidConfig, "API_KEY and SECRET_KEY must be set")
	}

	if err := c.Chaos().Validate(); err != nil {
		return errors.Wrap(exception.ErrInvalidConfig, err.Error())
	}
	return nil
}

// Chaos returns the fault injection settings. All zero disables it.
func (c Config) Chaos() chaos.Config {
	return chaos.Config{
		Seed:             c.ChaosSeed,
		TimeoutRate:      c.ChaosTimeoutRate,
		CancelRejectRate: c.ChaosCancelRejectRate,
		MaxDelay:         time.Duration(c.ChaosMaxDelayMs) * time.Millisecond,
	}
}

// Token returns the exchange credentials.
func (c Config) Token() adapter.Token {
	return adapter.NewToken(c.APIKey, c.SecretKey)
}
