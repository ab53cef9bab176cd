package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"swapper/internal/chaos"
	"swapper/internal/core"
	"swapper/internal/ingest/marketdata"
	"swapper/internal/journal"
	"swapper/internal/obs"
	"swapper/internal/ops"
	"swapper/internal/order/delegator/binance"
	"swapper/pkg/conn"

	"github.com/grafana/pyroscope-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	envPath := flag.String("env", ".env", "Path to .env file (ignored when missing)")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logs.Errorf("load env file, path: %s, err: %+v", *envPath, err)
		os.Exit(1)
	}

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("load config, err: %+v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logs.Errorf("quoter stopped, err: %+v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg ops.Config) error {
	if len(cfg.PyroscopeServer) != 0 {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "swapper.quoter",
			ServerAddress:   cfg.PyroscopeServer,
			Tags: map[string]string{
				"symbol": cfg.Symbol,
			},
			Logger: profilerLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := obs.NewMetrics(reg)
	defer logSummary(metrics)

	if len(cfg.MetricsAddr) != 0 {
		srv := serveMetrics(cfg.MetricsAddr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := []core.Option{
		core.WithMetrics(metrics),
		core.WithTraceGenerator(obs.NewTraceGenerator(0)),
	}

	if len(cfg.DatabaseURL) != 0 {
		client, err := conn.New(ctx, conn.Option{ConnString: cfg.DatabaseURL})
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		store, err := journal.NewGormStore(client.DB())
		if err != nil {
			return err
		}

		j := journal.New(store, cfg.JournalCapacity, metrics)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Run(context.WithoutCancel(ctx))
		}()
		defer func() {
			j.Close()
			wg.Wait()
		}()

		opts = append(opts, core.WithRecorder(j))
		logs.Info("order journal enabled")
	}

	feed := marketdata.NewBinanceKline(ctx, cfg.StreamURL, cfg.StreamName)
	if err := feed.StartWebsocket(ctx); err != nil {
		return err
	}
	defer feed.Close()

	delegator := binance.NewDelegator(&http.Client{}, binance.Config{
		BaseURL:        cfg.RESTBaseURL,
		TimeURL:        cfg.TimeURL,
		Symbol:         cfg.Symbol,
		Quantity:       cfg.Quantity,
		PricePrecision: cfg.PricePrecision,
		OrderWindow:    cfg.OrderWindow,
		RecvWindow:     cfg.RecvWindow,
		RequestTimeout: cfg.RequestTimeout,
		RequestsPerSec: cfg.RequestsPerSec,
		RequestBurst:   cfg.RequestBurst,
	}, cfg.Token())

	var gateway core.Gateway = delegator
	if chaosCfg := cfg.Chaos(); chaosCfg.Enabled() {
		engine, err := chaos.NewEngine(delegator, chaosCfg)
		if err != nil {
			return err
		}
		gateway = engine
		logs.Infof("chaos enabled, timeout rate: %.3f, cancel reject rate: %.3f, max delay: %s",
			chaosCfg.TimeoutRate, chaosCfg.CancelRejectRate, chaosCfg.MaxDelay)
	}

	loop := core.NewLoop(core.LoopConfig{Cooldown: cfg.Cooldown}, gateway, feed, opts...)

	logs.Infof("quoter started, symbol: %s, stream: %s, quantity: %s, token: %s",
		cfg.Symbol, cfg.StreamName, cfg.Quantity, cfg.Token())

	return core.Supervise(ctx, loop.Run, core.WithRestartMetrics(metrics))
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("serve metrics, addr: %s, err: %+v", addr, err)
		}
	}()

	return srv
}

func logSummary(metrics *obs.Metrics) {
	snap := metrics.Snapshot()
	logs.Infof("quoter summary, restarts: %d, cycles: %d, cycle avg: %s, cycle max: %s, gateway calls: %d, gateway avg: %s, gateway max: %s",
		snap.Restarts,
		snap.CycleLatency.Count, snap.CycleLatency.Avg, snap.CycleLatency.Max,
		snap.GatewayLatency.Count, snap.GatewayLatency.Avg, snap.GatewayLatency.Max,
	)
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...any)  {}
func (profilerLogger) Debugf(format string, args ...any) {}
func (profilerLogger) Errorf(format string, args ...any) { logs.Errorf(format, args...) }
