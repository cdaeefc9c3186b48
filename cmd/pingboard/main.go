package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	config "github.com/NordCoder/pingboard/internal/config/pingboard"
	"github.com/NordCoder/pingboard/internal/obs"
	"github.com/NordCoder/pingboard/internal/repository/kafka"
	"github.com/NordCoder/pingboard/internal/services/api"
	"github.com/NordCoder/pingboard/internal/services/console"
	"github.com/NordCoder/pingboard/internal/services/events"
	"github.com/NordCoder/pingboard/internal/services/monitor"
	"github.com/NordCoder/pingboard/internal/services/prober"
)

func main() {
	cfgPath := flag.String("config", "config/pingboard.yaml", "path to the YAML config; empty uses defaults and env")
	flag.Parse()

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, level, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	// only the log level is applied live; other keys need a restart
	if _, err := config.Watch(*cfgPath,
		func(next *config.Config) {
			if lvl := obs.ParseLevel(next.Log.Level); lvl != level.Level() {
				level.SetLevel(lvl)
				l.Info("log level changed", zap.Stringer("level", lvl))
			}
		},
		func(err error) { l.Warn("config reload rejected", zap.Error(err)) },
	); err != nil {
		l.Fatal("config watch", zap.Error(err))
	}

	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig(cfg.Log))
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	store, health, err := initStore(root, cfg.Store, l)
	if err != nil {
		l.Fatal("store init", zap.Error(err))
	}

	reg := prometheus.NewRegistry()

	mon := monitor.New(monitor.Options{
		Log:             l,
		Prober:          prober.New(cfg.Probe, l),
		Store:           store,
		Sink:            initSink(cfg.Notify, l),
		Registerer:      reg,
		ProbeTimeout:    cfg.Probe.Timeout,
		NotifyTimeout:   cfg.Monitor.NotifyTimeout,
		DefaultInterval: cfg.Monitor.DefaultInterval,
	})

	// the default registry carries the runtime collectors and retry counters
	gatherers := prometheus.Gatherers{reg, prometheus.DefaultGatherer}
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, gatherers, health, l)

	apiSrv := api.NewHTTPServer(cfg.API.Addr, api.NewServer(mon, l, api.Options{
		AdminKeyHash: cfg.API.AdminKeyHash,
		RateLimit:    cfg.API.RateLimit,
		RateBurst:    cfg.API.RateBurst,
		CORSOrigins:  cfg.API.CORSOrigins,
	}).Router())

	g, ctx := errgroup.WithContext(root)

	var prod *kafka.Producer
	if cfg.Kafka.Enable {
		prod = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, l)
		tr := events.NewTransitions(prod, mon, l, 0)
		unsubscribe := mon.Subscribe(tr.Observe)
		defer unsubscribe()
		g.Go(func() error { return tr.Run(ctx) })
	}

	if err := mon.Start(ctx); err != nil {
		l.Fatal("monitor start", zap.Error(err))
	}

	g.Go(func() error {
		l.Info("api listening", zap.String("addr", cfg.API.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Console.Enable {
		g.Go(func() error { return console.New(mon, os.Stdout, cfg.Console.Refresh, true).Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return multierr.Combine(apiSrv.Shutdown(shCtx), ms.Shutdown(shCtx))
	})

	if err := g.Wait(); err != nil {
		l.Error("run", zap.Error(err))
	}

	mon.Close()
	var closeErr error
	if prod != nil {
		closeErr = multierr.Append(closeErr, prod.Close())
	}
	closeErr = multierr.Append(closeErr, store.Close())
	if closeErr != nil {
		l.Warn("close", zap.Error(closeErr))
	}
	l.Info("bye")
}
