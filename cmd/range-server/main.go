package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/cyberrange-simulator/core"
	"github.com/signalsfoundry/cyberrange-simulator/internal/config"
	"github.com/signalsfoundry/cyberrange-simulator/internal/hub"
	"github.com/signalsfoundry/cyberrange-simulator/internal/logging"
	"github.com/signalsfoundry/cyberrange-simulator/internal/observability"
	"github.com/signalsfoundry/cyberrange-simulator/internal/sched"
	sim "github.com/signalsfoundry/cyberrange-simulator/internal/sim/state"
	"github.com/signalsfoundry/cyberrange-simulator/model"
	"github.com/signalsfoundry/cyberrange-simulator/timectrl"
	"github.com/signalsfoundry/cyberrange-simulator/topology"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file")
	listenAddr := flag.String("listen-addr", "", "Override for the HTTP/websocket listen address")
	metricsAddr := flag.String("metrics-addr", "", "Override for the Prometheus /metrics address")
	topologyPath := flag.String("topology", "", "Override for the topology template file")
	flag.Parse()

	bootLog := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Error(ctx, "failed to load configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if *topologyPath != "" {
		cfg.Server.Topology = *topologyPath
	}

	log := logging.New(logging.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		AddSource:     true,
		File:          cfg.Logging.File,
		FileMaxSizeMB: cfg.Logging.FileMaxSizeMB,
	})

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewRangeCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	template := loadTopology(log, cfg.Server.Topology)

	st := sim.New(
		topology.NewStore(template),
		log,
		sim.WithMetricsRecorder(collector),
	)

	controller := timectrl.NewTimeController(time.Now(), 100*time.Millisecond, timectrl.RealTime)
	scheduler := sched.New(controller)
	controller.AddListener(func(time.Time) {
		scheduler.RunDue()
	})

	h := hub.New(log, collector)
	engine := core.NewEngine(st, scheduler, controller, h, template, core.Config{
		ScanRevertDelay: cfg.Sim.ScanRevertDelay,
		AttackDelay:     cfg.Sim.AttackDelay,
		ExpiryDelay:     cfg.Sim.ExpiryDelay,
		PatchReward:     cfg.Sim.PatchReward,
		AttackPenalty:   cfg.Sim.AttackPenalty,
	}, log)
	h.SetEngine(engine)

	controller.Start(0)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	if cfg.Server.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: mux,
	}

	log.Info(ctx, "starting range server",
		logging.String("addr", cfg.Server.ListenAddr),
		logging.Int("nodes", len(template)),
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "range server exited", logging.String("error", err.Error()))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down range server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func serveMetrics(addr string, collector *observability.RangeCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func loadTopology(log logging.Logger, path string) []model.Node {
	if path == "" {
		return topology.DefaultTemplate()
	}

	nodes, err := topology.LoadTemplate(path)
	if err != nil {
		log.Warn(context.Background(), "falling back to built-in topology",
			logging.String("path", path),
			logging.String("error", err.Error()),
		)
		return topology.DefaultTemplate()
	}

	log.Info(context.Background(), "loaded topology template",
		logging.String("path", path),
		logging.Int("count", len(nodes)),
	)
	return nodes
}
