package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NGRsoftlab/nf5gen/internal/cli"
	"github.com/NGRsoftlab/nf5gen/internal/config"
	"github.com/NGRsoftlab/nf5gen/internal/enrichment"
	"github.com/NGRsoftlab/nf5gen/internal/lifecycle"
	"github.com/NGRsoftlab/nf5gen/internal/logger"
	"github.com/NGRsoftlab/nf5gen/internal/metrics"
	"github.com/NGRsoftlab/nf5gen/internal/monitoring"
	"github.com/NGRsoftlab/nf5gen/internal/pipeline/coordinator"
	"github.com/NGRsoftlab/nf5gen/internal/pipeline/factory"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const metricsShutdownTimeout = 2 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	parser := cli.NewParser(fmt.Sprintf("%s (built %s)", Version, BuildTime))
	res, err := parser.Parse(args)
	if err != nil {
		return errors.Wrap(err, "failed to parse CLI flags")
	}

	switch res.Command {
	case cli.CommandRun:
		return runGenerator(res.Run)
	case cli.CommandGenerate:
		return generateEnrichment(res.Generate)
	default:
		return nil
	}
}

func runGenerator(flags *config.Flags) error {
	cfg, err := config.LoadConfig(flags.ConfigFile, flags)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	runID := uuid.NewString()
	zl, syncLog, err := logger.NewZapLogger(logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	defer syncLog(context.Background())
	log := zl.With("run_id", runID)

	printConfigInfo(log, cfg, flags.ConfigFile)

	pool, err := enrichment.LoadFile(cfg.EnrichmentFile, log)
	if err != nil {
		return errors.Wrap(err, "failed to load enrichment pool")
	}

	m := metrics.GetGlobalMetrics()

	if cfg.Metrics.Listen != "" {
		stop, err := serveMetrics(cfg.Metrics.Listen, m, runID, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	f := factory.NewPipelineFactory(cfg, pool, m, log)
	pipeline, err := f.CreatePipeline()
	if err != nil {
		return errors.Wrap(err, "failed to build pipeline")
	}

	mon := monitoring.NewMonitor(cfg.Metrics.Interval, m, log)
	manager := lifecycle.NewManager(pipeline, mon, log)

	err = manager.Run(context.Background(), cfg.Duration)
	if errors.Is(err, coordinator.ErrShutdownTimeout) {
		// зависшие стадии бросаются, процесс все равно завершается
		log.Warn("Forced exit: %v", err)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "application failed")
	}

	log.Info("Stopped (%v)", manager.Reason())
	return nil
}

func serveMetrics(addr string, m *metrics.PerformanceMetrics, runID string, log logger.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg, m, runID); err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Metrics listening on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server failed: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func generateEnrichment(flags *cli.GenerateFlags) error {
	zl, syncLog, err := logger.NewZapLogger(logger.Config{Level: flags.LogLevel})
	if err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	defer syncLog(context.Background())

	network, err := netip.ParsePrefix(flags.Network)
	if err != nil {
		return errors.Wrapf(err, "invalid network %q", flags.Network)
	}

	opts := enrichment.GenerateOptions{
		Network: network,
		Entries: flags.Entries,
		Logger:  zl,
	}
	if flags.Extended {
		opts.Categories = enrichment.DefaultCategories()
	}
	if flags.SeedSet {
		opts.Rand = rand.New(rand.NewPCG(flags.Seed, flags.Seed))
	}

	if _, err := enrichment.GenerateFile(flags.Out, opts); err != nil {
		return errors.Wrap(err, "failed to generate enrichment file")
	}
	return nil
}

// printConfigInfo выводит загруженную конфигурацию
func printConfigInfo(log logger.Logger, cfg *config.Config, configFile string) {
	if configFile != "" {
		log.Info("Config source: %s + environment + CLI flags", configFile)
	} else {
		log.Info("Config source: defaults + environment + CLI flags")
	}

	log.Info("Generator: %d packets/sec, %d exporters from %s", cfg.FlowsPerSecond, cfg.NumberOfExporters, cfg.SourcePacketSubnet)
	log.Info("Records: destinations from %s, enrichment %s", cfg.DestinationIPSubnet, cfg.EnrichmentFile)
	log.Info("Collector: %s via %s transport", cfg.CollectorEndpoint(), cfg.Transport)

	if cfg.Duration > 0 {
		log.Info("Duration: %v", cfg.Duration)
	} else {
		log.Info("Duration: unlimited")
	}
}
