// Package factory provides utilities to construct and configure
// the packet generation pipeline from application configuration.
package factory

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"strings"
	"time"

	"github.com/NGRsoftlab/nf5gen/internal/config"
	"github.com/NGRsoftlab/nf5gen/internal/domain/netflow"
	"github.com/NGRsoftlab/nf5gen/internal/domain/subnet"
	"github.com/NGRsoftlab/nf5gen/internal/logger"
	"github.com/NGRsoftlab/nf5gen/internal/metrics"
	"github.com/NGRsoftlab/nf5gen/internal/network"
	"github.com/NGRsoftlab/nf5gen/internal/pipeline/coordinator"
	"github.com/NGRsoftlab/nf5gen/internal/pipeline/stages"
)

const udpWriteTimeout = time.Second

type PipelineFactory struct {
	cfg     *config.Config
	sources netflow.AddressSource
	metrics *metrics.PerformanceMetrics
	logger  logger.Logger
	rng     *rand.Rand
}

// NewPipelineFactory sources - enrichment пул, из которого берутся SrcAddr записей
func NewPipelineFactory(cfg *config.Config, sources netflow.AddressSource, m *metrics.PerformanceMetrics, log logger.Logger) *PipelineFactory {
	if m == nil {
		m = metrics.GetGlobalMetrics()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PipelineFactory{
		cfg:     cfg,
		sources: sources,
		metrics: m,
		logger:  log,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// calculateBufferSize очередь вмещает не больше секунды трафика
func (f *PipelineFactory) calculateBufferSize() int {
	return max(f.cfg.FlowsPerSecond, 1)
}

func (f *PipelineFactory) CreatePipeline() (coordinator.Pipeline, error) {
	pipeline := coordinator.NewPipeline(
		f.calculateBufferSize(),
		coordinator.WithShutdownGrace(f.cfg.ShutdownGrace),
		coordinator.WithLogger(f.logger),
	)

	genStage, err := f.createGenerationStage()
	if err != nil {
		return nil, fmt.Errorf("failed to create generation stage: %w", err)
	}

	sendStage, err := f.createSendingStage()
	if err != nil {
		return nil, fmt.Errorf("failed to create sending stage: %w", err)
	}

	if err := pipeline.AddStage(genStage); err != nil {
		return nil, fmt.Errorf("failed to add generation stage: %w", err)
	}

	if err := pipeline.AddStage(sendStage); err != nil {
		return nil, fmt.Errorf("failed to add sending stage: %w", err)
	}

	return pipeline, nil
}

// ExporterPool первые number_of_exporters хостов source_packet_subnet
func (f *PipelineFactory) ExporterPool() ([]netip.Addr, error) {
	prefix, err := f.cfg.SourcePrefix()
	if err != nil {
		return nil, err
	}
	exporters, err := subnet.Hosts(prefix, f.cfg.NumberOfExporters)
	if err != nil {
		return nil, fmt.Errorf("failed to build exporter pool: %w", err)
	}
	if len(exporters) < f.cfg.NumberOfExporters {
		f.logger.Warn("source_packet_subnet %s has only %d hosts, number_of_exporters=%d truncated",
			prefix, len(exporters), f.cfg.NumberOfExporters)
	}
	return exporters, nil
}

// InitialSequence initial_flow_sequence из конфига или случайное значение
func (f *PipelineFactory) InitialSequence() uint32 {
	if f.cfg.InitialFlowSequence != nil {
		return *f.cfg.InitialFlowSequence
	}
	return f.rng.Uint32()
}

func (f *PipelineFactory) createGenerationStage() (coordinator.Stage, error) {
	if f.sources == nil {
		return nil, fmt.Errorf("enrichment pool is required")
	}

	exporters, err := f.ExporterPool()
	if err != nil {
		return nil, err
	}
	dst, err := f.cfg.DestinationPrefix()
	if err != nil {
		return nil, err
	}
	collector, err := f.cfg.CollectorAddr()
	if err != nil {
		return nil, err
	}

	synth, err := netflow.NewSynthesizer(f.sources, dst, rand.New(rand.NewPCG(f.rng.Uint64(), f.rng.Uint64())), f.cfg.ComputeChecksums)
	if err != nil {
		return nil, err
	}

	return stages.NewGenerationStage(
		stages.GenerationConfig{
			Rate:            f.cfg.FlowsPerSecond,
			Exporters:       exporters,
			Collector:       collector,
			InitialSequence: f.InitialSequence(),
		},
		synth,
		rand.New(rand.NewPCG(f.rng.Uint64(), f.rng.Uint64())),
		f.metrics,
		f.logger,
	)
}

func (f *PipelineFactory) createSendingStage() (coordinator.Stage, error) {
	sender, err := f.CreateSender()
	if err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}

	stage, err := stages.NewSendingStage(sender, f.metrics, f.logger)
	if err != nil {
		sender.Close()
		return nil, err
	}
	return stage, nil
}

// CreateSender открывает транспорт по config.transport
func (f *PipelineFactory) CreateSender() (network.Sender, error) {
	switch strings.ToLower(f.cfg.Transport) {
	case config.TransportRaw:
		collector, err := f.cfg.CollectorAddr()
		if err != nil {
			return nil, err
		}
		return network.NewRawSender(netip.AddrPortFrom(collector, uint16(f.cfg.CollectorPort)), f.metrics)
	case config.TransportUDP:
		return network.NewUDPSender(f.cfg.CollectorEndpoint(), udpWriteTimeout, f.metrics)
	case config.TransportPcap:
		return network.NewPcapSender(f.cfg.PcapFile, f.metrics)
	default:
		return nil, fmt.Errorf("unsupported transport: %s", f.cfg.Transport)
	}
}
