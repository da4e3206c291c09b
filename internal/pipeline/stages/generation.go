package stages

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/netip"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/NGRsoftlab/nf5gen/internal/domain/netflow"
	"github.com/NGRsoftlab/nf5gen/internal/logger"
	"github.com/NGRsoftlab/nf5gen/internal/ratelimit"
)

// GenerationConfig параметры стадии генерации
type GenerationConfig struct {
	// Rate пакетов в секунду, он же размер token bucket
	Rate      int
	Exporters []netip.Addr
	Collector netip.Addr
	// InitialSequence номер первого пакета
	InitialSequence uint32
	// EnqueueTimeout 0 - DefaultEnqueueTimeout
	EnqueueTimeout time.Duration
	// Now часы для token bucket; nil - time.Now
	Now func() time.Time
}

// GenerationStage собирает пакеты с заданной скоростью и кладет их в очередь.
// При полной очереди пакет дропается, стадия никогда не блокируется надолго.
type GenerationStage struct {
	bucket         *ratelimit.TokenBucket
	synth          *netflow.Synthesizer
	exporters      []netip.Addr
	collector      netip.Addr
	rng            *rand.Rand
	sequence       uint32
	enqueueTimeout time.Duration

	metrics MetricsCollector
	logger  logger.Logger

	dropLog      rate.Sometimes
	integrityLog rate.Sometimes

	generated uint64
	dropped   uint64
	failed    uint64
}

func NewGenerationStage(
	cfg GenerationConfig,
	synth *netflow.Synthesizer,
	rng *rand.Rand,
	metrics MetricsCollector,
	log logger.Logger,
) (*GenerationStage, error) {
	if cfg.Rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", cfg.Rate)
	}
	if len(cfg.Exporters) == 0 {
		return nil, errors.New("exporter pool is empty")
	}
	if !cfg.Collector.Is4() {
		return nil, fmt.Errorf("collector must be IPv4, got %s", cfg.Collector)
	}
	if synth == nil {
		return nil, errors.New("synthesizer is required")
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.EnqueueTimeout
	if timeout <= 0 {
		timeout = DefaultEnqueueTimeout
	}

	return &GenerationStage{
		bucket:         ratelimit.NewTokenBucketWithClock(cfg.Rate, now),
		synth:          synth,
		exporters:      cfg.Exporters,
		collector:      cfg.Collector,
		rng:            rng,
		sequence:       cfg.InitialSequence,
		enqueueTimeout: timeout,
		metrics:        metrics,
		logger:         log,
		dropLog:        rate.Sometimes{First: 1, Interval: 5 * time.Second},
		integrityLog:   rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}, nil
}

// Run крутит цикл token bucket до отмены ctx. in не используется.
func (g *GenerationStage) Run(ctx context.Context, _ <-chan []byte, out chan<- []byte, ready chan<- bool) error {
	if ready != nil {
		close(ready)
	}

	g.logger.Info("Generation started: rate=%d pps, exporters=%d, first sequence=%d",
		g.bucket.Rate(), len(g.exporters), g.sequence)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if g.bucket.Refill() <= 0 {
			time.Sleep(emptyBucketSleep)
			continue
		}

		exporter := g.exporters[g.rng.IntN(len(g.exporters))]
		seq := g.nextSequence()

		start := time.Now()
		pkt, err := g.synth.BuildPacket(exporter, g.collector, seq)
		if err != nil {
			g.handleBuildError(err)
			time.Sleep(emptyBucketSleep)
			continue
		}
		g.metrics.RecordProcessingTime(time.Since(start))

		if g.enqueue(ctx, out, pkt) {
			g.bucket.Take()
			atomic.AddUint64(&g.generated, 1)
			g.metrics.IncrementGenerated()
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		atomic.AddUint64(&g.dropped, 1)
		g.metrics.IncrementDropped()
		g.dropLog.Do(func() {
			g.logger.Warn("Send queue full, dropping packets (sequence %d, dropped so far %d)",
				seq, atomic.LoadUint64(&g.dropped))
		})
	}
}

// nextSequence номер для очередной попытки, растет и при дропах, переполняется через 2^32
func (g *GenerationStage) nextSequence() uint32 {
	seq := g.sequence
	g.sequence++
	g.metrics.SetLastSequence(seq)
	return seq
}

// enqueue ждет место в очереди не дольше enqueueTimeout
func (g *GenerationStage) enqueue(ctx context.Context, out chan<- []byte, pkt []byte) bool {
	select {
	case out <- pkt:
		return true
	default:
	}

	timer := time.NewTimer(g.enqueueTimeout)
	defer timer.Stop()

	select {
	case out <- pkt:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (g *GenerationStage) handleBuildError(err error) {
	atomic.AddUint64(&g.failed, 1)
	g.metrics.IncrementFailed()

	if errors.Is(err, netflow.ErrInvalidSource) {
		g.metrics.IncrementInvalidSource()
		g.integrityLog.Do(func() {
			g.logger.Warn("Enrichment pool integrity violation, packet skipped: %v", err)
		})
		return
	}
	g.integrityLog.Do(func() {
		g.logger.Error("Failed to build packet: %v", err)
	})
}

func (g *GenerationStage) GetStageStats() StageMetrics {
	return StageMetrics{
		Name:      "generation",
		Processed: atomic.LoadUint64(&g.generated),
		Errors:    atomic.LoadUint64(&g.failed),
		Dropped:   atomic.LoadUint64(&g.dropped),
	}
}
