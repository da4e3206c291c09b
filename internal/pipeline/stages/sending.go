package stages

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/NGRsoftlab/nf5gen/internal/logger"
	"github.com/NGRsoftlab/nf5gen/internal/network"
)

// SendingStage забирает пакеты из очереди и отдает их транспорту по одному в FIFO порядке
type SendingStage struct {
	sender  network.Sender
	metrics MetricsCollector
	logger  logger.Logger
	errLog  rate.Sometimes

	sent   uint64
	failed uint64
}

func NewSendingStage(sender network.Sender, metrics MetricsCollector, log logger.Logger) (*SendingStage, error) {
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	return &SendingStage{
		sender:  sender,
		metrics: metrics,
		logger:  log,
		errLog:  rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}, nil
}

// Run отправляет до отмены ctx или закрытия in; оставшиеся в очереди пакеты не дочитываются.
// Транспорт закрывается на выходе.
func (s *SendingStage) Run(ctx context.Context, in <-chan []byte, _ chan<- []byte, ready chan<- bool) error {
	defer func() {
		if err := s.sender.Close(); err != nil {
			s.logger.Warn("Failed to close sender: %v", err)
		}
	}()

	if healthy, msg := s.sender.IsHealthy(); !healthy {
		s.logger.Warn("Sender is not healthy at start: %s", msg)
	}
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case pkt, ok := <-in:
			if !ok {
				return nil
			}
			// select выбирает случайно среди готовых case, отмена проверяется до отправки
			if err := ctx.Err(); err != nil {
				return err
			}
			s.send(pkt)
		}
	}
}

func (s *SendingStage) send(pkt []byte) {
	if err := s.sender.Send(pkt); err != nil {
		atomic.AddUint64(&s.failed, 1)
		s.metrics.IncrementFailed()
		s.errLog.Do(func() {
			s.logger.Error("Failed to send packet: %v", err)
		})
		return
	}
	atomic.AddUint64(&s.sent, 1)
	s.metrics.AddSent(len(pkt))
}

func (s *SendingStage) GetStageStats() StageMetrics {
	return StageMetrics{
		Name:      "sending",
		Processed: atomic.LoadUint64(&s.sent),
		Errors:    atomic.LoadUint64(&s.failed),
	}
}

func (s *SendingStage) IsHealthy() (bool, string) {
	return s.sender.IsHealthy()
}

// SenderStats статистика транспорта
func (s *SendingStage) SenderStats() map[string]any {
	return s.sender.GetStats()
}
