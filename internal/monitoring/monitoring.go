// Package monitoring периодически пишет в лог скорость и счетчики генератора
package monitoring

import (
	"context"
	"time"

	"golang.org/x/text/message"

	"github.com/NGRsoftlab/nf5gen/internal/logger"
	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

type Monitor interface {
	Start(ctx context.Context)
	Stop() error
}

// MonitorImp периодически выводит статистику
type MonitorImp struct {
	interval time.Duration
	metrics  *metrics.PerformanceMetrics
	stopChan chan struct{}
	logger   logger.Logger
	printer  *message.Printer

	prevTime    time.Time
	prevSent    uint64
	prevBytes   uint64
	prevDropped uint64
}

func NewMonitor(interval time.Duration, m *metrics.PerformanceMetrics, log logger.Logger) *MonitorImp {
	if m == nil {
		m = metrics.GetGlobalMetrics()
	}
	return &MonitorImp{
		interval: interval,
		metrics:  m,
		stopChan: make(chan struct{}),
		logger:   log,
		printer:  message.NewPrinter(message.MatchLanguage("en")),
	}
}

// Start блокируется до отмены ctx или Stop
func (m *MonitorImp) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.prevTime = time.Now()
	m.logger.Info("Monitor запущен: интервал %v", m.interval)

	for {
		select {
		case now := <-ticker.C:
			m.logger.Info("%s", m.report(now))

		case <-ctx.Done():
			m.logger.Info("Monitor остановлен")
			m.printFinalStats()
			return

		case <-m.stopChan:
			m.logger.Info("Monitor остановлен (stop signal)")
			m.printFinalStats()
			return
		}
	}
}

func (m *MonitorImp) Stop() error {
	select {
	case <-m.stopChan:

	default:
		close(m.stopChan)
	}
	return nil
}

// report строка со скоростью за интервал с прошлого вызова
func (m *MonitorImp) report(now time.Time) string {
	stats := m.metrics.GetDetailedStats()

	elapsed := now.Sub(m.prevTime).Seconds()
	if elapsed <= 0 {
		elapsed = m.interval.Seconds()
	}
	pps := uint64(float64(stats.Sent-m.prevSent)/elapsed + 0.5)
	mbps := float64((stats.BytesSent-m.prevBytes)*8) / elapsed / 1e6
	drops := stats.Dropped - m.prevDropped

	m.prevTime = now
	m.prevSent = stats.Sent
	m.prevBytes = stats.BytesSent
	m.prevDropped = stats.Dropped

	return m.printer.Sprintf("%d pkts/s, %.2f Mbps | sent %d, dropped %d (+%d), failed %d | seq %d",
		pps, mbps, stats.Sent, stats.Dropped, drops, stats.Failed, stats.LastSequence)
}

func (m *MonitorImp) printFinalStats() {
	stats := m.metrics.GetDetailedStats()
	m.logger.Info("=== ФИНАЛЬНАЯ СТАТИСТИКА ===")
	m.logger.Info("%s", m.metrics.String())
	m.logger.Info("%s", m.printer.Sprintf("Bytes sent: %d | Invalid sources: %d | Uptime: %v",
		stats.BytesSent, stats.InvalidSources, stats.Uptime.Round(time.Millisecond)))
}
