// Package lifecycle отвечает за запуск и остановку генератора
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NGRsoftlab/nf5gen/internal/logger"
)

type pipeline interface {
	Start(ctx context.Context) error
	Stop() error
	Done() <-chan struct{}
	Err() error
}

type monitor interface {
	Start(ctx context.Context)
	Stop() error
}

// StopReason почему Run завершился
type StopReason int

const (
	ReasonNone StopReason = iota
	ReasonSignal
	ReasonDuration
	ReasonPipelineDone
	ReasonStopCalled
)

func (r StopReason) String() string {
	switch r {
	case ReasonSignal:
		return "signal"
	case ReasonDuration:
		return "duration"
	case ReasonPipelineDone:
		return "pipeline done"
	case ReasonStopCalled:
		return "stop"
	default:
		return "none"
	}
}

type Manager struct {
	pipeline pipeline
	monitor  monitor
	logger   logger.Logger
	signals  []os.Signal

	mu     sync.Mutex
	cancel context.CancelFunc
	reason StopReason
}

func NewManager(p pipeline, m monitor, log logger.Logger) *Manager {
	return &Manager{
		pipeline: p,
		monitor:  m,
		logger:   log,
		signals:  []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Run блокируется до сигнала, истечения duration, Stop или завершения пайплайна.
// Прерывание сигналом не считается ошибкой.
func (m *Manager) Run(ctx context.Context, duration time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	m.cancel = cancel
	m.reason = ReasonNone
	m.mu.Unlock()

	stopSignals := m.setupSignalHandling(ctx)
	defer stopSignals()

	if duration > 0 {
		m.setupTimerDuration(ctx, duration)
	}

	monitorDone := make(chan struct{})
	if m.monitor != nil {
		go func() {
			defer close(monitorDone)
			m.monitor.Start(ctx)
		}()
	} else {
		close(monitorDone)
	}

	m.logger.Info("Starting pipeline...")
	if err := m.pipeline.Start(ctx); err != nil {
		m.logger.Error("Pipeline error: %v", err)
		cancel()
		_ = m.stopMonitor(monitorDone)
		return err
	}

	select {
	case <-ctx.Done():
		m.logger.Info("Shutdown requested: %v", m.Reason())
	case <-m.pipeline.Done():
		m.setReason(ReasonPipelineDone)
		m.logger.Warn("All stages exited")
	}

	m.logger.Info("Stopping pipeline...")
	var runErr error
	if err := m.pipeline.Stop(); err != nil {
		m.logger.Error("Error stopping pipeline: %v", err)
		runErr = err
	}
	if err := m.pipeline.Err(); err != nil && !errors.Is(err, context.Canceled) && runErr == nil {
		runErr = err
	}

	cancel()
	m.logger.Info("Stopping monitor...")
	if err := m.stopMonitor(monitorDone); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}

// Stop инициирует остановку запущенного Run
func (m *Manager) Stop() {
	m.requestStop(ReasonStopCalled)
}

// Reason первая причина остановки последнего Run
func (m *Manager) Reason() StopReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

func (m *Manager) setReason(r StopReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reason == ReasonNone {
		m.reason = r
	}
}

func (m *Manager) requestStop(r StopReason) {
	m.setReason(r)
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) stopMonitor(done <-chan struct{}) error {
	if m.monitor == nil {
		return nil
	}
	err := m.monitor.Stop()
	if err != nil {
		m.logger.Error("Error stopping monitor: %v", err)
	}
	<-done
	return err
}

func (m *Manager) setupSignalHandling(ctx context.Context) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)

	go func() {
		select {
		case sig := <-sigChan:
			m.logger.Info("Received signal: %v, initiating graceful shutdown...", sig)
			m.requestStop(ReasonSignal)
		case <-ctx.Done():
		}
	}()

	return func() { signal.Stop(sigChan) }
}

func (m *Manager) setupTimerDuration(ctx context.Context, duration time.Duration) {
	m.logger.Info("Application will run for: %v", duration)

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()

		select {
		case <-timer.C:
			m.logger.Info("Duration reached, initiating shutdown...")
			m.requestStop(ReasonDuration)
		case <-ctx.Done():
			// контекст отменен в другом месте
		}
	}()
}
