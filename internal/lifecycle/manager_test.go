package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGRsoftlab/nf5gen/internal/logger"
)

// --- Mocks ---

type mockPipeline struct {
	startErr error
	stopErr  error
	runErr   error

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
	once    sync.Once
}

func newMockPipeline() *mockPipeline {
	return &mockPipeline{done: make(chan struct{})}
}

func (p *mockPipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	if p.startErr != nil {
		return p.startErr
	}
	go func() {
		<-ctx.Done()
		p.finish()
	}()
	return nil
}

func (p *mockPipeline) finish() {
	p.once.Do(func() { close(p.done) })
}

func (p *mockPipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return p.stopErr
}

func (p *mockPipeline) Done() <-chan struct{} { return p.done }

func (p *mockPipeline) Err() error { return p.runErr }

func (p *mockPipeline) WasStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *mockPipeline) WasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type mockMonitor struct {
	stopErr error

	mu      sync.Mutex
	started bool
	stopped bool
}

// Start блокируется до отмены ctx, как настоящий монитор
func (m *mockMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	<-ctx.Done()
}

func (m *mockMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return m.stopErr
}

func (m *mockMonitor) WasStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *mockMonitor) WasStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func runAsync(m *Manager, duration time.Duration) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(context.Background(), duration) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

// --- Tests ---

func TestManager_Run_Duration(t *testing.T) {
	p := newMockPipeline()
	mon := &mockMonitor{}
	manager := NewManager(p, mon, logger.NewNopLogger())

	err := manager.Run(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, p.WasStarted())
	assert.True(t, p.WasStopped())
	assert.True(t, mon.WasStarted())
	assert.True(t, mon.WasStopped())
	assert.Equal(t, ReasonDuration, manager.Reason())
}

func TestManager_Run_PipelineStartError(t *testing.T) {
	expected := errors.New("pipeline failed")
	p := newMockPipeline()
	p.startErr = expected
	mon := &mockMonitor{}

	manager := NewManager(p, mon, logger.NewNopLogger())
	err := manager.Run(context.Background(), 0)

	assert.ErrorIs(t, err, expected)
	assert.True(t, mon.WasStopped(), "monitor.Stop should be called even on error")
}

func TestManager_Stop_External(t *testing.T) {
	p := newMockPipeline()
	mon := &mockMonitor{}
	manager := NewManager(p, mon, logger.NewNopLogger())

	errCh := runAsync(manager, 0)
	require.Eventually(t, p.WasStarted, time.Second, time.Millisecond)

	manager.Stop()

	require.NoError(t, waitErr(t, errCh))
	assert.True(t, p.WasStopped())
	assert.True(t, mon.WasStopped())
	assert.Equal(t, ReasonStopCalled, manager.Reason())
}

func TestManager_ParentContextCancel(t *testing.T) {
	p := newMockPipeline()
	manager := NewManager(p, nil, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- manager.Run(ctx, 0) }()

	require.Eventually(t, p.WasStarted, time.Second, time.Millisecond)
	cancel()

	require.NoError(t, waitErr(t, errCh))
	assert.True(t, p.WasStopped())
}

func TestManager_PipelineFinishesOnItsOwn(t *testing.T) {
	stageErr := errors.New("transport broken")
	p := newMockPipeline()
	p.runErr = stageErr
	manager := NewManager(p, &mockMonitor{}, logger.NewNopLogger())

	errCh := runAsync(manager, 0)
	require.Eventually(t, p.WasStarted, time.Second, time.Millisecond)
	p.finish()

	assert.ErrorIs(t, waitErr(t, errCh), stageErr)
	assert.Equal(t, ReasonPipelineDone, manager.Reason())
}

func TestManager_CanceledStageErrorIgnored(t *testing.T) {
	p := newMockPipeline()
	p.runErr = context.Canceled
	manager := NewManager(p, &mockMonitor{}, logger.NewNopLogger())

	assert.NoError(t, manager.Run(context.Background(), 10*time.Millisecond))
}

func TestManager_Run_PipelineStopErrorPriority(t *testing.T) {
	pipelineStopErr := errors.New("pipeline stop failed")

	p := newMockPipeline()
	p.stopErr = pipelineStopErr
	mon := &mockMonitor{stopErr: errors.New("monitor stop failed")}

	manager := NewManager(p, mon, logger.NewNopLogger())
	err := manager.Run(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, pipelineStopErr)
}

func TestManager_Run_MonitorStopErrorWhenPipelineOK(t *testing.T) {
	monitorStopErr := errors.New("monitor stop failed")

	manager := NewManager(newMockPipeline(), &mockMonitor{stopErr: monitorStopErr}, logger.NewNopLogger())
	err := manager.Run(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, monitorStopErr)
}

func TestStopReason_String(t *testing.T) {
	assert.Equal(t, "signal", ReasonSignal.String())
	assert.Equal(t, "duration", ReasonDuration.String())
	assert.Equal(t, "none", StopReason(99).String())
}
