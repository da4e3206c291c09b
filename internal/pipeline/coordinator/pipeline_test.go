package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Мок Stage ---

type mockStage struct {
	runFn func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error
}

func (m *mockStage) Run(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
	if m.runFn != nil {
		return m.runFn(ctx, in, out, ready)
	}
	// По умолчанию: только сигнал готовности
	close(ready)
	return nil
}

// --- Хелперы для моков ---

func newReadyOnlyStage() *mockStage {
	return &mockStage{}
}

func newPassThroughStage() *mockStage {
	return &mockStage{
		runFn: func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
			close(ready)
			for data := range in {
				select {
				case out <- data:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		},
	}
}

func newStageThatWaitsForCancel() *mockStage {
	return &mockStage{
		runFn: func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		},
	}
}

// newStuckStage игнорирует отмену до release
func newStuckStage(release <-chan struct{}) *mockStage {
	return &mockStage{
		runFn: func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
			close(ready)
			<-release
			return nil
		},
	}
}

// --- Тесты ---

func TestPipeline_Lifecycle(t *testing.T) {
	p := NewPipeline(10)
	assert.Equal(t, Stopped, p.GetStatus())

	err := p.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Running, p.GetStatus())

	err = p.Stop()
	require.NoError(t, err)
	assert.Equal(t, Stopped, p.GetStatus())
}

func TestPipeline_AddStage_OnlyWhenStopped(t *testing.T) {
	p := NewPipeline(10)
	stage := newReadyOnlyStage()

	require.NoError(t, p.AddStage(stage))
	require.NoError(t, p.Start(context.Background()))

	// Нельзя добавить в Running
	err := p.AddStage(stage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot add stage")

	p.Stop()
}

func TestPipeline_AddStage_Nil(t *testing.T) {
	p := NewPipeline(10)
	assert.Error(t, p.AddStage(nil))
}

func TestPipeline_Start_OnlyWhenStopped(t *testing.T) {
	p := NewPipeline(10)

	require.NoError(t, p.Start(context.Background()))

	err := p.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot start")

	p.Stop()
}

func TestPipeline_Stop_OnlyWhenRunning(t *testing.T) {
	p := NewPipeline(10)

	err := p.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot stop")

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop())

	err = p.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot stop")
}

func TestPipeline_CreateChannels(t *testing.T) {
	p := NewPipeline(5)

	for i := 0; i < 3; i++ {
		p.AddStage(newReadyOnlyStage())
	}

	impl := p.(*pipelineImpl)
	impl.createChannels()

	assert.Len(t, impl.channels, 2) // 3 стадии → 2 канала
	for _, ch := range impl.channels {
		assert.NotNil(t, ch)
		assert.Equal(t, 5, cap(ch))
	}
}

func TestPipeline_ZeroStages(t *testing.T) {
	p := NewPipeline(10)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, Running, p.GetStatus())

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("pipeline without stages should be done immediately")
	}
	require.NoError(t, p.Stop())
}

func TestPipeline_DataFlow_ThroughTwoStages(t *testing.T) {
	p := NewPipeline(10)

	producer := &mockStage{
		runFn: func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
			close(ready)
			for i := range 5 {
				select {
				case out <- []byte{byte(i)}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			<-ctx.Done()
			return ctx.Err()
		},
	}

	p.AddStage(producer)
	p.AddStage(newPassThroughStage())

	require.NoError(t, p.Start(context.Background()))

	out := p.(*pipelineImpl).outputChan
	for i := range 5 {
		select {
		case data := <-out:
			assert.Equal(t, []byte{byte(i)}, data, "FIFO order")
		case <-time.After(time.Second):
			t.Fatalf("timeout on item %d", i)
		}
	}

	require.NoError(t, p.Stop())
	assert.NoError(t, p.Err())
}

func TestPipeline_Stop_CancelsStages(t *testing.T) {
	p := NewPipeline(10)
	p.AddStage(newStageThatWaitsForCancel())
	p.AddStage(newStageThatWaitsForCancel())

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, p.Stop())
	assert.NoError(t, p.Err(), "cancellation is not a stage error")
}

func TestPipeline_Stop_ClosesFirstStageInput(t *testing.T) {
	p := NewPipeline(10, WithShutdownGrace(time.Second))
	closed := make(chan struct{})
	p.AddStage(&mockStage{
		runFn: func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
			close(ready)
			for range in {
			}
			close(closed)
			return nil
		},
	})

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop())

	select {
	case <-closed:
	default:
		t.Fatal("first stage input was not closed on Stop")
	}
}

func TestPipeline_ParentContextCancel(t *testing.T) {
	p := NewPipeline(10)
	p.AddStage(newStageThatWaitsForCancel())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))

	cancel()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("stages should exit when the parent context is cancelled")
	}
	require.NoError(t, p.Stop())
}

func TestPipeline_Stop_GraceTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	p := NewPipeline(10, WithShutdownGrace(50*time.Millisecond))
	p.AddStage(newStageThatWaitsForCancel())
	p.AddStage(newStuckStage(release))

	require.NoError(t, p.Start(context.Background()))

	start := time.Now()
	err := p.Stop()
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Error, p.GetStatus())

	impl := p.(*pipelineImpl)
	assert.False(t, impl.running[0].Load())
	assert.True(t, impl.running[1].Load())
}

func TestPipeline_GetStatus_ConcurrencySafety(t *testing.T) {
	p := NewPipeline(10)
	p.AddStage(newReadyOnlyStage())

	require.NoError(t, p.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.GetStatus()
		}()
	}
	wg.Wait()

	p.Stop()
}

func TestPipeline_Stage_ReturnsError(t *testing.T) {
	p := NewPipeline(10)

	errorStage := &mockStage{
		runFn: func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
			close(ready)
			return fmt.Errorf("intentional error")
		},
	}
	p.AddStage(errorStage)

	require.NoError(t, p.Start(context.Background()))

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for failed stage")
	}
	require.Error(t, p.Err())
	assert.Contains(t, p.Err().Error(), "intentional error")

	// Pipeline должен успешно остановиться несмотря на ошибку в stage
	require.NoError(t, p.Stop())
	assert.Equal(t, Stopped, p.GetStatus())
}

func TestPipeline_Stage_FailsBeforeReady(t *testing.T) {
	p := NewPipeline(10)
	p.AddStage(&mockStage{
		runFn: func(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error {
			return fmt.Errorf("cannot open transport")
		},
	})

	done := make(chan error, 1)
	go func() { done <- p.Start(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start blocked on a stage that never became ready")
	}
	<-p.Done()
	assert.Error(t, p.Err())
	require.NoError(t, p.Stop())
}

func TestPipeline_Restart(t *testing.T) {
	p := NewPipeline(10)
	p.AddStage(newStageThatWaitsForCancel())

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop())

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, Running, p.GetStatus())
	require.NoError(t, p.Stop())
}

func TestPipelineStatus_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "status(42)", PipelineStatus(42).String())
}
