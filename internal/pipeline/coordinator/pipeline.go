// Package coordinator manages the pipeline lifecycle
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NGRsoftlab/nf5gen/internal/logger"
)

// DefaultShutdownGrace сколько Stop ждет завершения стадий после отмены
const DefaultShutdownGrace = 500 * time.Millisecond

// ErrShutdownTimeout стадии не завершились за grace период; их горутины брошены
var ErrShutdownTimeout = errors.New("pipeline shutdown timed out")

// Pipeline - интерфейс для пайплайна
type Pipeline interface {
	// Lifecycle - жизненный цикл
	Start(ctx context.Context) error
	Stop() error
	// Done закрывается, когда все стадии вернулись
	Done() <-chan struct{}

	// Configuration - настройка
	AddStage(stage Stage) error

	// Monitoring - мониторинг
	GetStatus() PipelineStatus
	Err() error
}

// Stage - интерфейс для этапа пайплайна; ready закрывается, когда стадия готова
type Stage interface {
	Run(ctx context.Context, in <-chan []byte, out chan<- []byte, ready chan<- bool) error
}

type PipelineStatus int

const (
	Stopped PipelineStatus = iota
	Starting
	Running
	Stopping
	Error
)

func (s PipelineStatus) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Option func(*pipelineImpl)

// WithShutdownGrace задает grace период для Stop
func WithShutdownGrace(d time.Duration) Option {
	return func(p *pipelineImpl) {
		if d > 0 {
			p.grace = d
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(p *pipelineImpl) {
		if log != nil {
			p.logger = log
		}
	}
}

// pipelineImpl - реализация пайплайна
type pipelineImpl struct {
	// Состояние
	status PipelineStatus
	mu     sync.RWMutex // защищает изменения статуса

	stages   []Stage       // список этапов
	channels []chan []byte // канал между стадиями
	running  []atomic.Bool // какие стадии еще не вернулись

	// Входной и выходной каналы
	inputChan  chan []byte
	outputChan chan []byte

	// Управление жизненным циклом
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	errMu    sync.Mutex
	stageErr error

	// Конфигурация
	bufferSize int
	grace      time.Duration
	logger     logger.Logger
}

// NewPipeline создает пайплайн; bufferSize - емкость очередей между стадиями
func NewPipeline(bufferSize int, opts ...Option) Pipeline {
	if bufferSize < 1 {
		bufferSize = 1
	}
	p := &pipelineImpl{
		status:     Stopped,
		stages:     make([]Stage, 0),
		bufferSize: bufferSize,
		grace:      DefaultShutdownGrace,
		logger:     logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetStatus возвращает текущий статус пайплайна
func (p *pipelineImpl) GetStatus() PipelineStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Err первая ошибка стадии, кроме отмены контекста
func (p *pipelineImpl) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.stageErr
}

// Done закрывается после выхода всех стадий; nil до Start
func (p *pipelineImpl) Done() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.done
}

// Start запускает пайплайн и ждет готовности всех стадий
func (p *pipelineImpl) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != Stopped {
		return fmt.Errorf("cannot start, pipeline status: %v", p.status)
	}

	p.status = Starting
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.inputChan = make(chan []byte)
	p.outputChan = make(chan []byte, p.bufferSize)
	p.done = make(chan struct{})
	p.setErr(nil, true)

	p.createChannels()
	p.startStages()

	p.status = Running
	return nil
}

// Stop отменяет контекст и ждет стадии не дольше grace периода
func (p *pipelineImpl) Stop() error {
	p.mu.Lock()
	if p.status != Running {
		p.mu.Unlock()
		return fmt.Errorf("cannot stop, pipeline status: %v", p.status)
	}
	p.status = Stopping
	done := p.done
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	// первая стадия, читающая in, видит закрытие; генерация in игнорирует и выходит по ctx
	close(p.inputChan)

	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	select {
	case <-done:
		p.mu.Lock()
		p.status = Stopped
		p.mu.Unlock()
		return nil

	case <-timer.C:
		for i := range p.running {
			if p.running[i].Load() {
				p.logger.Error("Stage %d (%T) did not stop within %v", i, p.stages[i], p.grace)
			}
		}
		p.mu.Lock()
		p.status = Error
		p.mu.Unlock()
		return ErrShutdownTimeout
	}
}

// AddStage добавляет новый этап в пайплайн
func (p *pipelineImpl) AddStage(stage Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != Stopped {
		return fmt.Errorf("cannot add stage, pipeline status: %v", p.status)
	}
	if stage == nil {
		return errors.New("cannot add nil stage")
	}

	p.stages = append(p.stages, stage)
	return nil
}

// createChannels создает каналы для передачи данных между этапами
func (p *pipelineImpl) createChannels() {
	stageCount := len(p.stages)
	if stageCount <= 1 {
		p.channels = nil
		return
	}

	p.channels = make([]chan []byte, stageCount-1)
	for i := 0; i < stageCount-1; i++ {
		p.channels[i] = make(chan []byte, p.bufferSize)
	}
}

// setErr запоминает первую ошибку; reset сбрасывает ее перед новым запуском
func (p *pipelineImpl) setErr(err error, reset bool) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if reset || p.stageErr == nil {
		p.stageErr = err
	}
}

// startStages запускает все этапы пайплайна
func (p *pipelineImpl) startStages() {
	p.running = make([]atomic.Bool, len(p.stages))
	readyChans := make([]chan bool, len(p.stages))
	exited := make([]chan struct{}, len(p.stages))

	for i, stage := range p.stages {
		readyChans[i] = make(chan bool)
		exited[i] = make(chan struct{})
		p.running[i].Store(true)

		p.wg.Add(1)
		go func(s Stage, in <-chan []byte, out chan<- []byte, index int) {
			defer p.wg.Done()
			defer close(exited[index])
			defer p.running[index].Store(false)
			defer close(out)

			err := s.Run(p.ctx, in, out, readyChans[index])
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				p.logger.Error("Stage %d (%T) finished with error: %v", index, s, err)
				p.setErr(err, false)
				return
			}
			p.logger.Debug("Stage %d (%T) finished", index, s)
		}(stage, p.getInputChannel(i), p.getOutputChannel(i), i)
	}

	done := p.done
	go func() {
		p.wg.Wait()
		close(done)
	}()

	// стадия, упавшая до сигнала готовности, не блокирует старт
	for i := range readyChans {
		select {
		case <-readyChans[i]:
		case <-exited[i]:
		}
	}
}

// getInputChannel возвращает входной канал для указанной стадии
func (p *pipelineImpl) getInputChannel(stageIndex int) <-chan []byte {
	if stageIndex == 0 {
		return p.inputChan // Первая стадия читает из входа
	}
	return p.channels[stageIndex-1] // Остальные из промежуточных
}

// getOutputChannel возвращает выходной канал для указанной стадии
func (p *pipelineImpl) getOutputChannel(stageIndex int) chan<- []byte {
	if stageIndex == len(p.stages)-1 {
		return p.outputChan // Последняя пишет в выход
	}
	return p.channels[stageIndex] // Остальные в промежуточные
}
