// Package metrics содержит счетчики генератора: атомики для монитора
// и Prometheus collector поверх них
package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/message"
)

// PerformanceMetrics счетчики пишут стадии, читают монитор и /metrics
type PerformanceMetrics struct {
	generatedPackets uint64
	sentPackets      uint64
	failedPackets    uint64
	droppedPackets   uint64
	invalidSources   uint64
	sentBytes        uint64
	lastSequence     uint64

	networkConnections uint64
	networkTimeouts    uint64

	totalProcessingTime uint64 // ns
	processedCount      uint64
	maxProcessingTime   uint64
	minProcessingTime   uint64

	startTime atomic.Int64 // unix ns

	mu                 sync.Mutex
	lastCheckTime      time.Time
	lastCheckGenerated uint64
}

type DetailedStats struct {
	Generated      uint64
	Sent           uint64
	Failed         uint64
	Dropped        uint64
	InvalidSources uint64
	BytesSent      uint64
	LastSequence   uint32

	Connections uint64
	Timeouts    uint64

	AvgProcessingTime time.Duration
	MaxProcessingTime time.Duration

	Uptime     time.Duration
	AvgPPS     float64
	Goroutines int
	MemAllocMB float64
}

var (
	globalMetrics *PerformanceMetrics
	globalOnce    sync.Once
)

func NewPerformanceMetrics() *PerformanceMetrics {
	m := &PerformanceMetrics{minProcessingTime: ^uint64(0)}
	m.startTime.Store(time.Now().UnixNano())
	return m
}

// GetGlobalMetrics общий экземпляр процесса
func GetGlobalMetrics() *PerformanceMetrics {
	globalOnce.Do(func() {
		globalMetrics = NewPerformanceMetrics()
	})
	return globalMetrics
}

func (m *PerformanceMetrics) IncrementGenerated() {
	atomic.AddUint64(&m.generatedPackets, 1)
}

// AddSent учитывает один отправленный пакет размером n байт
func (m *PerformanceMetrics) AddSent(n int) {
	atomic.AddUint64(&m.sentPackets, 1)
	atomic.AddUint64(&m.sentBytes, uint64(n))
}

func (m *PerformanceMetrics) IncrementFailed() {
	atomic.AddUint64(&m.failedPackets, 1)
}

func (m *PerformanceMetrics) IncrementDropped() {
	atomic.AddUint64(&m.droppedPackets, 1)
}

func (m *PerformanceMetrics) IncrementInvalidSource() {
	atomic.AddUint64(&m.invalidSources, 1)
}

func (m *PerformanceMetrics) SetLastSequence(seq uint32) {
	atomic.StoreUint64(&m.lastSequence, uint64(seq))
}

func (m *PerformanceMetrics) IncrementConnections() {
	atomic.AddUint64(&m.networkConnections, 1)
}

func (m *PerformanceMetrics) DecrementConnections() {
	atomic.AddUint64(&m.networkConnections, ^uint64(0))
}

func (m *PerformanceMetrics) IncrementTimeouts() {
	atomic.AddUint64(&m.networkTimeouts, 1)
}

// RecordProcessingTime время сборки одного пакета; неположительные значения игнорируются
func (m *PerformanceMetrics) RecordProcessingTime(d time.Duration) {
	if d <= 0 {
		return
	}
	ns := uint64(d.Nanoseconds())
	atomic.AddUint64(&m.totalProcessingTime, ns)
	atomic.AddUint64(&m.processedCount, 1)

	for {
		cur := atomic.LoadUint64(&m.maxProcessingTime)
		if ns <= cur || atomic.CompareAndSwapUint64(&m.maxProcessingTime, cur, ns) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&m.minProcessingTime)
		if ns >= cur || atomic.CompareAndSwapUint64(&m.minProcessingTime, cur, ns) {
			break
		}
	}
}

// GetStats возвращает основные счетчики и средний PPS генерации за все время
func (m *PerformanceMetrics) GetStats() (generated, sent, failed uint64, avgPPS float64) {
	generated = atomic.LoadUint64(&m.generatedPackets)
	sent = atomic.LoadUint64(&m.sentPackets)
	failed = atomic.LoadUint64(&m.failedPackets)

	if elapsed := time.Since(m.started()).Seconds(); elapsed > 0 {
		avgPPS = float64(generated) / elapsed
	}
	return generated, sent, failed, avgPPS
}

func (m *PerformanceMetrics) started() time.Time {
	return time.Unix(0, m.startTime.Load())
}

func (m *PerformanceMetrics) Dropped() uint64 {
	return atomic.LoadUint64(&m.droppedPackets)
}

func (m *PerformanceMetrics) BytesSent() uint64 {
	return atomic.LoadUint64(&m.sentBytes)
}

// CurrentPPS PPS генерации с прошлого вызова; первый вызов возвращает 0
func (m *PerformanceMetrics) CurrentPPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	generated := atomic.LoadUint64(&m.generatedPackets)

	if m.lastCheckTime.IsZero() {
		m.lastCheckTime = now
		m.lastCheckGenerated = generated
		return 0
	}

	elapsed := now.Sub(m.lastCheckTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	eps := float64(generated-m.lastCheckGenerated) / elapsed
	m.lastCheckTime = now
	m.lastCheckGenerated = generated
	return eps
}

func (m *PerformanceMetrics) GetDetailedStats() DetailedStats {
	generated, sent, failed, avg := m.GetStats()

	var avgProc time.Duration
	if n := atomic.LoadUint64(&m.processedCount); n > 0 {
		avgProc = time.Duration(atomic.LoadUint64(&m.totalProcessingTime) / n)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return DetailedStats{
		Generated:         generated,
		Sent:              sent,
		Failed:            failed,
		Dropped:           atomic.LoadUint64(&m.droppedPackets),
		InvalidSources:    atomic.LoadUint64(&m.invalidSources),
		BytesSent:         atomic.LoadUint64(&m.sentBytes),
		LastSequence:      uint32(atomic.LoadUint64(&m.lastSequence)),
		Connections:       atomic.LoadUint64(&m.networkConnections),
		Timeouts:          atomic.LoadUint64(&m.networkTimeouts),
		AvgProcessingTime: avgProc,
		MaxProcessingTime: time.Duration(atomic.LoadUint64(&m.maxProcessingTime)),
		Uptime:            time.Since(m.started()),
		AvgPPS:            avg,
		Goroutines:        runtime.NumGoroutine(),
		MemAllocMB:        float64(mem.Alloc) / 1024 / 1024,
	}
}

// String короткая строка для логов
func (m *PerformanceMetrics) String() string {
	generated, sent, failed, avg := m.GetStats()
	p := message.NewPrinter(message.MatchLanguage("en"))
	return p.Sprintf("Generated: %d | Sent: %d | Dropped: %d | Failed: %d | Avg PPS: %.1f",
		generated, sent, m.Dropped(), failed, avg)
}

// Reset обнуляет счетчики и время старта; безопасен параллельно с чтением
func (m *PerformanceMetrics) Reset() {
	atomic.StoreUint64(&m.generatedPackets, 0)
	atomic.StoreUint64(&m.sentPackets, 0)
	atomic.StoreUint64(&m.failedPackets, 0)
	atomic.StoreUint64(&m.droppedPackets, 0)
	atomic.StoreUint64(&m.invalidSources, 0)
	atomic.StoreUint64(&m.sentBytes, 0)
	atomic.StoreUint64(&m.lastSequence, 0)
	atomic.StoreUint64(&m.networkConnections, 0)
	atomic.StoreUint64(&m.networkTimeouts, 0)
	atomic.StoreUint64(&m.totalProcessingTime, 0)
	atomic.StoreUint64(&m.processedCount, 0)
	atomic.StoreUint64(&m.maxProcessingTime, 0)
	atomic.StoreUint64(&m.minProcessingTime, ^uint64(0))

	m.startTime.Store(time.Now().UnixNano())

	m.mu.Lock()
	m.lastCheckTime = time.Time{}
	m.lastCheckGenerated = 0
	m.mu.Unlock()
}
