// Package stages contains implementations of pipeline processing stages,
// packet generation under a token bucket and sending through a transport,
// each conforming to the coordinator.Stage interface.
package stages

import (
	"time"
)

const (
	// DefaultEnqueueTimeout сколько генерация ждет место в очереди перед дропом
	DefaultEnqueueTimeout = 100 * time.Millisecond

	// emptyBucketSleep пауза, когда токены кончились или пакет не собрался
	emptyBucketSleep = 500 * time.Microsecond
)

type MetricsCollector interface {
	IncrementGenerated()
	AddSent(n int)
	IncrementFailed()
	IncrementDropped()
	IncrementInvalidSource()
	SetLastSequence(seq uint32)
	RecordProcessingTime(d time.Duration)
}

// StageMetrics снимок счетчиков стадии
type StageMetrics struct {
	Name      string `json:"name"`
	Processed uint64 `json:"processed"`
	Errors    uint64 `json:"errors"`
	Dropped   uint64 `json:"dropped"`
}
