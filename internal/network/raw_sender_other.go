//go:build !linux

package network

import (
	"net/netip"

	"github.com/pkg/errors"

	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

// RawSender доступен только на linux; используйте transport udp или pcap
type RawSender struct{}

func NewRawSender(_ netip.AddrPort, _ *metrics.PerformanceMetrics) (*RawSender, error) {
	return nil, errors.New("raw transport is supported only on linux, use udp or pcap")
}

func (r *RawSender) Send([]byte) error { return errors.New("raw sender not initialized") }
func (r *RawSender) Close() error { return nil }
func (r *RawSender) IsHealthy() (bool, string) { return false, "raw sender unsupported" }
func (r *RawSender) GetStats() map[string]any { return map[string]any{"type": "raw"} }
