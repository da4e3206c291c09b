//go:build linux

package network

import (
	"net/netip"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

// RawSender отправляет пакеты с уже собранным IPv4 заголовком (IP_HDRINCL).
// Требует CAP_NET_RAW или root. Только linux: darwin и часть BSD ждут
// ip_len/ip_off в host order, а заголовок пишется в network order.
type RawSender struct {
	mu         sync.RWMutex
	fd         int
	addr       unix.SockaddrInet4
	remoteAddr string
	metrics    *metrics.PerformanceMetrics
}

func NewRawSender(collector netip.AddrPort, m *metrics.PerformanceMetrics) (*RawSender, error) {
	if !collector.Addr().Is4() {
		return nil, errors.Errorf("raw sender supports only IPv4 collector, got %s", collector)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open raw socket (CAP_NET_RAW required)")
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "failed to set IP_HDRINCL")
	}

	if m == nil {
		m = metrics.GetGlobalMetrics()
	}
	m.IncrementConnections()

	return &RawSender{
		fd:         fd,
		addr:       unix.SockaddrInet4{Port: int(collector.Port()), Addr: collector.Addr().As4()},
		remoteAddr: collector.String(),
		metrics:    m,
	}, nil
}

func (r *RawSender) Send(data []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.fd < 0 {
		return errors.New("raw sender not initialized")
	}
	if len(data) < headersSize {
		return errors.Errorf("packet too short: %d bytes", len(data))
	}

	if err := unix.Sendto(r.fd, data, 0, &r.addr); err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.ENOBUFS) {
			r.metrics.IncrementTimeouts()
		}
		return errors.Wrapf(err, "raw sendto %s failed", r.remoteAddr)
	}
	return nil
}

func (r *RawSender) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	r.metrics.DecrementConnections()
	return err
}

func (r *RawSender) IsHealthy() (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fd < 0 {
		return false, "raw socket closed"
	}
	return true, "raw sender healthy"
}

func (r *RawSender) GetStats() map[string]any {
	return map[string]any{
		"type": "raw",
		"addr": r.remoteAddr,
	}
}
