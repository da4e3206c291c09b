package network

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

// UDPSender отправляет только NetFlow часть пакета через обычный UDP сокет,
// IPv4 и UDP заголовки строит ядро. Не требует привилегий.
type UDPSender struct {
	mu         sync.RWMutex
	conn       net.Conn
	timeout    time.Duration
	remoteAddr string
	metrics    *metrics.PerformanceMetrics
}

func NewUDPSender(destination string, timeout time.Duration, m *metrics.PerformanceMetrics) (*UDPSender, error) {
	conn, err := net.Dial("udp4", destination)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial UDP %s", destination)
	}
	if m == nil {
		m = metrics.GetGlobalMetrics()
	}
	m.IncrementConnections()
	return &UDPSender{
		conn:       conn,
		timeout:    timeout,
		remoteAddr: destination,
		metrics:    m,
	}, nil
}

func (u *UDPSender) Send(data []byte) error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.conn == nil {
		return errors.New("UDP sender not initialized")
	}
	if len(data) < headersSize {
		return errors.Errorf("packet too short: %d bytes", len(data))
	}

	if u.timeout > 0 {
		u.conn.SetWriteDeadline(time.Now().Add(u.timeout))
	}
	if _, err := u.conn.Write(data[headersSize:]); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			u.metrics.IncrementTimeouts()
		}
		return errors.Wrapf(err, "UDP write failed to %s", u.remoteAddr)
	}
	return nil
}

func (u *UDPSender) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn != nil {
		err := u.conn.Close()
		u.conn = nil
		u.metrics.DecrementConnections()
		return err
	}

	return nil
}

func (u *UDPSender) IsHealthy() (bool, string) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.conn == nil {
		return false, "UDP socket closed"
	}
	return true, "UDP sender healthy"
}

func (u *UDPSender) GetStats() map[string]any {
	return map[string]any{
		"type": "udp",
		"addr": u.remoteAddr,
	}
}
