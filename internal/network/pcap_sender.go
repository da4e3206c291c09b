package network

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"

	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

const pcapSnapLen = 65536

// PcapSender пишет пакеты в pcap файл (LinkTypeRaw, кадр начинается с IPv4)
type PcapSender struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	w       *pcapgo.Writer
	path    string
	packets uint64
	now     func() time.Time
	metrics *metrics.PerformanceMetrics
}

func NewPcapSender(path string, m *metrics.PerformanceMetrics) (*PcapSender, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create pcap file %s", path)
	}

	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(pcapSnapLen, layers.LinkTypeRaw); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to write pcap header")
	}

	if m == nil {
		m = metrics.GetGlobalMetrics()
	}
	m.IncrementConnections()

	return &PcapSender{
		file:    f,
		buf:     buf,
		w:       w,
		path:    path,
		now:     time.Now,
		metrics: m,
	}, nil
}

func (p *PcapSender) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return errors.New("pcap sender closed")
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     p.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := p.w.WritePacket(ci, data); err != nil {
		return errors.Wrapf(err, "failed to write packet to %s", p.path)
	}
	p.packets++
	return nil
}

func (p *PcapSender) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}

	flushErr := p.buf.Flush()
	closeErr := p.file.Close()
	p.file = nil
	p.metrics.DecrementConnections()

	if flushErr != nil {
		return errors.Wrapf(flushErr, "failed to flush %s", p.path)
	}
	return closeErr
}

func (p *PcapSender) IsHealthy() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return false, "pcap file closed"
	}
	return true, "pcap sender healthy"
}

func (p *PcapSender) GetStats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"type":    "pcap",
		"file":    p.path,
		"packets": p.packets,
	}
}
