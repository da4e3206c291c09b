package factory

import (
	"context"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGRsoftlab/nf5gen/internal/config"
	"github.com/NGRsoftlab/nf5gen/internal/domain/netflow"
	"github.com/NGRsoftlab/nf5gen/internal/enrichment"
	"github.com/NGRsoftlab/nf5gen/internal/logger"
	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.FlowsPerSecond = 20
	cfg.NumberOfExporters = 5
	cfg.SourcePacketSubnet = "192.0.2.0/24"
	cfg.DestinationIPSubnet = "198.51.100.0/24"
	cfg.CollectorIP = "127.0.0.1"
	cfg.CollectorPort = 2055
	cfg.Transport = config.TransportPcap
	cfg.PcapFile = filepath.Join(t.TempDir(), "out.pcap")
	require.NoError(t, cfg.Validate())
	return cfg
}

func testPool(t *testing.T) *enrichment.Pool {
	t.Helper()
	pool, err := enrichment.NewPool([]netip.Addr{
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
	})
	require.NoError(t, err)
	return pool
}

func TestPipelineFactory_ExporterPool(t *testing.T) {
	cfg := testConfig(t)
	f := NewPipelineFactory(cfg, testPool(t), metrics.NewPerformanceMetrics(), logger.NewNopLogger())

	exporters, err := f.ExporterPool()
	require.NoError(t, err)
	require.Len(t, exporters, 5)
	assert.Equal(t, "192.0.2.1", exporters[0].String())
	assert.Equal(t, "192.0.2.5", exporters[4].String())

	// подсеть меньше number_of_exporters
	cfg.SourcePacketSubnet = "192.0.2.0/30"
	exporters, err = f.ExporterPool()
	require.NoError(t, err)
	assert.Len(t, exporters, 2)
}

func TestPipelineFactory_InitialSequence(t *testing.T) {
	cfg := testConfig(t)
	seq := uint32(4242)
	cfg.InitialFlowSequence = &seq

	f := NewPipelineFactory(cfg, testPool(t), nil, nil)
	assert.Equal(t, uint32(4242), f.InitialSequence())
}

func TestPipelineFactory_BufferSize(t *testing.T) {
	cfg := testConfig(t)
	cfg.FlowsPerSecond = 12345
	f := NewPipelineFactory(cfg, testPool(t), nil, nil)
	assert.Equal(t, 12345, f.calculateBufferSize())
}

func TestPipelineFactory_CreateSender(t *testing.T) {
	cfg := testConfig(t)
	f := NewPipelineFactory(cfg, testPool(t), metrics.NewPerformanceMetrics(), nil)

	sender, err := f.CreateSender()
	require.NoError(t, err)
	assert.Equal(t, "pcap", sender.GetStats()["type"])
	require.NoError(t, sender.Close())

	cfg.Transport = config.TransportUDP
	sender, err = f.CreateSender()
	require.NoError(t, err)
	assert.Equal(t, "udp", sender.GetStats()["type"])
	assert.Equal(t, "127.0.0.1:2055", sender.GetStats()["addr"])
	require.NoError(t, sender.Close())

	cfg.Transport = "carrier-pigeon"
	_, err = f.CreateSender()
	assert.Error(t, err)
}

func TestPipelineFactory_CreatePipeline_NoPool(t *testing.T) {
	f := NewPipelineFactory(testConfig(t), nil, nil, nil)
	_, err := f.CreatePipeline()
	assert.Error(t, err)
}

// Полный прогон: генерация -> очередь -> pcap файл
func TestPipelineFactory_EndToEndPcap(t *testing.T) {
	cfg := testConfig(t)
	seq := uint32(100)
	cfg.InitialFlowSequence = &seq

	m := metrics.NewPerformanceMetrics()
	f := NewPipelineFactory(cfg, testPool(t), m, logger.NewNopLogger())

	p, err := f.CreatePipeline()
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool {
		_, sent, _, _ := m.GetStats()
		return sent >= 20
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop())

	f2, err := os.Open(cfg.PcapFile)
	require.NoError(t, err)
	defer f2.Close()

	r, err := pcapgo.NewReader(f2)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		data, _, err := r.ReadPacketData()
		require.NoError(t, err)
		require.Len(t, data, netflow.PacketSize)

		header, ok := netflow.ParseV5Header(data[netflow.IPv4HeaderSize+netflow.UDPHeaderSize:])
		require.True(t, ok)
		assert.Equal(t, uint32(100+i), header.FlowSequence)
		assert.Equal(t, []byte{127, 0, 0, 1}, data[16:20])
	}
}

// Полный прогон через UDP транспорт на локальный слушатель
func TestPipelineFactory_EndToEndUDP(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	cfg := testConfig(t)
	cfg.Transport = config.TransportUDP
	cfg.CollectorPort = conn.LocalAddr().(*net.UDPAddr).Port
	cfg.FlowsPerSecond = 3

	f := NewPipelineFactory(cfg, testPool(t), metrics.NewPerformanceMetrics(), nil)
	p, err := f.CreatePipeline()
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	buf := make([]byte, 2048)
	var first uint32
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := conn.ReadFromUDP(buf)
		require.NoError(t, err)
		require.Equal(t, netflow.HeaderSize+netflow.RecordsPerPacket*netflow.RecordSize, n)

		header, ok := netflow.ParseV5Header(buf[:n])
		require.True(t, ok)
		assert.Equal(t, uint16(netflow.RecordsPerPacket), header.Count)
		if i == 0 {
			first = header.FlowSequence
		} else {
			assert.Equal(t, first+uint32(i), header.FlowSequence)
		}
	}
}
