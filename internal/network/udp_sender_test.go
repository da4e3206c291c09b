package network

import (
	"math/rand/v2"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGRsoftlab/nf5gen/internal/domain/netflow"
	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

type fixedSource struct{ addr netip.Addr }

func (s fixedSource) Next() netip.Addr { return s.addr }

// testPacket собирает настоящий пакет exporter -> collector
func testPacket(t *testing.T, seq uint32) []byte {
	t.Helper()
	synth, err := netflow.NewSynthesizer(
		fixedSource{netip.MustParseAddr("10.0.0.1")},
		netip.MustParsePrefix("198.51.100.0/24"),
		rand.New(rand.NewPCG(1, 2)),
		false,
	)
	require.NoError(t, err)

	pkt, err := synth.BuildPacket(netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("127.0.0.1"), seq)
	require.NoError(t, err)
	return pkt
}

// startTestUDPServer запускает UDP-сервер на случайном порту и возвращает адрес и функцию остановки.
// Также возвращает канал, в который приходят полученные сообщения.
func startTestUDPServer(t *testing.T) (string, <-chan []byte, func()) {
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)

	conn, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)

	messages := make(chan []byte, 10)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(messages)
		buf := make([]byte, 65536)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				return // соединение закрыто
			}
			msg := make([]byte, n)
			copy(msg, buf[:n])
			select {
			case messages <- msg:
			default:
				// игнорируем переполнение
			}
		}
	}()

	cleanup := func() {
		conn.Close()
		<-done
	}

	return conn.LocalAddr().String(), messages, cleanup
}

func TestUDPSender_Send_StripsHeaders(t *testing.T) {
	addr, messages, cleanup := startTestUDPServer(t)
	defer cleanup()

	sender, err := NewUDPSender(addr, 2*time.Second, metrics.NewPerformanceMetrics())
	require.NoError(t, err)
	defer sender.Close()

	pkt := testPacket(t, 99)
	require.NoError(t, sender.Send(pkt))

	select {
	case received := <-messages:
		assert.Equal(t, pkt[headersSize:], received)

		header, ok := netflow.ParseV5Header(received)
		require.True(t, ok)
		assert.Equal(t, uint16(netflow.Version), header.Version)
		assert.Equal(t, uint32(99), header.FlowSequence)
	case <-time.After(time.Second):
		t.Fatal("UDP message not received")
	}
}

func TestUDPSender_Send_TooShort(t *testing.T) {
	addr, _, cleanup := startTestUDPServer(t)
	defer cleanup()

	sender, err := NewUDPSender(addr, time.Second, metrics.NewPerformanceMetrics())
	require.NoError(t, err)
	defer sender.Close()

	err = sender.Send(make([]byte, 10))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "packet too short")
}

func TestUDPSender_Send_AfterClose(t *testing.T) {
	addr, _, cleanup := startTestUDPServer(t)
	defer cleanup()

	m := metrics.NewPerformanceMetrics()
	sender, err := NewUDPSender(addr, 1*time.Second, m)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.GetDetailedStats().Connections)

	require.NoError(t, sender.Close())
	assert.Equal(t, uint64(0), m.GetDetailedStats().Connections)
	assert.NoError(t, sender.Close(), "second close is a no-op")

	err = sender.Send(testPacket(t, 1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "UDP sender not initialized")
}

func TestUDPSender_IsHealthy(t *testing.T) {
	addr, _, cleanup := startTestUDPServer(t)
	defer cleanup()

	sender, err := NewUDPSender(addr, 1*time.Second, nil)
	require.NoError(t, err)

	healthy, msg := sender.IsHealthy()
	assert.True(t, healthy)
	assert.Equal(t, "UDP sender healthy", msg)

	sender.Close()
	healthy, msg = sender.IsHealthy()
	assert.False(t, healthy)
	assert.Equal(t, "UDP socket closed", msg)
}

func TestUDPSender_GetStats(t *testing.T) {
	addr, _, cleanup := startTestUDPServer(t)
	defer cleanup()

	sender, err := NewUDPSender(addr, 1*time.Second, metrics.NewPerformanceMetrics())
	require.NoError(t, err)
	defer sender.Close()

	stats := sender.GetStats()
	assert.Equal(t, "udp", stats["type"])
	assert.Equal(t, addr, stats["addr"])
}

func TestNewUDPSender_BadAddress(t *testing.T) {
	_, err := NewUDPSender("not-an-address", time.Second, metrics.NewPerformanceMetrics())
	assert.Error(t, err)
}
