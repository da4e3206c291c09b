//go:build !linux

package network

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGRsoftlab/nf5gen/internal/metrics"
)

func TestNewRawSender_UnsupportedPlatform(t *testing.T) {
	_, err := NewRawSender(netip.MustParseAddrPort("127.0.0.1:2055"), metrics.NewPerformanceMetrics())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "udp or pcap")
}
