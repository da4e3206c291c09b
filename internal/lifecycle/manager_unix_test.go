//go:build unix

package lifecycle

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGRsoftlab/nf5gen/internal/logger"
)

func TestManager_Signal_IsCleanShutdown(t *testing.T) {
	p := newMockPipeline()
	manager := NewManager(p, &mockMonitor{}, logger.NewNopLogger())
	manager.signals = []os.Signal{syscall.SIGUSR1}

	errCh := runAsync(manager, 0)
	require.Eventually(t, p.WasStarted, time.Second, time.Millisecond)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	require.NoError(t, waitErr(t, errCh))
	assert.Equal(t, ReasonSignal, manager.Reason())
}
