package supervisor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerSlotFlagFormat(t *testing.T) {
	got := fmt.Sprintf("%s%d", WorkerSlotFlag, 3)
	assert.Equal(t, "-worker-slot=3", got)
}

func TestShutdownIsIdempotent(t *testing.T) {
	s := &Supervisor{
		workers:           make([]*workerSlot, 2),
		shutdownRequested: make(chan struct{}),
	}
	s.Shutdown()
	s.Shutdown() // must not panic on double-close

	select {
	case <-s.shutdownRequested:
	default:
		t.Fatal("expected shutdownRequested to be closed")
	}
}

func TestWorkerTableCountsOnlyRunningSlots(t *testing.T) {
	s := &Supervisor{
		workers: []*workerSlot{
			{index: 0, pid: 111, status: StatusRunning},
			{index: 1, pid: 222, status: StatusExiting},
		},
	}

	s.mu.Lock()
	running := 0
	for _, w := range s.workers {
		if w.status == StatusRunning {
			running++
		}
	}
	s.mu.Unlock()

	require.Equal(t, 1, running)
}
