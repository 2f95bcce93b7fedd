package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickWorkerLifecycle(t *testing.T) {
	ticks := make(chan struct{}, 1)
	var wg sync.WaitGroup
	worker := NewTickWorker("test", time.Millisecond, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}, &wg)

	worker.Start()
	require.True(t, worker.IsRunning())
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("worker never ticked")
	}

	worker.Stop()
	wg.Wait()
	require.False(t, worker.IsRunning())
}
