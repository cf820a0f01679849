package shutdown

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManager_FirstShutdownWins(t *testing.T) {
	m := NewManager()
	assert.False(t, m.IsShuttingDown())
	assert.Empty(t, m.Reason())

	assert.True(t, m.Shutdown("signal"))
	assert.False(t, m.Shutdown("again"))
	assert.True(t, m.IsShuttingDown())
	assert.Equal(t, "signal", m.Reason())
}

func TestManager_DoneWakesEveryWaiter(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-m.Done()
		}()
	}
	m.Shutdown("test")

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("waiters were not released")
	}
}
