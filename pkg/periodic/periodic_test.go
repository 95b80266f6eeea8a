package periodic

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLoopCallsFnOnEveryTick(t *testing.T) {
	var calls int32
	loop := New("test", 5*time.Millisecond, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, zerolog.Nop())

	loop.Start()
	time.Sleep(40 * time.Millisecond)
	loop.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestRunOnceBypassesTicker(t *testing.T) {
	var calls int32
	loop := New("test", time.Hour, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, zerolog.Nop())

	assert.NoError(t, loop.RunOnce())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
