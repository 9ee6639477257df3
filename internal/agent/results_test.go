package agent

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/pkg/logger"
)

func TestRegistry_OneShot(t *testing.T) {
	r := NewRegistry(logger.Discard())
	channel := ResultChannel("+15550100")
	var got []models.ResultCode

	r.Register(channel, func(code models.ResultCode) { got = append(got, code) })

	assert.True(t, r.Deliver(channel, models.ResultGenericFailure))
	assert.False(t, r.Deliver(channel, models.ResultOK))
	assert.Equal(t, []models.ResultCode{models.ResultGenericFailure}, got)
	assert.False(t, r.Pending(channel))
}

func TestRegistry_ConcurrentDeliveriesFireOnce(t *testing.T) {
	r := NewRegistry(logger.Discard())
	channel := ResultChannel("+15550100")
	var calls int32
	r.Register(channel, func(models.ResultCode) { atomic.AddInt32(&calls, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Deliver(channel, models.ResultOK)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(logger.Discard())
	channel := ResultChannel("+15550100")

	assert.ErrorIs(t, r.Unregister(channel), ErrNotRegistered)

	r.Register(channel, func(models.ResultCode) {})
	assert.NoError(t, r.Unregister(channel))
	assert.False(t, r.Deliver(channel, models.ResultOK))

	r.unregisterQuiet(channel)
}

func TestRegistry_SelfRemovalKeepsNewerListener(t *testing.T) {
	r := NewRegistry(logger.Discard())
	channel := ResultChannel("+15550100")
	var second bool

	r.Register(channel, func(models.ResultCode) {
		r.Register(channel, func(models.ResultCode) { second = true })
	})

	assert.True(t, r.Deliver(channel, models.ResultOK))
	assert.True(t, r.Pending(channel))
	assert.True(t, r.Deliver(channel, models.ResultOK))
	assert.True(t, second)
}
