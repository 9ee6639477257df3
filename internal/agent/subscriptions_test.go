package agent

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/gate-control/internal/config"
	"github.com/CyberwizD/gate-control/internal/modem"
	"github.com/CyberwizD/gate-control/pkg/logger"
)

func TestModemPool_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("configured default wins", func(t *testing.T) {
		one := &fakeSender{id: 1, active: true}
		two := &fakeSender{id: 2, active: true}
		generic := &fakeSender{id: 0}
		p := NewModemPool([]Subscription{one, two}, generic, 2, logger.Discard())

		assert.Same(t, two, p.Select(ctx))
	})

	t.Run("first active subscription by id", func(t *testing.T) {
		one := &fakeSender{id: 1, active: false}
		two := &fakeSender{id: 2, active: true}
		three := &fakeSender{id: 3, active: true}
		generic := &fakeSender{id: 0}
		p := NewModemPool([]Subscription{three, one, two}, generic, config.NoSubscription, logger.Discard())

		assert.Same(t, two, p.Select(ctx))
	})

	t.Run("unknown default falls through to active", func(t *testing.T) {
		one := &fakeSender{id: 1, active: true}
		p := NewModemPool([]Subscription{one}, &fakeSender{id: 0}, 9, logger.Discard())

		assert.Same(t, one, p.Select(ctx))
	})

	t.Run("nothing active uses generic", func(t *testing.T) {
		generic := &fakeSender{id: 0}
		p := NewModemPool([]Subscription{&fakeSender{id: 1}}, generic, config.NoSubscription, logger.Discard())

		assert.Same(t, generic, p.Select(ctx))
	})

	t.Run("permission denied on default uses generic", func(t *testing.T) {
		generic := &fakeSender{id: 0}
		locked := &fakeSender{id: 1, active: true, accessErr: modem.ErrPermissionDenied}
		p := NewModemPool([]Subscription{locked}, generic, 1, logger.Discard())

		assert.Same(t, generic, p.Select(ctx))
	})

	t.Run("unusable default falls through to active", func(t *testing.T) {
		generic := &fakeSender{id: 9}
		unplugged := &fakeSender{id: 1, active: true, accessErr: os.ErrNotExist}
		two := &fakeSender{id: 2, active: true}
		p := NewModemPool([]Subscription{unplugged, two}, generic, 1, logger.Discard())

		assert.Same(t, two, p.Select(ctx))
	})

	t.Run("permission denied while listing uses generic", func(t *testing.T) {
		generic := &fakeSender{id: 0}
		locked := &fakeSender{id: 1, active: true, accessErr: modem.ErrPermissionDenied}
		open := &fakeSender{id: 2, active: true}
		p := NewModemPool([]Subscription{locked, open}, generic, config.NoSubscription, logger.Discard())

		assert.Same(t, generic, p.Select(ctx))
	})
}

func TestModemPool_Lookups(t *testing.T) {
	one := &fakeSender{id: 1, active: true}
	two := &fakeSender{id: 2}
	p := NewModemPool([]Subscription{two, one}, nil, config.NoSubscription, logger.Discard())

	assert.Same(t, one, p.Default())
	assert.Equal(t, config.NoSubscription, p.DefaultSMSSubscription())

	s, ok := p.ForSubscription(2)
	require.True(t, ok)
	assert.Same(t, two, s)
	_, ok = p.ForSubscription(5)
	assert.False(t, ok)

	active, err := p.ActiveSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].SubscriptionID())
}

func TestModemPool_CanSendSMS(t *testing.T) {
	p := NewModemPool(nil, &fakeSender{accessErr: modem.ErrPermissionDenied}, config.NoSubscription, logger.Discard())
	assert.ErrorIs(t, p.CanSendSMS(), modem.ErrPermissionDenied)

	empty := NewModemPool(nil, nil, config.NoSubscription, logger.Discard())
	assert.ErrorIs(t, empty.CanSendSMS(), modem.ErrPermissionDenied)
	assert.NoError(t, empty.Close())
}
