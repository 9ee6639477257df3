package consumer

import (
	"context"
	"net/http"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/pkg/logger"
)

type ackRecorder struct {
	acked    bool
	nacked   bool
	requeue  bool
	rejected bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	a.rejected = true
	a.requeue = requeue
	return nil
}

type stubRelay struct {
	out models.RelayOutcome
	got models.RelayRequest
}

func (s *stubRelay) Relay(ctx context.Context, req models.RelayRequest) models.RelayOutcome {
	s.got = req
	return s.out
}

func TestCommandConsumer_HandleDelivery(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		wantAck  bool
		wantNack bool
		wantRej  bool
	}{
		{name: "success acks", body: `{"command":"open_gate","commandId":"c-1"}`, status: http.StatusOK, wantAck: true},
		{name: "missing token dead-letters", body: `{"command":"open_gate"}`, status: http.StatusNotFound, wantNack: true},
		{name: "send failure dead-letters", body: `{"command":"send_sms"}`, status: http.StatusInternalServerError, wantNack: true},
		{name: "malformed json is rejected", body: `{"command":`, wantRej: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := &stubRelay{out: models.RelayOutcome{StatusCode: tt.status}}
			c := NewCommandConsumer(nil, relay, logger.Discard())
			ack := &ackRecorder{}

			err := c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(tt.body)})

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, tt.wantNack, ack.nacked)
			assert.Equal(t, tt.wantRej, ack.rejected)
			assert.False(t, ack.requeue)
			if tt.wantAck {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCommandConsumer_PassesRequestThrough(t *testing.T) {
	relay := &stubRelay{out: models.RelayOutcome{StatusCode: http.StatusOK}}
	c := NewCommandConsumer(nil, relay, logger.Discard())

	err := c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: &ackRecorder{},
		Body:         []byte(`{"command":"send_sms","deviceId":"gate-2","phoneNumber":"+15550100","message":"hi"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, models.RelayRequest{
		Command:     models.CommandSendSMS,
		DeviceID:    "gate-2",
		PhoneNumber: "+15550100",
		Message:     "hi",
	}, relay.got)
}
