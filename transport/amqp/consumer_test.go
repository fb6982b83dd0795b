package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/engine"
)

type ackCall struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu    sync.Mutex
	calls []ackCall
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, ackCall{tag: tag, ack: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, ackCall{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// syncSubmitter 在 Submit 内同步调用 done。
type syncSubmitter struct {
	err       error
	submitErr error
	got       []*core.UserEvent
}

func (s *syncSubmitter) Submit(_ context.Context, ev *core.UserEvent, done engine.DoneFunc) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.got = append(s.got, ev)
	done(nil, s.err)
	return nil
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body), RoutingKey: "event.view"}
}

func TestHandleDelivery(t *testing.T) {
	valid := `{"user_id":"u1","item_id":"100","event_type":"view"}`
	tests := []struct {
		name      string
		body      string
		err       error
		submitErr error
		want      ackCall
	}{
		{name: "success", body: valid, want: ackCall{tag: 1, ack: true}},
		{name: "invalid json", body: `{`, want: ackCall{tag: 1}},
		{name: "missing item", body: `{"user_id":"u1"}`, want: ackCall{tag: 1}},
		{name: "transient", body: valid, err: core.NewTransientStoreError("get", errors.New("timeout")), want: ackCall{tag: 1, requeue: true}},
		{name: "rejected by engine", body: valid, err: core.NewMalformedEventError("x"), want: ackCall{tag: 1}},
		{name: "dispatcher closed", body: valid, submitErr: engine.ErrDispatcherClosed, want: ackCall{tag: 1, requeue: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			sub := &syncSubmitter{err: tt.err, submitErr: tt.submitErr}
			c := NewConsumer(ConsumerConfig{URL: "amqp://localhost"}, sub, nil, zerolog.Nop())

			c.handleDelivery(context.Background(), delivery(ack, 1, tt.body))
			assert.Equal(t, []ackCall{tt.want}, ack.calls)
		})
	}
}

func TestHandleDelivery_Defaults(t *testing.T) {
	ack := &fakeAcknowledger{}
	sub := &syncSubmitter{}
	c := NewConsumer(ConsumerConfig{}, sub, nil, zerolog.Nop())

	c.handleDelivery(context.Background(), delivery(ack, 7, `{"user_id":"u1","item_id":"100","timestamp":5}`))

	assert.Equal(t, "u1_5", sub.got[0].EventID)
	assert.Equal(t, core.EventView, sub.got[0].EventType)
	assert.Equal(t, "reckit-rt.events", c.cfg.Queue)
	assert.Equal(t, []string{"event.#"}, c.cfg.RoutingKeys)
}
