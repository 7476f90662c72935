package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/courtbot/internal/domain"
	"github.com/cuongbtq/courtbot/internal/intake"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records map[uint64]*ackRecord
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{records: make(map[uint64]*ackRecord)}
}

func (f *fakeAcknowledger) record(tag uint64) *ackRecord {
	r, ok := f.records[tag]
	if !ok {
		r = &ackRecord{}
		f.records[tag] = r
	}
	return r
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(tag).acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.record(tag)
	r.nacked = true
	r.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) get(tag uint64) ackRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.records[tag]; ok {
		return *r
	}
	return ackRecord{}
}

type fakeAccepter struct {
	mu    sync.Mutex
	err   error
	calls []intake.RenderRequest
}

func (f *fakeAccepter) Accept(ctx context.Context, req intake.RenderRequest) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewJob(domain.JobSpec{ID: "job-1", RequesterID: req.RequesterID}), nil
}

func newTestConsumer(accepter Accepter, source Source) *Consumer {
	return NewConsumer(Config{
		Source:   source,
		Accepter: accepter,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

const validBody = `{
	"requester_id": "u1",
	"guild_id": "g1",
	"channel_id": "c1",
	"frame_count": 2,
	"music": "tat",
	"frames": [
		{"speaker_id": "a", "speaker_name": "Phoenix", "text": "Objection!"},
		{"speaker_id": "b", "speaker_name": "Maya", "text": "Nick!"}
	],
	"origin": {"kind": "interaction", "interaction_token": "tok"}
}`

func TestHandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		acceptErr   error
		wantAck     bool
		wantNack    bool
		wantAccepts int
	}{
		{
			name:        "valid request is acked",
			body:        validBody,
			wantAck:     true,
			wantAccepts: 1,
		},
		{
			name:        "admission error is acked",
			body:        validBody,
			acceptErr:   domain.NewAdmissionError("Only up to 5 renders per user are allowed"),
			wantAck:     true,
			wantAccepts: 1,
		},
		{
			name:        "other accept error is dropped",
			body:        validBody,
			acceptErr:   errors.Join(intake.ErrInvalidOrigin, errors.New("bad")),
			wantNack:    true,
			wantAccepts: 1,
		},
		{
			name:     "malformed json is dropped",
			body:     `{"requester_id":`,
			wantNack: true,
		},
		{
			name:     "missing requester is dropped",
			body:     `{"guild_id":"g1","channel_id":"c1","origin":{"kind":"message","message_id":"m1"}}`,
			wantNack: true,
		},
		{
			name:     "interaction without token is dropped",
			body:     `{"requester_id":"u1","guild_id":"g1","channel_id":"c1","origin":{"kind":"interaction"}}`,
			wantNack: true,
		},
		{
			name:     "unknown origin kind is dropped",
			body:     `{"requester_id":"u1","guild_id":"g1","channel_id":"c1","origin":{"kind":"dm"}}`,
			wantNack: true,
		},
		{
			name:     "frame without speaker is dropped",
			body:     `{"requester_id":"u1","guild_id":"g1","channel_id":"c1","frames":[{"text":"hi"}],"origin":{"kind":"message","message_id":"m1"}}`,
			wantNack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &fakeAccepter{err: tt.acceptErr}
			ack := newFakeAcknowledger()
			c := newTestConsumer(acc, nil)

			c.handleDelivery(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				DeliveryTag:  7,
				Body:         []byte(tt.body),
			})

			got := ack.get(7)
			assert.Equal(t, tt.wantAck, got.acked)
			assert.Equal(t, tt.wantNack, got.nacked)
			assert.False(t, got.requeue)
			assert.Len(t, acc.calls, tt.wantAccepts)
		})
	}
}

func TestHandleDelivery_DecodesRequest(t *testing.T) {
	acc := &fakeAccepter{}
	c := newTestConsumer(acc, nil)

	c.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: newFakeAcknowledger(),
		Body:         []byte(validBody),
	})

	require.Len(t, acc.calls, 1)
	req := acc.calls[0]
	assert.Equal(t, "u1", req.RequesterID)
	assert.Equal(t, 2, req.FrameCount)
	require.Len(t, req.Frames, 2)
	assert.Equal(t, "Maya", req.Frames[1].SpeakerName)
	assert.Equal(t, "tok", req.Origin.InteractionToken)
}

type fakeSource struct {
	prefetch   int
	deliveries chan amqp.Delivery
	qosErr     error
}

func (f *fakeSource) Qos(prefetchCount int) error {
	f.prefetch = prefetchCount
	return f.qosErr
}

func (f *fakeSource) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func TestRun_ConsumesUntilChannelCloses(t *testing.T) {
	src := &fakeSource{deliveries: make(chan amqp.Delivery, 2)}
	acc := &fakeAccepter{}
	ack := newFakeAcknowledger()
	c := newTestConsumer(acc, src)

	src.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(validBody)}
	src.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("nope")}
	close(src.deliveries)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 10, src.prefetch)
	assert.True(t, ack.get(1).acked)
	assert.True(t, ack.get(2).nacked)
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{deliveries: make(chan amqp.Delivery)}
	c := newTestConsumer(&fakeAccepter{}, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestRun_QosFailure(t *testing.T) {
	src := &fakeSource{qosErr: errors.New("channel closed")}
	err := newTestConsumer(&fakeAccepter{}, src).Run(context.Background())
	assert.ErrorContains(t, err, "failed to set QoS")
}
