package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingAcker struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  map[uint64]bool // tag -> requeue
	settled chan struct{}
}

func newRecordingAcker() *recordingAcker {
	return &recordingAcker{nacked: make(map[uint64]bool), settled: make(chan struct{}, 16)}
}

func (a *recordingAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	a.acked = append(a.acked, tag)
	a.mu.Unlock()
	a.settled <- struct{}{}
	return nil
}

func (a *recordingAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	a.nacked[tag] = requeue
	a.mu.Unlock()
	a.settled <- struct{}{}
	return nil
}

func (a *recordingAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type dispositionByTag map[uint64]Disposition

func (d dispositionByTag) HandleDelivery(_ context.Context, msg amqp091.Delivery) Disposition {
	return d[msg.DeliveryTag]
}

func TestTaskConsumer_SettlesByDisposition(t *testing.T) {
	acker := newRecordingAcker()
	handler := dispositionByTag{1: Ack, 2: Requeue, 3: Reject}
	c := NewTaskConsumer(nil, "campaign_tasks", 2, handler, zap.NewNop())

	msgs := make(chan amqp091.Delivery, 3)
	for tag := uint64(1); tag <= 3; tag++ {
		msgs <- amqp091.Delivery{Acknowledger: acker, DeliveryTag: tag}
	}
	close(msgs)

	c.serve(context.Background(), msgs)

	assert.Equal(t, []uint64{1}, acker.acked)
	assert.Equal(t, map[uint64]bool{2: true, 3: false}, acker.nacked)
}

func TestTaskConsumer_StopsOnContextCancel(t *testing.T) {
	c := NewTaskConsumer(nil, "campaign_tasks", 3, dispositionByTag{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.serve(ctx, make(chan amqp091.Delivery))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after context cancel")
	}
}

func TestCancelConsumer_CancelsLocalRun(t *testing.T) {
	runs := NewRunRegistry(time.Minute)
	c := NewCancelConsumer(nil, "campaign_cancel", runs, zap.NewNop())

	runCtx, done := runs.Start(context.Background(), "task-7")
	defer done()

	msgs := make(chan amqp091.Delivery, 2)
	msgs <- amqp091.Delivery{Body: []byte("garbage")}
	msgs <- amqp091.Delivery{Body: []byte(`{"taskId":"task-7"}`)}
	close(msgs)
	c.serve(context.Background(), msgs)

	assert.Error(t, runCtx.Err())
}
