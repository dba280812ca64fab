package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/queues"
)

// memQueue is an in-memory Queue for pool tests.
type memQueue struct {
	mu      sync.Mutex
	ready   []*queues.QueuedMessage
	acked   []string
	nacked  []string
	sweeps  int
}

func (q *memQueue) Name() string { return "test" }

func (q *memQueue) push(t *testing.T, meetingID uuid.UUID) string {
	t.Helper()
	payload, err := json.Marshal(&queues.ProcessMessage{MeetingID: meetingID})
	require.NoError(t, err)
	id := uuid.New().String()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, &queues.QueuedMessage{ID: id, Message: payload})
	return id
}

func (q *memQueue) pushRaw(raw string) string {
	id := uuid.New().String()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, &queues.QueuedMessage{ID: id, Message: json.RawMessage(raw)})
	return id
}

func (q *memQueue) Dequeue(ctx context.Context, wait time.Duration) (*queues.QueuedMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return nil, queues.ErrQueueEmpty
	}
	qm := q.ready[0]
	q.ready = q.ready[1:]
	return qm, nil
}

func (q *memQueue) Ack(ctx context.Context, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, messageID)
	return nil
}

func (q *memQueue) Nack(ctx context.Context, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, messageID)
	return nil
}

func (q *memQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ready)), nil
}

func (q *memQueue) RecoverStaleMessages(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sweeps++
	return nil
}

func (q *memQueue) ackCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

func (q *memQueue) nackCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.nacked)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 400; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestPoolProcessesAndAcks(t *testing.T) {
	queue := &memQueue{}
	meetingID := uuid.New()
	queue.push(t, meetingID)

	var mu sync.Mutex
	var seen []uuid.UUID
	processor := func(ctx context.Context, id uuid.UUID) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, id)
		return nil
	}

	pool := NewPool(PoolConfig{Count: 1, PollInterval: time.Millisecond, RecoveryInterval: time.Hour},
		queue, processor, NewNopMetrics(), logging.NewNopLogger())
	pool.Start(context.Background())
	defer pool.Stop()

	waitFor(t, func() bool { return queue.ackCount() == 1 })
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uuid.UUID{meetingID}, seen)

	processed, failed := pool.Stats()
	require.Equal(t, int64(1), processed)
	require.Zero(t, failed)
}

func TestPoolNacksFailedProcessing(t *testing.T) {
	queue := &memQueue{}
	queue.push(t, uuid.New())

	processor := func(ctx context.Context, id uuid.UUID) error {
		return fmt.Errorf("stage exploded")
	}

	pool := NewPool(PoolConfig{Count: 1, PollInterval: time.Millisecond, RecoveryInterval: time.Hour},
		queue, processor, NewNopMetrics(), logging.NewNopLogger())
	pool.Start(context.Background())
	defer pool.Stop()

	waitFor(t, func() bool { return queue.nackCount() == 1 })
	_, failed := pool.Stats()
	require.Equal(t, int64(1), failed)
}

func TestPoolParksUnparseableMessages(t *testing.T) {
	queue := &memQueue{}
	queue.pushRaw(`{broken`)

	processor := func(ctx context.Context, id uuid.UUID) error {
		t.Error("processor must not run for unparseable messages")
		return nil
	}

	pool := NewPool(PoolConfig{Count: 1, PollInterval: time.Millisecond, RecoveryInterval: time.Hour},
		queue, processor, NewNopMetrics(), logging.NewNopLogger())
	pool.Start(context.Background())
	defer pool.Stop()

	waitFor(t, func() bool { return queue.ackCount() == 1 })
	require.Zero(t, queue.nackCount())
}

func TestPoolRunsRecoverySweeps(t *testing.T) {
	queue := &memQueue{}

	pool := NewPool(PoolConfig{Count: 1, PollInterval: time.Millisecond, RecoveryInterval: 5 * time.Millisecond},
		queue, func(ctx context.Context, id uuid.UUID) error { return nil },
		NewNopMetrics(), logging.NewNopLogger())
	pool.Start(context.Background())
	defer pool.Stop()

	waitFor(t, func() bool {
		queue.mu.Lock()
		defer queue.mu.Unlock()
		return queue.sweeps >= 2
	})
}
