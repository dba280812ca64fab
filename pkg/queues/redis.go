package queues

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// Redis key prefixes.
const (
	keyPrefixQueue      = "queue:"      // main queue (sorted set by priority)
	keyPrefixProcessing = "processing:" // messages being processed
	keyPrefixMessage    = "msg:"        // message payloads
	keyPrefixDLQ        = "dlq:"        // dead letter queue
)

// RedisQueue is a priority work queue on Redis sorted sets with a
// visibility timeout: dequeued messages move to a processing set and are
// recovered if never acked.
type RedisQueue struct {
	client *redis.Client
	config QueueConfig
	logger logging.Logger
}

// NewRedisQueue creates a queue over an existing Redis client.
func NewRedisQueue(client *redis.Client, config QueueConfig, logger logging.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		config: config,
		logger: logger.With(logging.F("component", "queue"), logging.F("queue", config.Name)),
	}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string {
	return q.config.Name
}

// Enqueue adds a processing message to the queue. Score encodes priority
// first, enqueue time second, so ordering is FIFO within a priority band.
func (q *RedisQueue) Enqueue(ctx context.Context, msg *ProcessMessage) error {
	messageID := uuid.New().String()

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	qm := &QueuedMessage{
		ID:         messageID,
		Message:    msgBytes,
		Priority:   msg.Priority,
		EnqueuedAt: time.Now(),
	}
	qmBytes, err := json.Marshal(qm)
	if err != nil {
		return fmt.Errorf("failed to marshal queued message: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.msgKey(messageID), qmBytes, q.config.RetentionPeriod)
	pipe.ZAdd(ctx, keyPrefixQueue+q.config.Name, redis.Z{
		Score:  scoreAt(msg.Priority, time.Now()),
		Member: messageID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	q.logger.Debug("Message enqueued",
		logging.F("message_id", messageID),
		logging.F("meeting_id", msg.MeetingID.String()))
	return nil
}

// Dequeue pops the highest-priority ready message and moves it to the
// processing set under the visibility timeout. Returns ErrQueueEmpty when
// nothing is ready before the wait elapses.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*QueuedMessage, error) {
	queueKey := keyPrefixQueue + q.config.Name
	deadline := time.Now().Add(wait)

	for {
		result, err := q.client.ZPopMax(ctx, queueKey, 1).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to pop from queue: %w", err)
		}
		if len(result) == 0 {
			if time.Now().After(deadline) {
				return nil, ErrQueueEmpty
			}
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		messageID := result[0].Member.(string)
		data, err := q.client.Get(ctx, q.msgKey(messageID)).Bytes()
		if err == redis.Nil {
			// Payload expired; skip the orphaned id.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get message payload: %w", err)
		}

		var qm QueuedMessage
		if err := json.Unmarshal(data, &qm); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}

		qm.VisibleAfter = time.Now().Add(q.config.VisibilityTimeout)
		updated, _ := json.Marshal(qm)

		pipe := q.client.TxPipeline()
		pipe.Set(ctx, q.msgKey(messageID), updated, q.config.RetentionPeriod)
		pipe.ZAdd(ctx, keyPrefixProcessing+q.config.Name, redis.Z{
			Score:  float64(qm.VisibleAfter.UnixNano()),
			Member: messageID,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to move message to processing: %w", err)
		}

		return &qm, nil
	}
}

// Ack removes a successfully processed message.
func (q *RedisQueue) Ack(ctx context.Context, messageID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyPrefixProcessing+q.config.Name, messageID)
	pipe.Del(ctx, q.msgKey(messageID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// Nack re-enqueues a failed message with exponential backoff, moving it to
// the dead letter queue once retries are exhausted.
func (q *RedisQueue) Nack(ctx context.Context, messageID string) error {
	data, err := q.client.Get(ctx, q.msgKey(messageID)).Bytes()
	if err == redis.Nil {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	var qm QueuedMessage
	if err := json.Unmarshal(data, &qm); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	qm.RetryCount++
	if qm.RetryCount >= q.config.MaxRetries {
		return q.MoveToDeadLetter(ctx, messageID, "max retries exceeded")
	}

	qm.VisibleAfter = time.Now().Add(backoff(qm.RetryCount))
	updated, _ := json.Marshal(qm)

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyPrefixProcessing+q.config.Name, messageID)
	pipe.Set(ctx, q.msgKey(messageID), updated, q.config.RetentionPeriod)
	pipe.ZAdd(ctx, keyPrefixQueue+q.config.Name, redis.Z{
		Score:  scoreAt(qm.Priority, qm.VisibleAfter),
		Member: messageID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack message: %w", err)
	}

	q.logger.Debug("Message nacked",
		logging.F("message_id", messageID),
		logging.F("retry_count", qm.RetryCount))
	return nil
}

// MoveToDeadLetter parks an unprocessable message for inspection.
func (q *RedisQueue) MoveToDeadLetter(ctx context.Context, messageID, reason string) error {
	data, err := q.client.Get(ctx, q.msgKey(messageID)).Bytes()
	if err == redis.Nil {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	entry, _ := json.Marshal(map[string]any{
		"message":  string(data),
		"reason":   reason,
		"moved_at": time.Now().Format(time.RFC3339),
		"queue":    q.config.Name,
	})

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, keyPrefixProcessing+q.config.Name, messageID)
	pipe.Del(ctx, q.msgKey(messageID))
	pipe.ZAdd(ctx, keyPrefixDLQ+q.config.Name, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(entry),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move message to DLQ: %w", err)
	}

	q.logger.Warn("Message moved to dead letter queue",
		logging.F("message_id", messageID),
		logging.F("reason", reason))
	return nil
}

// Depth returns the number of ready messages.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, keyPrefixQueue+q.config.Name).Result()
}

// RecoverStaleMessages re-enqueues messages whose visibility timeout has
// expired without an ack. Called periodically by the worker.
func (q *RedisQueue) RecoverStaleMessages(ctx context.Context) error {
	processingKey := keyPrefixProcessing + q.config.Name

	stale, err := q.client.ZRangeByScore(ctx, processingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", time.Now().UnixNano()),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to find stale messages: %w", err)
	}

	for _, messageID := range stale {
		if err := q.Nack(ctx, messageID); err != nil && err != ErrMessageNotFound {
			q.logger.Warn("Failed to recover stale message",
				logging.F("message_id", messageID),
				logging.Err(err))
		}
	}
	return nil
}

func (q *RedisQueue) msgKey(messageID string) string {
	return keyPrefixMessage + q.config.Name + ":" + messageID
}

// scoreAt encodes priority-then-time ordering in one sorted-set score.
func scoreAt(p Priority, t time.Time) float64 {
	return float64(p)*1e12 + float64(t.UnixNano())
}

// backoff is exponential from 1s, capped at 5 minutes.
func backoff(retryCount int) time.Duration {
	d := time.Second * (1 << uint(retryCount))
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
