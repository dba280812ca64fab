// Package queues provides the Redis-backed work queue that connects a
// stopped recording to the background processing pipeline.
package queues

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority levels for queue messages.
type Priority int

const (
	PriorityLow    Priority = 0 // re-processing of old meetings
	PriorityNormal Priority = 1 // fresh recordings
	PriorityHigh   Priority = 2 // user-initiated retries
)

// ProcessQueueName is the single queue carrying meeting processing work.
const ProcessQueueName = "meetings:process"

// ProcessMessage asks a worker to run the processing pipeline for one
// meeting. Enqueued by the recording session on stop and by retry.
type ProcessMessage struct {
	MeetingID  uuid.UUID `json:"meeting_id"`
	UserID     uuid.UUID `json:"user_id"`
	Priority   Priority  `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Retry      bool      `json:"retry,omitempty"`
}

// GetPriority returns the message priority for queue ordering.
func (m *ProcessMessage) GetPriority() Priority { return m.Priority }

// QueuedMessage wraps a message on the wire with delivery bookkeeping.
type QueuedMessage struct {
	ID           string          `json:"id"`
	Message      json.RawMessage `json:"message"`
	Priority     Priority        `json:"priority"`
	RetryCount   int             `json:"retry_count"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAfter time.Time       `json:"visible_after,omitempty"`
}

// ParseMessage decodes the wrapped ProcessMessage.
func (qm *QueuedMessage) ParseMessage() (*ProcessMessage, error) {
	var msg ProcessMessage
	if err := json.Unmarshal(qm.Message, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse process message: %w", err)
	}
	if msg.MeetingID == uuid.Nil {
		return nil, fmt.Errorf("process message has no meeting id")
	}
	return &msg, nil
}

// QueueConfig holds per-queue tuning.
type QueueConfig struct {
	Name              string
	MaxRetries        int
	VisibilityTimeout time.Duration
	RetentionPeriod   time.Duration
}

// DefaultQueueConfig is the configuration for the processing queue. The
// visibility timeout must exceed the longest plausible pipeline run so a
// live worker is never double-delivered.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Name:              ProcessQueueName,
		MaxRetries:        3,
		VisibilityTimeout: 30 * time.Minute,
		RetentionPeriod:   7 * 24 * time.Hour,
	}
}
