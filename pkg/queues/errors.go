package queues

import "errors"

// ErrMessageNotFound is returned when a message id has no stored payload,
// usually because it expired or was already acked.
var ErrMessageNotFound = errors.New("queue message not found")

// ErrQueueEmpty is returned by non-blocking dequeues when nothing is ready.
var ErrQueueEmpty = errors.New("queue is empty")
