// Package workers runs the background consumers that drain the processing
// queue and invoke the pipeline for each dequeued meeting.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
	"github.com/otherjamesbrown/dicta-cli/pkg/queues"
)

// Queue is the consumption surface of the processing queue.
// *queues.RedisQueue satisfies it.
type Queue interface {
	Name() string
	Dequeue(ctx context.Context, wait time.Duration) (*queues.QueuedMessage, error)
	Ack(ctx context.Context, messageID string) error
	Nack(ctx context.Context, messageID string) error
	Depth(ctx context.Context) (int64, error)
	RecoverStaleMessages(ctx context.Context) error
}

// Processor runs the pipeline for one meeting. *pipeline.Pipeline's Process
// method satisfies it.
type Processor func(ctx context.Context, meetingID uuid.UUID) error

// PoolConfig configures the worker pool.
type PoolConfig struct {
	// Count is the number of concurrent workers. Meetings are independent,
	// so concurrency is safe across messages.
	Count int `yaml:"count"`

	// PollInterval is the dequeue wait per attempt.
	PollInterval time.Duration `yaml:"poll_interval"`

	// RecoveryInterval is how often stale processing messages are swept
	// back onto the queue.
	RecoveryInterval time.Duration `yaml:"recovery_interval"`
}

// DefaultPoolConfig returns the standard worker pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Count:            2,
		PollInterval:     time.Second,
		RecoveryInterval: time.Minute,
	}
}

// Pool drains the processing queue with a fixed set of workers.
type Pool struct {
	config    PoolConfig
	queue     Queue
	processor Processor
	metrics   *Metrics
	logger    logging.Logger

	processed atomic.Int64
	failed    atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool.
func NewPool(config PoolConfig, queue Queue, processor Processor, metrics *Metrics, logger logging.Logger) *Pool {
	if config.Count <= 0 {
		config.Count = DefaultPoolConfig().Count
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPoolConfig().PollInterval
	}
	if config.RecoveryInterval <= 0 {
		config.RecoveryInterval = DefaultPoolConfig().RecoveryInterval
	}
	return &Pool{
		config:    config,
		queue:     queue,
		processor: processor,
		metrics:   metrics,
		logger:    logger.With(logging.F("component", "worker_pool")),
	}
}

// Start launches the workers and the recovery sweeper. They run until Stop.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.Count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.workLoop(ctx, id)
		}(i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.recoveryLoop(ctx)
	}()

	p.logger.Info("Worker pool started",
		logging.F("workers", p.config.Count),
		logging.F("queue", p.queue.Name()))
}

// Stop signals the workers and waits for in-flight meetings to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("Worker pool stopped",
		logging.F("processed", p.processed.Load()),
		logging.F("failed", p.failed.Load()))
}

// Stats returns lifetime processed/failed counts.
func (p *Pool) Stats() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

func (p *Pool) workLoop(ctx context.Context, id int) {
	log := p.logger.With(logging.F("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		qm, err := p.queue.Dequeue(ctx, p.config.PollInterval)
		if err == queues.ErrQueueEmpty {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("Dequeue failed", logging.Err(err))
			continue
		}

		p.handle(ctx, log, qm)
	}
}

func (p *Pool) handle(ctx context.Context, log logging.Logger, qm *queues.QueuedMessage) {
	msg, err := qm.ParseMessage()
	if err != nil {
		// Unparseable payloads would loop forever; park them instead.
		log.Error("Dropping unparseable message", logging.F("message_id", qm.ID), logging.Err(err))
		if err := p.queue.Ack(ctx, qm.ID); err != nil {
			log.Warn("Failed to ack bad message", logging.Err(err))
		}
		return
	}

	start := time.Now()
	err = p.processor(ctx, msg.MeetingID)
	elapsed := time.Since(start)

	if err != nil {
		p.failed.Add(1)
		p.metrics.MeetingsProcessedTotal.WithLabelValues("failed").Inc()
		p.metrics.ProcessingSeconds.WithLabelValues("failed").Observe(elapsed.Seconds())
		log.Error("Meeting processing failed",
			logging.F("meeting_id", msg.MeetingID.String()),
			logging.Err(err))

		// The pipeline already persisted the failed state; the message is
		// done unless the failure was a queue-level transient.
		if nerr := p.queue.Nack(ctx, qm.ID); nerr != nil && nerr != queues.ErrMessageNotFound {
			log.Warn("Failed to nack message", logging.Err(nerr))
		}
		return
	}

	p.processed.Add(1)
	p.metrics.MeetingsProcessedTotal.WithLabelValues("completed").Inc()
	p.metrics.ProcessingSeconds.WithLabelValues("completed").Observe(elapsed.Seconds())

	if err := p.queue.Ack(ctx, qm.ID); err != nil {
		log.Warn("Failed to ack message", logging.Err(err))
	}
	log.Info("Meeting processed",
		logging.F("meeting_id", msg.MeetingID.String()),
		logging.F("elapsed", elapsed.String()))
}

// recoveryLoop periodically sweeps stale in-flight messages back onto the
// queue and refreshes the depth gauge.
func (p *Pool) recoveryLoop(ctx context.Context) {
	ticker := time.NewTicker(p.config.RecoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.RecoverStaleMessages(ctx); err != nil {
				p.logger.Warn("Stale message recovery failed", logging.Err(err))
			}
			p.metrics.StaleRecoveriesTotal.Inc()

			if depth, err := p.queue.Depth(ctx); err == nil {
				p.metrics.QueueDepth.Set(float64(depth))
			}
		}
	}
}
