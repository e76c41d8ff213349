// Package worker delivers queued notices to the chat platform.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/duelist/internal/adapters/mq/queue"
	"github.com/okian/duelist/pkg/logger"
	"github.com/okian/duelist/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 4
	defaultQueueSize      = 1024
	defaultDeliverTimeout = 10 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Queue defines how workers receive notices.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Notice
}

// Worker processes notices from one queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown waits for the worker to finish.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker delivers notices one at a time, in queue order.
type InMemoryWorker struct {
	queue          Queue
	name           string
	deliverTimeout time.Duration

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:          q,
		name:           "worker",
		deliverTimeout: defaultDeliverTimeout,
		done:           make(chan struct{}),
		logger:         logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	notices := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			if err := w.process(ctx, n); err != nil {
				w.logger.Error(ctx, "notice delivery failed",
					logger.String("kind", n.Kind),
					logger.String("key", n.Key),
					logger.Error(err))
			}
		}
	}
}

// Shutdown waits for the worker loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, n queue.Notice) error {
	return deliver(ctx, n, w.deliverTimeout)
}

// deliver runs a notice with a timeout and records the result.
func deliver(ctx context.Context, n queue.Notice, timeout time.Duration) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n.Deliver == nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := n.Deliver(dctx); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordNotifierError(n.Kind)
		metrics.RecordErrorByComponent("worker", n.Kind)
		return fmt.Errorf("deliver %s notice: %w", n.Kind, err)
	}
	metrics.RecordNoticeDelivered(n.Kind)
	return nil
}

// Pool owns one queue per worker and routes notices by key, so notices
// sharing a key are delivered in submission order by a single worker.
type Pool struct {
	workers        []*InMemoryWorker
	queues         []*queue.InMemoryQueue
	deliverTimeout time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	logger   logger.Logger
}

// NewPool creates a pool of workerCount workers, each with a queue of
// queueSize notices.
func NewPool(workerCount, queueSize int, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}

	p := &Pool{
		workers:        make([]*InMemoryWorker, workerCount),
		queues:         make([]*queue.InMemoryQueue, workerCount),
		deliverTimeout: defaultDeliverTimeout,
		logger:         logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(queueSize))
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(p.queues[i], wopts...)
		p.deliverTimeout = p.workers[i].deliverTimeout
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateQueueCapacity(workerCount * queueSize)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	if p.started.Swap(true) {
		return
	}
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

func (p *Pool) route(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.queues)))
}

// Submit enqueues n on the queue owning its key. When that queue is full
// or closed the notice is delivered inline and its error returned.
func (p *Pool) Submit(ctx context.Context, n queue.Notice) error {
	if p.queues[p.route(n.Key)].Enqueue(ctx, n) {
		return nil
	}
	metrics.RecordNoticeInline()
	p.logger.Debug(ctx, "queue unavailable, delivering notice inline",
		logger.String("kind", n.Kind), logger.String("key", n.Key))
	if err := deliver(ctx, n, p.deliverTimeout); err != nil {
		p.logger.Error(ctx, "inline notice delivery failed",
			logger.String("kind", n.Kind), logger.String("key", n.Key), logger.Error(err))
		return err
	}
	return nil
}

// Len returns the number of notices waiting across all queues.
func (p *Pool) Len(ctx context.Context) int {
	total := 0
	for _, q := range p.queues {
		total += q.Len(ctx)
	}
	return total
}

// Shutdown stops accepting notices and waits for queued ones to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		for _, q := range p.queues {
			if err := q.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not drain: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
