package compression

import (
	"context"
	"errors"
	"sync"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/domain/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/metrics"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/system"
	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

// WorkerCount is the fixed number of compression workers per launch. It is
// deliberately not configurable: every Ghostscript invocation funnels through
// these four workers regardless of load.
const WorkerCount = 4

// queueCapacity bounds how many requests may wait for a worker before
// submissions start failing fast.
const queueCapacity = 64

// ErrPoolStopped is returned when work is submitted to a stopped pool.
var ErrPoolStopped = errors.New("compression pool not running")

// ErrQueueFull is returned when the waiting queue is at capacity.
var ErrQueueFull = errors.New("compression queue full")

var _ system.Service = (*Pool)(nil)

type task struct {
	ctx    context.Context
	req    Request
	result chan taskResult
}

type taskResult struct {
	result compression.Result
	err    error
}

// Pool executes compression requests on a fixed set of workers so concurrent
// Ghostscript processes stay bounded.
type Pool struct {
	service *Service
	log     *logger.Logger
	tasks   chan task

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPool creates a lifecycle-managed compression worker pool.
func NewPool(service *Service, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.NewDefault("compression-pool")
	}
	return &Pool{
		service: service,
		log:     log,
		tasks:   make(chan task, queueCapacity),
	}
}

func (p *Pool) Name() string { return "compression-pool" }

// WorkerCount returns the fixed pool size.
func (p *Pool) WorkerCount() int { return WorkerCount }

// QueueDepth returns the number of tasks waiting for a worker.
func (p *Pool) QueueDepth() int { return len(p.tasks) }

// Start launches the workers. Starting a running pool is a no-op.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	for i := 0; i < WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(runCtx, i)
	}

	p.log.WithField("workers", WorkerCount).Info("compression pool started")
	return nil
}

// Stop signals the workers and waits for in-flight tasks to finish, bounded
// by the caller's context.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.log.Info("compression pool stopped")
	return nil
}

// Do submits a request and blocks until a worker has processed it, the
// caller's context ends, or the pool stops.
func (p *Pool) Do(ctx context.Context, req Request) (compression.Result, error) {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return compression.Result{}, ErrPoolStopped
	}

	t := task{ctx: ctx, req: req, result: make(chan taskResult, 1)}

	select {
	case p.tasks <- t:
		metrics.SetQueueDepth(len(p.tasks))
	default:
		return compression.Result{}, ErrQueueFull
	}

	select {
	case res := <-t.result:
		return res.result, res.err
	case <-ctx.Done():
		return compression.Result{}, ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			metrics.SetQueueDepth(len(p.tasks))
			if t.ctx.Err() != nil {
				t.result <- taskResult{err: t.ctx.Err()}
				continue
			}
			result, err := p.service.Compress(t.ctx, t.req)
			t.result <- taskResult{result: result, err: err}
		}
	}
}
