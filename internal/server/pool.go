package server

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/ostafen/sigcrawl/internal/metrics"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// Pool serves connections on a fixed set of worker goroutines.
//
// Connections wait in a bounded queue. Stop closes the queue: every worker
// drains the connections already submitted and then exits.
type Pool struct {
	size    int
	queue   chan net.Conn
	handler ConnHandler
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(size, queueSize int, handler ConnHandler, logger *slog.Logger, m *metrics.Metrics) *Pool {
	return &Pool{
		size:    size,
		queue:   make(chan net.Conn, queueSize),
		handler: handler,
		logger:  logger,
		metrics: m,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.worker(i + 1)
	}
}

// Submit queues conn for a worker, blocking while the queue is full.
// After Stop it returns ErrPoolStopped and the caller keeps ownership of conn.
func (p *Pool) Submit(conn net.Conn) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	p.queue <- conn
	p.metrics.SetQueueDepth(len(p.queue))
	return nil
}

// Stop closes the queue and waits for the workers to drain it.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	close(p.queue)

	// Without workers nobody drains the queue.
	if !p.started {
		for conn := range p.queue {
			conn.Close()
			p.metrics.ObserveRejected()
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for conn := range p.queue {
		p.metrics.SetQueueDepth(len(p.queue))
		p.serve(id, conn)
	}
}

// serve runs the handler on conn. The connection is always closed and a
// panic never escapes the worker.
func (p *Pool) serve(id int, conn net.Conn) {
	done := p.metrics.WorkerStarted()
	defer done()
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			p.metrics.ObservePanic()
			p.logger.Error("Panic in worker", "worker", id, "remote", remoteAddr(conn), "panic", r)
		}
	}()

	if err := p.handler.ServeConn(conn); err != nil {
		p.logger.Error("Error handling client", "worker", id, "remote", remoteAddr(conn), "error", err)
	}
}
