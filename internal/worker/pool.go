// Package worker runs tile decoding off the render loop.
//
// A Task is a one-shot computation driven by Poll: the render loop spawns
// it, polls it once per frame and reads the result after Poll reports
// completion. Tasks run on a Pool of goroutines, or inline on the first
// Poll when no pool is given.
package worker

import (
	"runtime"
	"sync"
)

// Pool runs decoding work on a fixed set of goroutines fed from one
// bounded queue. Submission never blocks the render loop.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	size  int
	queue chan func()
	wg    sync.WaitGroup

	// mu guards closed and the send side of queue.
	mu     sync.RWMutex
	closed bool
}

// NewPool starts a pool with n workers; n <= 0 means GOMAXPROCS.
// The queue holds four items per worker, and at least eight.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		size:  n,
		queue: make(chan func(), max(n*4, 8)),
	}
	p.wg.Add(n)
	for range n {
		go func() {
			defer p.wg.Done()
			for work := range p.queue {
				work()
			}
		}()
	}
	return p
}

// TrySubmit queues fn and reports whether it was accepted. It returns
// false when the pool is closed or the queue is full.
func (p *Pool) TrySubmit(fn func()) bool {
	if fn == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- fn:
		return true
	default:
		return false
	}
}

// Close stops accepting work and waits until the workers have run
// everything already queued. Later calls return immediately.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.size
}

// IsRunning reports whether the pool accepts work.
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// Queued returns the number of items waiting for a worker.
func (p *Pool) Queued() int {
	return len(p.queue)
}
