// Package workerpool provides a bounded goroutine pool. The scan
// orchestrator submits one long-running task per scan job; the pool
// caps how many scans run against the external scanner at once so a
// burst of submissions cannot exhaust its session slots.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool manages a fixed pool of worker goroutines. Workers are started
// lazily when tasks are submitted and reused across tasks.
type Pool struct {
	workers int32
	tasks   chan func()
	running int32
	closed  int32
	wg      sync.WaitGroup
}

// New creates a worker pool with the specified number of workers.
// Non-positive values fall back to GOMAXPROCS.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		workers: int32(workers),
		tasks:   make(chan func(), workers*4),
	}
}

// Submit adds a task to the pool. If all workers are busy the task
// waits in the queue; if the queue is full, Submit blocks. Returns
// false if the pool is closed.
func (p *Pool) Submit(task func()) bool {
	if atomic.LoadInt32(&p.closed) == 1 {
		return false
	}

	// Spawn a worker if below capacity.
	for {
		running := atomic.LoadInt32(&p.running)
		if running >= p.workers {
			break
		}
		if atomic.CompareAndSwapInt32(&p.running, running, running+1) {
			p.wg.Add(1)
			go p.worker()
			break
		}
	}

	select {
	case p.tasks <- task:
	default:
		p.tasks <- task // queue full, block until space
	}
	return true
}

// SubmitWait submits a task and blocks until it completes.
func (p *Pool) SubmitWait(task func()) bool {
	done := make(chan struct{})
	ok := p.Submit(func() {
		defer close(done)
		task()
	})
	if ok {
		<-done
	}
	return ok
}

func (p *Pool) worker() {
	defer func() {
		if r := recover(); r != nil {
			// Replace ourselves so a panicking task does not shrink
			// the pool. Keep running count and wg accounting.
			if atomic.LoadInt32(&p.closed) == 0 {
				go p.worker()
				return
			}
		}
		atomic.AddInt32(&p.running, -1)
		p.wg.Done()
	}()

	for task := range p.tasks {
		if task != nil {
			task()
		}
	}
}

// Running returns the current number of running workers.
func (p *Pool) Running() int {
	return int(atomic.LoadInt32(&p.running))
}

// Cap returns the worker capacity.
func (p *Pool) Cap() int {
	return int(atomic.LoadInt32(&p.workers))
}

// Waiting returns the number of tasks waiting in the queue.
func (p *Pool) Waiting() int {
	return len(p.tasks)
}

// Close shuts down the pool gracefully. All pending tasks complete
// before Close returns.
func (p *Pool) Close() {
	if !atomic.CompareAndSwapInt32(&p.closed, 0, 1) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// IsClosed reports whether the pool has been closed.
func (p *Pool) IsClosed() bool {
	return atomic.LoadInt32(&p.closed) == 1
}
