// Package parallel provides bounded-concurrency helpers for the load path.
package parallel

import (
	"fmt"
	"sync"

	"github.com/dd0wney/widegraph/pkg/logging"
)

// WorkerPool fans tasks out to a fixed set of goroutines. Submit blocks when
// the queue is full, so a fast producer cannot outrun the workers by more
// than the queue depth.
type WorkerPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex // Protects tasks from concurrent close during send
	closed bool         // Protected by mu
	once   sync.Once
	log    logging.Logger
}

// NewWorkerPool starts workers goroutines. A count below one is raised to
// one. A nil logger falls back to the process default.
func NewWorkerPool(workers int, log logging.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logging.DefaultLogger()
	}

	p := &WorkerPool{
		tasks: make(chan func(), workers*2),
		log:   log.With(logging.Component("workers")),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

// run executes one task. A panic inside a task is logged and must not take
// the worker down with it.
func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", logging.String("panic", fmt.Sprint(r)))
		}
	}()
	task()
}

// Submit queues one task. Returns false once the pool is closed.
func (p *WorkerPool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	p.tasks <- task
	return true
}

// Close stops intake and waits for every queued task to finish. Safe to
// call more than once and from multiple goroutines.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Wait waits for all submitted tasks to complete. The pool cannot be
// reused afterwards.
func (p *WorkerPool) Wait() {
	p.Close()
}
