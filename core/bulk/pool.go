package bulk

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 500
)

// Pool is a fixed set of workers fed through a bounded queue. When the queue is full, Submit runs the task
// on the calling goroutine instead of blocking or dropping it.
type Pool struct {
	tasks chan func()
	group *errgroup.Group

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool{
		tasks: make(chan func(), queueSize),
		group: &errgroup.Group{},
	}
	for i := 0; i < workers; i++ {
		p.group.Go(func() error {
			for task := range p.tasks {
				task()
			}
			return nil
		})
	}

	log.Debug().Int("workers", workers).Int("queueSize", queueSize).Msg("started bulk update pool")
	return p
}

// Submit reports whether the task was queued. False means it already ran inline.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	if !p.closed {
		select {
		case p.tasks <- task:
			p.mu.RUnlock()
			return true
		default:
		}
	}
	p.mu.RUnlock()

	inlineTasks.Inc()
	task()
	return false
}

// Close stops accepting work, lets the workers drain the queue and waits for them, or for ctx.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
