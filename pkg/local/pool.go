package local

import (
	"errors"
	"sync"
)

type Task func() error

// Pool runs submitted tasks on a fixed number of workers. Task errors are
// collected and surfaced by Close; a failing task does not stop the others.
type Pool struct {
	numWorkers int
	tasks      chan Task
	wg         sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

func NewPool(numWorkers int) *Pool {
	return &Pool{
		numWorkers: max(numWorkers, 1),
		tasks:      make(chan Task),
	}
}

func (p *Pool) Start() {
	for range p.numWorkers {
		p.wg.Go(func() {
			for task := range p.tasks {
				if err := task(); err != nil {
					p.mu.Lock()
					p.errs = append(p.errs, err)
					p.mu.Unlock()
				}
			}
		})
	}
}

func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Close waits for every submitted task and returns their joined errors.
func (p *Pool) Close() error {
	close(p.tasks)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}
