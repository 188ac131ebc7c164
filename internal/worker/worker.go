// Package worker is the delivery pool: rendered push messages fan out to
// their destinations on a fixed set of goroutines so one slow webhook
// cannot stall the ingestion pipeline.
package worker

import (
	"context"
	"sync"
)

// Delivery is one rendered message bound for one destination.
type Delivery struct {
	Destination string
	EventID     string
	SourceID    string
	Body        string
}

type DeliverFunc func(ctx context.Context, d Delivery) error

type Pool struct {
	numWorkers int
	jobs       chan Delivery
	deliver    DeliverFunc
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, bufferSize int, deliver DeliverFunc) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan Delivery, bufferSize),
		deliver:    deliver,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-p.jobs:
			if !ok {
				return
			}
			// DeliverFunc records its own failures; the pool only
			// guarantees the attempt happens.
			_ = p.deliver(ctx, d)
		}
	}
}

func (p *Pool) Submit(d Delivery) {
	p.jobs <- d
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
