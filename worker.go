package shardex

import (
	"context"
	"fmt"
	"sync"
)

// fissionTask asks the pool to analyze one shard.
type fissionTask struct {
	ShardID string
}

// fissionPool runs fission checks on a bounded set of workers instead of a
// goroutine per check. Close drains the queue and joins every worker.
type fissionPool struct {
	tasks    chan fissionTask
	run      func(shardID string)
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	submitMu sync.Mutex
	closed   bool
}

func newFissionPool(workers, queueSize int, run func(shardID string)) *fissionPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fissionPool{
		tasks:  make(chan fissionTask, queueSize),
		run:    run,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a check without blocking. A full queue rejects the task;
// the occupancy scan will pick the shard up again on its next pass.
func (p *fissionPool) Submit(shardID string) error {
	p.submitMu.Lock()
	defer p.submitMu.Unlock()
	if p.closed {
		return fmt.Errorf("shardex: fission pool closed")
	}
	select {
	case p.tasks <- fissionTask{ShardID: shardID}:
		return nil
	default:
		return fmt.Errorf("shardex: fission queue full")
	}
}

func (p *fissionPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task.ShardID)
		case <-p.ctx.Done():
			// drain whatever is already queued before exiting
			for {
				select {
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					p.run(task.ShardID)
				default:
					return
				}
			}
		}
	}
}

// Close stops intake, lets queued tasks finish, and joins the workers.
func (p *fissionPool) Close() {
	p.submitMu.Lock()
	if p.closed {
		p.submitMu.Unlock()
		return
	}
	p.closed = true
	p.submitMu.Unlock()
	p.cancel()
	p.wg.Wait()
}
