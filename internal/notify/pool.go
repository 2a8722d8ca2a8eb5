package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("notification pool is closed")

const deliveryTimeout = 30 * time.Second

type Deliverer interface {
	Deliver(ctx context.Context, t Ticket) error
}

// Pool delivers tickets from a fixed set of in-process workers. Dispatch
// never blocks: when the buffer is full the ticket is refused.
type Pool struct {
	deliverer Deliverer
	logger    *zap.Logger
	jobs      chan Ticket
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(d Deliverer, workers, queueSize int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		deliverer: d,
		logger:    logger,
		jobs:      make(chan Ticket, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) Dispatch(ctx context.Context, t Ticket) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tickets and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := p.deliverer.Deliver(ctx, t); err != nil {
			p.logger.Error("failed to deliver ticket email",
				zap.Uint("sale_id", t.SaleID),
				zap.String("buyer_email", t.BuyerEmail),
				zap.Error(err),
			)
		}
		cancel()
	}
}
