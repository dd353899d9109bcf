package preprocessing

import (
	"context"
	"sync"
	"time"

	"github.com/mindhaven/mpcnet/types"
)

// pool holds dealt preprocessing material indexed by deal order. The
// sequencing party reserves the next index; the other parties take by
// the index it announced, so every party consumes the same item for
// the same operation. An item leaves the pool exactly once.
type pool struct {
	mu     sync.Mutex
	items  map[int]interface{}
	dealt  int // next index assigned by add
	cursor int // next index handed out by reserve

	consumed  int
	generated int

	update chan struct{}
}

func newPool() *pool {
	return &pool{
		items:  map[int]interface{}{},
		update: make(chan struct{}),
	}
}

// add appends a dealt batch, assigning consecutive indexes.
func (p *pool) add(batch []interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range batch {
		p.items[p.dealt] = item
		p.dealt++
		p.generated++
	}
	close(p.update)
	p.update = make(chan struct{})
}

// reserve claims the next k indexes. The items may not have been dealt
// yet; take blocks until they are.
func (p *pool) reserve(k int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := p.cursor
	p.cursor += k
	return start
}

// remaining reports how many dealt items have not been taken.
func (p *pool) remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *pool) stats() (generated, consumed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generated, p.consumed
}

// take removes the item at idx, blocking until it has been dealt. A
// missing index below the deal watermark was already consumed: the
// material is single-use and is never handed out twice.
func (p *pool) take(ctx context.Context, idx int, timeout time.Duration,
	failed <-chan struct{}) (interface{}, error) {

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		p.mu.Lock()
		item, ok := p.items[idx]
		if ok {
			delete(p.items, idx)
			p.consumed++
			p.mu.Unlock()
			return item, nil
		}
		if idx < p.dealt {
			p.mu.Unlock()
			return nil, types.NewError(types.ProtocolError,
				"preprocessing item %d already consumed", idx)
		}
		update := p.update
		p.mu.Unlock()

		select {
		case <-update:
		case <-timer.C:
			return nil, types.NewError(types.Timeout,
				"preprocessing pool empty, item %d not dealt within %s", idx, timeout)
		case <-failed:
			return nil, types.NewError(types.ProtocolError, "session failed")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// drain discards everything, leaving counters intact.
func (p *pool) drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = map[int]interface{}{}
}
