package message

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/mindhaven/mpcnet/party"
)

// collector accumulates exactly one contribution per party for one
// protocol step. Waiters in MessageModule.await block until enough
// contributions arrived or the collector was poisoned.
type collector struct {
	mu     sync.Mutex
	items  map[int]interface{}
	err    error
	update chan struct{}
}

func newCollector() *collector {
	return &collector{
		items:  map[int]interface{}{},
		update: make(chan struct{}),
	}
}

func (c *collector) deliver(from int, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.items[from]; dup {
		// one contribution per party per step; a second one is a
		// misbehaving or replaying peer
		log.Warn().Msgf("duplicate contribution from party %d dropped", from)
		return
	}
	c.items[from] = val
	close(c.update)
	c.update = make(chan struct{})
}

func (c *collector) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.update)
	c.update = make(chan struct{})
}

// collectorStore implements a thread-safe keyed collector table.
// Dropped keys are tombstoned: operation keys are never reused within
// a session, so a packet for a dropped key is a straggler or a replay
// and must not resurrect the collector.
type collectorStore struct {
	sync.Mutex
	store    map[string]*collector
	released map[string]struct{}
}

// get returns the collector for key, creating it on first use, or nil
// when the key was already dropped.
func (s *collectorStore) get(key string) *collector {
	s.Lock()
	defer s.Unlock()
	if _, gone := s.released[key]; gone {
		return nil
	}
	c, ok := s.store[key]
	if !ok {
		c = newCollector()
		s.store[key] = c
	}
	return c
}

func (s *collectorStore) reset() {
	s.Lock()
	defer s.Unlock()
	s.store = map[string]*collector{}
	s.released = map[string]struct{}{}
}

func (s *collectorStore) drop(key string) {
	s.Lock()
	defer s.Unlock()
	delete(s.store, key)
	s.released[key] = struct{}{}
}

func (s *collectorStore) failAll(err error) {
	s.Lock()
	defer s.Unlock()
	for _, c := range s.store {
		c.fail(err)
	}
}

// livenessTable implements a thread-safe last-seen table
type livenessTable struct {
	sync.Mutex
	seen map[int]time.Time
}

func (t *livenessTable) reset(roster []party.Info, self int) {
	t.Lock()
	defer t.Unlock()
	now := time.Now()
	t.seen = map[int]time.Time{}
	for _, info := range roster {
		if info.ID == self {
			continue
		}
		t.seen[info.ID] = now
	}
}

func (t *livenessTable) touch(id int) {
	t.Lock()
	defer t.Unlock()
	if _, ok := t.seen[id]; ok {
		t.seen[id] = time.Now()
	}
}

func (t *livenessTable) silent(bound time.Duration) []int {
	t.Lock()
	defer t.Unlock()
	var silent []int
	now := time.Now()
	for id, last := range t.seen {
		if now.Sub(last) > bound {
			silent = append(silent, id)
		}
	}
	return silent
}
