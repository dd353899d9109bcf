package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindhaven/mpcnet/party"
	"golang.org/x/xerrors"
)

func Test_Collector_Keeps_First_Contribution(t *testing.T) {
	c := newCollector()

	c.deliver(1, "first")
	c.deliver(1, "replay")

	require.Len(t, c.items, 1)
	require.Equal(t, "first", c.items[1])
}

func Test_Collector_Wakes_Waiters_On_Deliver(t *testing.T) {
	c := newCollector()

	c.mu.Lock()
	update := c.update
	c.mu.Unlock()

	go c.deliver(0, "x")

	select {
	case <-update:
	case <-time.After(time.Second):
		t.Fatal("no wakeup on deliver")
	}
}

func Test_Collector_Poison_Is_Sticky(t *testing.T) {
	c := newCollector()

	first := xerrors.New("boom")
	c.fail(first)
	c.fail(xerrors.New("later"))

	require.Equal(t, first, c.err)
}

func newCollectorStore() collectorStore {
	return collectorStore{
		store:    map[string]*collector{},
		released: map[string]struct{}{},
	}
}

func Test_CollectorStore_FailAll(t *testing.T) {
	s := newCollectorStore()

	a := s.get("a")
	b := s.get("b")

	err := xerrors.New("session failed")
	s.failAll(err)

	require.Equal(t, err, a.err)
	require.Equal(t, err, b.err)

	// same key returns the same collector
	require.Equal(t, a, s.get("a"))
}

func Test_CollectorStore_Dropped_Keys_Stay_Dropped(t *testing.T) {
	s := newCollectorStore()

	s.get("a")
	s.drop("a")

	// a straggler or replay must not resurrect the collector
	require.Nil(t, s.get("a"))
	require.Empty(t, s.store)
}

func Test_Liveness_Tracks_Silent_Parties(t *testing.T) {
	roster := []party.Info{{ID: 0}, {ID: 1}, {ID: 2}}

	table := livenessTable{seen: map[int]time.Time{}}
	table.reset(roster, 1)

	// unknown ids are ignored
	table.touch(42)

	require.Empty(t, table.silent(time.Second))

	time.Sleep(30 * time.Millisecond)
	table.touch(0)

	silent := table.silent(20 * time.Millisecond)
	require.Equal(t, []int{2}, silent)
}
