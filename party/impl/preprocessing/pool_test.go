package preprocessing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindhaven/mpcnet/types"
)

func Test_Pool_Take_In_Deal_Order(t *testing.T) {
	p := newPool()
	p.add([]interface{}{"a", "b", "c"})

	failed := make(chan struct{})

	v, err := p.take(context.Background(), 0, time.Second, failed)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	v, err = p.take(context.Background(), 2, time.Second, failed)
	require.NoError(t, err)
	require.Equal(t, "c", v)

	require.Equal(t, 1, p.remaining())
}

func Test_Pool_Single_Use(t *testing.T) {
	p := newPool()
	p.add([]interface{}{"a"})

	failed := make(chan struct{})

	_, err := p.take(context.Background(), 0, time.Second, failed)
	require.NoError(t, err)

	// a second take of the same index must fail, never hand the item
	// out again
	_, err = p.take(context.Background(), 0, time.Second, failed)
	require.Error(t, err)
	require.Equal(t, types.ProtocolError, types.CodeOf(err))

	generated, consumed := p.stats()
	require.Equal(t, 1, generated)
	require.Equal(t, 1, consumed)
}

func Test_Pool_Take_Blocks_Until_Dealt(t *testing.T) {
	p := newPool()
	failed := make(chan struct{})

	done := make(chan interface{})
	go func() {
		v, err := p.take(context.Background(), 0, 2*time.Second, failed)
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(50 * time.Millisecond)
	p.add([]interface{}{"late"})

	select {
	case v := <-done:
		require.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("take did not wake up on deal")
	}
}

func Test_Pool_Take_Times_Out(t *testing.T) {
	p := newPool()
	failed := make(chan struct{})

	_, err := p.take(context.Background(), 0, 100*time.Millisecond, failed)
	require.Error(t, err)
	require.Equal(t, types.Timeout, types.CodeOf(err))
}

func Test_Pool_Take_Fails_On_Session_Failure(t *testing.T) {
	p := newPool()
	failed := make(chan struct{})
	close(failed)

	_, err := p.take(context.Background(), 0, time.Second, failed)
	require.Error(t, err)
}

func Test_Pool_Reserve_Is_Monotonic(t *testing.T) {
	p := newPool()

	require.Equal(t, 0, p.reserve(1))
	require.Equal(t, 1, p.reserve(5))
	require.Equal(t, 6, p.reserve(1))
}

func Test_Pool_Drain_Keeps_Counters(t *testing.T) {
	p := newPool()
	p.add([]interface{}{"a", "b"})

	failed := make(chan struct{})
	_, err := p.take(context.Background(), 0, time.Second, failed)
	require.NoError(t, err)

	p.drain()
	require.Equal(t, 0, p.remaining())

	generated, consumed := p.stats()
	require.Equal(t, 2, generated)
	require.Equal(t, 1, consumed)

	// index 1 was discarded with the pool, not consumed
	_, err = p.take(context.Background(), 1, 100*time.Millisecond, failed)
	require.Error(t, err)
}