package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindhaven/mpcnet/types"
)

func Test_ResultLog_Record_Get(t *testing.T) {
	l := NewInMemoryLog()

	res := types.Result{Value: big.NewInt(35), Proof: []byte{1, 2, 3}}
	require.NoError(t, l.Record("xy", res))

	got, ok := l.Get("xy")
	require.True(t, ok)
	require.Equal(t, res, got)

	_, ok = l.Get("nope")
	require.False(t, ok)
	require.Equal(t, 1, l.Len())
}

func Test_ResultLog_Is_Append_Only(t *testing.T) {
	l := NewInMemoryLog()

	require.NoError(t, l.Record("x", types.Result{Value: big.NewInt(1)}))
	require.Error(t, l.Record("x", types.Result{Value: big.NewInt(2)}))

	got, _ := l.Get("x")
	require.Zero(t, big.NewInt(1).Cmp(got.Value))
}

func Test_ResultLog_Digest_Order_Independent(t *testing.T) {
	a := NewInMemoryLog()
	require.NoError(t, a.Record("x", types.Result{Value: big.NewInt(1)}))
	require.NoError(t, a.Record("y", types.Result{Value: big.NewInt(2)}))

	b := NewInMemoryLog()
	require.NoError(t, b.Record("y", types.Result{Value: big.NewInt(2)}))
	require.NoError(t, b.Record("x", types.Result{Value: big.NewInt(1)}))

	require.Equal(t, a.Digest(), b.Digest())

	require.NoError(t, b.Record("z", types.Result{Value: big.NewInt(3)}))
	require.NotEqual(t, a.Digest(), b.Digest())
}
