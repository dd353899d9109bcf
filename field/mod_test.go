package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

var p61 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))

func Test_Field_New_Rejects_Bad_Modulus(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(big.NewInt(0))
	require.Error(t, err)
}

func Test_Field_Arithmetic(t *testing.T) {
	f, err := New(p61)
	require.NoError(t, err)

	a := big.NewInt(7)
	b := big.NewInt(5)

	require.Equal(t, big.NewInt(12), f.Add(a, b))
	require.Equal(t, big.NewInt(2), f.Sub(a, b))
	require.Equal(t, big.NewInt(35), f.Mul(a, b))

	// wrap-around
	pm1 := new(big.Int).Sub(p61, big.NewInt(1))
	require.Equal(t, big.NewInt(4), f.Add(pm1, big.NewInt(5)))
	require.Equal(t, pm1, f.Sub(big.NewInt(3), big.NewInt(4)))
	require.Equal(t, pm1, f.Neg(big.NewInt(1)))
}

func Test_Field_Inverse(t *testing.T) {
	f, err := New(p61)
	require.NoError(t, err)

	a := big.NewInt(1234567)
	inv, err := f.Inv(a)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), f.Mul(a, inv))

	_, err = f.Inv(big.NewInt(0))
	require.Error(t, err)

	// p reduces to zero
	_, err = f.Inv(p61)
	require.Error(t, err)
}

func Test_Field_Rand_In_Range(t *testing.T) {
	f, err := New(p61)
	require.NoError(t, err)

	for i := 0; i < 32; i++ {
		x, err := f.Rand()
		require.NoError(t, err)
		require.True(t, f.Contains(x))
	}
}

func Test_Field_Encode_Decode(t *testing.T) {
	f, err := New(p61)
	require.NoError(t, err)

	x := big.NewInt(42)
	buf := f.Encode(x)
	require.Len(t, buf, f.ByteSize())

	y, err := f.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, x, y)

	// wrong width
	_, err = f.Decode(buf[1:])
	require.Error(t, err)

	// out of range
	full := make([]byte, f.ByteSize())
	for i := range full {
		full[i] = 0xff
	}
	_, err = f.Decode(full)
	require.Error(t, err)
}

func Test_Field_Reduce_Negative(t *testing.T) {
	f, err := New(p61)
	require.NoError(t, err)

	require.Equal(t, new(big.Int).Sub(p61, big.NewInt(3)), f.Reduce(big.NewInt(-3)))
	require.True(t, f.Contains(f.Reduce(new(big.Int).Neg(p61))))
}
