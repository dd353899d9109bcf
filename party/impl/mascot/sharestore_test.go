package mascot

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindhaven/mpcnet/field"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/party/impl/message"
	"github.com/mindhaven/mpcnet/types"
)

var p61 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))

// fixture simulates the local state of n parties: one engine each,
// plus the additively shared MAC key.
type fixture struct {
	t       *testing.T
	f       *field.Field
	engines []*Engine
	alphas  []*big.Int
	alpha   *big.Int
}

func newFixture(t *testing.T, n int) *fixture {
	f, err := field.New(p61)
	require.NoError(t, err)

	roster := make([]party.Info, n)
	for i := range roster {
		roster[i] = party.Info{ID: i}
	}

	fx := fixture{t: t, f: f, alpha: big.NewInt(0)}
	for i := 0; i < n; i++ {
		conf := &party.Configuration{MessageRegistry: party.NewRegistry()}
		m := message.NewMessageModule(conf)
		m.SetIdentity(roster, i, "test")
		fx.engines = append(fx.engines, NewEngine(conf, m, nil, f))

		a, err := f.Rand()
		require.NoError(t, err)
		fx.alphas = append(fx.alphas, a)
		fx.alpha = f.Add(fx.alpha, a)
	}
	return &fx
}

// split produces per-party authenticated shares of secret.
func (fx *fixture) split(secret *big.Int) []types.Share {
	n := len(fx.engines)
	shares := make([]types.Share, n)

	rest := new(big.Int).Set(secret)
	macRest := fx.f.Mul(fx.alpha, secret)
	for i := 0; i < n-1; i++ {
		v, err := fx.f.Rand()
		require.NoError(fx.t, err)
		m, err := fx.f.Rand()
		require.NoError(fx.t, err)
		shares[i] = types.Share{Value: v, Mac: m, Owner: i}
		rest = fx.f.Sub(rest, v)
		macRest = fx.f.Sub(macRest, m)
	}
	shares[n-1] = types.Share{Value: rest, Mac: macRest, Owner: n - 1}
	return shares
}

// check asserts the shares open to want and that the MACs authenticate
// it under the shared key.
func (fx *fixture) check(shares []types.Share, want *big.Int) {
	value := big.NewInt(0)
	mac := big.NewInt(0)
	for _, s := range shares {
		value = fx.f.Add(value, s.Value)
		mac = fx.f.Add(mac, s.Mac)
	}
	require.Zero(fx.t, fx.f.Reduce(want).Cmp(value))
	require.Zero(fx.t, fx.f.Mul(fx.alpha, value).Cmp(mac))
}

func Test_Shares_Linear_Combinations(t *testing.T) {
	fx := newFixture(t, 3)

	x := fx.split(big.NewInt(9))
	y := fx.split(big.NewInt(4))
	fx.check(x, big.NewInt(9))
	fx.check(y, big.NewInt(4))

	sum := make([]types.Share, 3)
	dif := make([]types.Share, 3)
	for i, e := range fx.engines {
		sum[i] = e.addShares(x[i], y[i])
		dif[i] = e.subShares(x[i], y[i])
	}
	fx.check(sum, big.NewInt(13))
	fx.check(dif, big.NewInt(5))
}

func Test_Shares_Public_Constants(t *testing.T) {
	fx := newFixture(t, 3)

	x := fx.split(big.NewInt(9))

	scaled := make([]types.Share, 3)
	shifted := make([]types.Share, 3)
	for i, e := range fx.engines {
		scaled[i] = e.mulPublic(x[i], big.NewInt(3))
		shifted[i] = e.addPublic(x[i], big.NewInt(5), fx.alphas[i])
	}
	fx.check(scaled, big.NewInt(27))
	fx.check(shifted, big.NewInt(14))
}

func Test_Shares_Zero(t *testing.T) {
	fx := newFixture(t, 3)

	zero := make([]types.Share, 3)
	for i, e := range fx.engines {
		zero[i] = e.zeroShare()
	}
	fx.check(zero, big.NewInt(0))
}

func Test_Share_Store(t *testing.T) {
	fx := newFixture(t, 1)
	e := fx.engines[0]

	_, ok := e.Lookup("x")
	require.False(t, ok)

	s := types.Share{Value: big.NewInt(1), Mac: big.NewInt(2)}
	e.store.put("x", s)

	got, ok := e.Lookup("x")
	require.True(t, ok)
	require.Equal(t, s, got)
}
