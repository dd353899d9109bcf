package impl_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	z "github.com/mindhaven/mpcnet/internal/testing"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/party/impl"
	"github.com/mindhaven/mpcnet/transport/channel"
	"github.com/mindhaven/mpcnet/types"
)

func newSession(t *testing.T, opts ...z.Option) *z.Session {
	base := []z.Option{
		z.WithCompareBitLength(8),
		z.WithBatchSize(32),
		z.WithOpTimeout(10 * time.Second),
	}
	return z.NewSession(t, channel.NewTransport(), 3, append(base, opts...)...)
}

// shareAll runs one sharing on every party and returns the per-party
// shares.
func shareAll(t *testing.T, s *z.Session, reqID string, owner int,
	secret *big.Int) []types.Share {

	shares := make([]types.Share, len(s.Parties))
	s.RequireRun(func(id int, p party.MPC) error {
		var v *big.Int
		if id == owner {
			v = secret
		}
		sh, err := p.Share(context.Background(), reqID, owner, v)
		if err != nil {
			return err
		}
		shares[id] = sh
		return nil
	})
	return shares
}

// openAll reconstructs the per-party shares and checks every party
// agrees on the value.
func openAll(t *testing.T, s *z.Session, reqID string, shares []types.Share) *big.Int {
	results := make([]types.Result, len(s.Parties))
	s.RequireRun(func(id int, p party.MPC) error {
		res, err := p.Reconstruct(context.Background(), reqID, shares[id])
		if err != nil {
			return err
		}
		results[id] = res
		return nil
	})

	for i := 1; i < len(results); i++ {
		require.Zero(t, results[0].Value.Cmp(results[i].Value))
		require.Equal(t, results[0].Proof, results[i].Proof)
	}
	return results[0].Value
}

func Test_MPC_Session_Establishment(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	session := s.Parties[0].SessionID()
	require.NotEmpty(t, session)

	for i, p := range s.Parties {
		require.Equal(t, i, p.SelfID())
		require.Equal(t, session, p.SessionID())
	}
}

func Test_MPC_Share_Reconstruct(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	secret := big.NewInt(42)
	shares := shareAll(t, s, "x", 1, secret)

	// the shares alone reveal nothing useful on their own, but their
	// sum must be the secret
	opened := openAll(t, s, "open|x", shares)
	require.Zero(t, secret.Cmp(opened))
}

func Test_MPC_Share_Rejects_Bad_Owner(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	_, err := s.Parties[0].Share(context.Background(), "bad", 7, big.NewInt(1))
	require.Error(t, err)
	require.Equal(t, types.ProtocolError, types.CodeOf(err))
}

func Test_MPC_Multiply(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	x := shareAll(t, s, "x", 0, big.NewInt(7))
	y := shareAll(t, s, "y", 1, big.NewInt(5))

	product := make([]types.Share, len(s.Parties))
	s.RequireRun(func(id int, p party.MPC) error {
		sh, err := p.Multiply(context.Background(), "xy", x[id], y[id])
		if err != nil {
			return err
		}
		product[id] = sh
		return nil
	})

	opened := openAll(t, s, "open|xy", product)
	require.Zero(t, big.NewInt(35).Cmp(opened))
}

func Test_MPC_Concurrent_Multiplies(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	a := shareAll(t, s, "a", 0, big.NewInt(2))
	b := shareAll(t, s, "b", 1, big.NewInt(3))
	c := shareAll(t, s, "c", 2, big.NewInt(4))

	ab := make([]types.Share, len(s.Parties))
	ac := make([]types.Share, len(s.Parties))

	// both multiplications in flight at once: the sequencing party
	// must pin each one to its own triple
	s.RequireRun(func(id int, p party.MPC) error {
		var wg sync.WaitGroup
		var err1, err2 error
		wg.Add(2)
		go func() {
			defer wg.Done()
			ab[id], err1 = p.Multiply(context.Background(), "ab", a[id], b[id])
		}()
		go func() {
			defer wg.Done()
			ac[id], err2 = p.Multiply(context.Background(), "ac", a[id], c[id])
		}()
		wg.Wait()
		if err1 != nil {
			return err1
		}
		return err2
	})

	require.Zero(t, big.NewInt(6).Cmp(openAll(t, s, "open|ab", ab)))
	require.Zero(t, big.NewInt(8).Cmp(openAll(t, s, "open|ac", ac)))
}

func Test_MPC_Compare(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	x := shareAll(t, s, "x", 0, big.NewInt(7))
	y := shareAll(t, s, "y", 1, big.NewInt(5))

	compare := func(req string, l, r []types.Share) *big.Int {
		out := make([]types.Share, len(s.Parties))
		s.RequireRun(func(id int, p party.MPC) error {
			sh, err := p.Compare(context.Background(), req, l[id], r[id])
			if err != nil {
				return err
			}
			out[id] = sh
			return nil
		})
		return openAll(t, s, "open|"+req, out)
	}

	require.Zero(t, big.NewInt(1).Cmp(compare("gt", x, y)))
	require.Zero(t, big.NewInt(0).Cmp(compare("lt", y, x)))
	require.Zero(t, big.NewInt(0).Cmp(compare("eq", x, x)))
}

func Test_MPC_Tampered_Share_Aborts(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	shares := shareAll(t, s, "x", 0, big.NewInt(42))

	// party 2 lies about its share
	shares[2].Value = new(big.Int).Add(shares[2].Value, big.NewInt(1))

	errs := s.Run(func(id int, p party.MPC) error {
		_, err := p.Reconstruct(context.Background(), "open|x", shares[id])
		return err
	})

	for i, err := range errs {
		require.Error(t, err, "party %d accepted a tampered opening", i)
		require.Equal(t, types.InvalidShare, types.CodeOf(err), "party %d", i)
	}

	// the session is dead from here on
	_, err := s.Parties[0].Share(context.Background(), "y", 0, big.NewInt(1))
	require.Error(t, err)
}

func Test_MPC_Tampered_Mac_Aborts(t *testing.T) {
	s := newSession(t)
	defer s.Close()

	shares := shareAll(t, s, "x", 0, big.NewInt(42))

	// party 1 opens the right value but forges its MAC share
	shares[1].Mac = new(big.Int).Add(shares[1].Mac, big.NewInt(1))

	errs := s.Run(func(id int, p party.MPC) error {
		_, err := p.Reconstruct(context.Background(), "open|x", shares[id])
		return err
	})

	for i, err := range errs {
		require.Error(t, err, "party %d accepted a forged mac", i)
		require.Equal(t, types.InvalidShare, types.CodeOf(err), "party %d", i)
	}
}

func Test_MPC_Operations_Require_Connection(t *testing.T) {
	s := z.NewDisconnectedSession(t, channel.NewTransport(), 2)
	defer s.Close()

	_, err := s.Parties[0].Share(context.Background(), "x", 0, big.NewInt(1))
	require.Error(t, err)
	require.Equal(t, types.ProtocolError, types.CodeOf(err))
}

func Test_MPC_Connect_Times_Out_Without_Peers(t *testing.T) {
	s := z.NewDisconnectedSession(t, channel.NewTransport(), 2,
		z.WithHandshakeTimeout(300*time.Millisecond))
	defer s.Close()

	start := time.Now()
	err := s.Parties[0].Connect(context.Background(), s.Roster)
	require.Error(t, err)
	require.Equal(t, types.Timeout, types.CodeOf(err))
	require.Less(t, time.Since(start), 3*time.Second)
}

func Test_MPC_Connect_Rejects_Wrong_Roster(t *testing.T) {
	s := z.NewDisconnectedSession(t, channel.NewTransport(), 2)
	defer s.Close()

	err := s.Parties[0].Connect(context.Background(), s.Roster[:1])
	require.Error(t, err)
	require.Equal(t, types.ProtocolError, types.CodeOf(err))

	// roster without our key
	foreign := append([]party.Info{}, s.Roster...)
	foreign[0].PublicKey = foreign[1].PublicKey
	err = s.Parties[0].Connect(context.Background(), foreign)
	require.Error(t, err)
}

func Test_MPC_Initialize_Validates_Configuration(t *testing.T) {
	newConf := func() party.Configuration {
		socket, err := channel.NewTransport().CreateSocket("127.0.0.1:0")
		require.NoError(t, err)
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		return party.Configuration{
			NumParties:      2,
			Threshold:       1,
			PrivateKey:      key,
			Socket:          socket,
			MessageRegistry: party.NewRegistry(),
		}
	}

	conf := newConf()
	conf.Threshold = 2
	require.Error(t, impl.NewParty(conf).Initialize())

	conf = newConf()
	conf.FieldModulus = big.NewInt(1 << 20) // not prime
	conf.SecurityParameter = 16
	require.Error(t, impl.NewParty(conf).Initialize())

	conf = newConf()
	conf.PrivateKey = nil
	require.Error(t, impl.NewParty(conf).Initialize())

	require.NoError(t, impl.NewParty(newConf()).Initialize())
}
