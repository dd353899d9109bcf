// Package testing gathers the helpers used to spin up multi-party
// sessions in tests.
package testing

import (
	"context"
	"encoding/hex"
	"math/big"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/party/impl"
	"github.com/mindhaven/mpcnet/transport"
	"github.com/stretchr/testify/require"
)

// Option transforms the per-party base configuration before the party
// is created.
type Option func(*party.Configuration)

// WithModulus sets the session prime.
func WithModulus(p *big.Int) Option {
	return func(c *party.Configuration) {
		c.FieldModulus = p
		c.SecurityParameter = p.BitLen()
	}
}

// WithCompareBitLength bounds the inputs of Compare.
func WithCompareBitLength(k int) Option {
	return func(c *party.Configuration) { c.CompareBitLength = k }
}

// WithBatchSize sets the preprocessing batch size.
func WithBatchSize(size int) Option {
	return func(c *party.Configuration) { c.PreprocessingBatchSize = size }
}

// WithHeartbeat enables the liveness daemons.
func WithHeartbeat(interval time.Duration) Option {
	return func(c *party.Configuration) { c.HeartbeatInterval = interval }
}

// WithOpTimeout bounds the fan-in barriers of the online operations.
func WithOpTimeout(d time.Duration) Option {
	return func(c *party.Configuration) { c.OpTimeout = d }
}

// WithHandshakeTimeout bounds each channel handshake during Connect.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *party.Configuration) { c.HandshakeTimeout = d }
}

// WithThreshold sets the corruption threshold.
func WithThreshold(t int) Option {
	return func(c *party.Configuration) { c.Threshold = t }
}

// Session is a set of n initialized and connected test parties sharing
// one roster.
type Session struct {
	t       *testing.T
	Parties []party.MPC
	Roster  []party.Info
	sockets []transport.ClosableSocket
}

// NewSession creates n parties over the given transport, connects them
// all and fails the test on any setup error.
func NewSession(t *testing.T, transp transport.Transport, n int, opts ...Option) *Session {
	s := NewDisconnectedSession(t, transp, n, opts...)
	s.Connect()
	return s
}

// NewDisconnectedSession creates and initializes n parties without
// connecting them, for tests that drive Connect themselves.
func NewDisconnectedSession(t *testing.T, transp transport.Transport, n int,
	opts ...Option) *Session {

	s := Session{t: t}

	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)

		socket, err := transp.CreateSocket("127.0.0.1:0")
		require.NoError(t, err)
		s.sockets = append(s.sockets, socket)

		host, portStr, err := net.SplitHostPort(socket.GetAddress())
		require.NoError(t, err)
		port, err := strconv.Atoi(portStr)
		require.NoError(t, err)

		s.Roster = append(s.Roster, party.Info{
			ID:        i,
			Host:      host,
			Port:      port,
			PublicKey: hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey)),
		})

		conf := party.Configuration{
			NumParties:      n,
			Threshold:       n - 1,
			PrivateKey:      key,
			Socket:          socket,
			MessageRegistry: party.NewRegistry(),
			OpTimeout:       5 * time.Second,
		}
		for _, opt := range opts {
			opt(&conf)
		}

		p := impl.NewParty(conf)
		require.NoError(t, p.Initialize())
		s.Parties = append(s.Parties, p)
	}

	return &s
}

// Connect connects every party of the session concurrently.
func (s *Session) Connect() {
	errs := make([]error, len(s.Parties))
	wg := sync.WaitGroup{}
	for i, p := range s.Parties {
		wg.Add(1)
		go func(i int, p party.MPC) {
			defer wg.Done()
			errs[i] = p.Connect(context.Background(), s.Roster)
		}(i, p)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(s.t, err, "party %d failed to connect", i)
	}
}

// Close disconnects every party. Safe to defer right after NewSession.
func (s *Session) Close() {
	for _, p := range s.Parties {
		_ = p.Disconnect()
	}
}

// Run invokes fn once per party, concurrently, and returns when all
// have finished. Online operations need every party to participate, so
// nearly every test drives the parties through this.
func (s *Session) Run(fn func(id int, p party.MPC) error) []error {
	errs := make([]error, len(s.Parties))
	wg := sync.WaitGroup{}
	for i, p := range s.Parties {
		wg.Add(1)
		go func(i int, p party.MPC) {
			defer wg.Done()
			errs[i] = fn(i, p)
		}(i, p)
	}
	wg.Wait()
	return errs
}

// RequireRun is Run plus a no-error assertion on every party.
func (s *Session) RequireRun(fn func(id int, p party.MPC) error) {
	for i, err := range s.Run(fn) {
		require.NoError(s.t, err, "party %d", i)
	}
}
