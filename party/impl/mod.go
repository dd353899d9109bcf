package impl

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mindhaven/mpcnet/field"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/party/impl/mascot"
	"github.com/mindhaven/mpcnet/party/impl/message"
	"github.com/mindhaven/mpcnet/party/impl/preprocessing"
	"github.com/mindhaven/mpcnet/storage"
	"github.com/mindhaven/mpcnet/types"
	"github.com/rs/zerolog/log"
)

// VariantMascot is the only protocol variant currently implemented.
const VariantMascot = "mascot"

// defaultModulus is the Mersenne prime 2^61 - 1.
var defaultModulus = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 61), big.NewInt(1))

// defaultHandshakeTimeout bounds each channel handshake during
// Connect when the configuration does not set one.
const defaultHandshakeTimeout = 30 * time.Second

// NewParty returns an MPC party for the given configuration, filling
// in defaults for unset fields.
func NewParty(conf party.Configuration) party.MPC {
	if conf.ProtocolVariant == "" {
		conf.ProtocolVariant = VariantMascot
	}
	if conf.FieldModulus == nil {
		conf.FieldModulus = defaultModulus
	}
	if conf.SecurityParameter == 0 {
		conf.SecurityParameter = 61
	}
	if conf.PreprocessingBatchSize == 0 {
		conf.PreprocessingBatchSize = 64
	}
	if conf.CompareBitLength == 0 {
		conf.CompareBitLength = 32
	}
	if conf.HandshakeTimeout == 0 {
		conf.HandshakeTimeout = defaultHandshakeTimeout
	}
	if conf.OpTimeout == 0 {
		conf.OpTimeout = 10 * time.Second
	}
	if conf.ResultLog == nil {
		conf.ResultLog = storage.NewInMemoryLog()
	}

	return &node{conf: &conf}
}

// node is the session coordinator: it validates the configuration,
// runs the connection handshake and delegates the online operations to
// the protocol engine.
type node struct {
	conf *party.Configuration

	mu          sync.Mutex
	initialized bool
	connected   bool
	proposal    string

	field   *field.Field
	message *message.MessageModule
	prep    *preprocessing.Preprocessing
	engine  *mascot.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Initialize implements party.MPC.
func (n *node) Initialize() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.initialized {
		return nil
	}

	conf := n.conf
	switch {
	case conf.ProtocolVariant != VariantMascot:
		return types.NewError(types.ProtocolError,
			"unsupported protocol variant %q", conf.ProtocolVariant)
	case conf.NumParties < 2:
		return types.NewError(types.ProtocolError,
			"need at least 2 parties, got %d", conf.NumParties)
	case conf.Threshold < 1 || conf.Threshold >= conf.NumParties:
		return types.NewError(types.ProtocolError,
			"threshold %d out of range [1, %d)", conf.Threshold, conf.NumParties)
	case conf.FieldModulus.BitLen() < conf.SecurityParameter:
		return types.NewError(types.CryptoError,
			"modulus has %d bits, security parameter demands %d",
			conf.FieldModulus.BitLen(), conf.SecurityParameter)
	case !conf.FieldModulus.ProbablyPrime(20):
		return types.NewError(types.CryptoError, "modulus is not prime")
	case conf.CompareBitLength < 1 ||
		conf.CompareBitLength+1 > conf.FieldModulus.BitLen()-2:
		return types.NewError(types.CryptoError,
			"compare bit length %d does not fit the modulus", conf.CompareBitLength)
	case conf.PreprocessingBatchSize < 1:
		return types.NewError(types.ProtocolError,
			"preprocessing batch size must be positive")
	case conf.PrivateKey == nil:
		return types.NewError(types.ProtocolError, "missing private key")
	case conf.Socket == nil:
		return types.NewError(types.ProtocolError, "missing transport socket")
	case conf.MessageRegistry == nil:
		return types.NewError(types.ProtocolError, "missing message registry")
	}

	// Session id proposal: every party derives one, party 0's wins.
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return types.WrapError(types.CryptoError, err, "failed to draw session nonce")
	}
	digest := sha256.Sum256(append(nonce, []byte(time.Now().String())...))
	n.proposal = hex.EncodeToString(digest[:])

	f, err := field.New(conf.FieldModulus)
	if err != nil {
		return types.WrapError(types.CryptoError, err, "bad field modulus")
	}
	n.field = f
	n.message = message.NewMessageModule(conf)
	n.prep = preprocessing.NewPreprocessingModule(conf, n.message, n.field)
	n.engine = mascot.NewEngine(conf, n.message, n.prep, n.field)

	n.initialized = true
	return nil
}

// Connect implements party.MPC.
func (n *node) Connect(ctx context.Context, roster []party.Info) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return types.NewError(types.ProtocolError, "party is not initialized")
	}
	if n.connected {
		return types.NewError(types.ProtocolError, "party is already connected")
	}

	self, err := n.resolveSelf(roster)
	if err != nil {
		return err
	}
	n.message.SetIdentity(roster, self, n.proposal)

	daemonCtx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.startDaemons(daemonCtx)

	if err := n.setup(ctx, self); err != nil {
		n.teardown()
		return err
	}

	// Background preprocessing so the first operations find material.
	go n.prep.WarmUp()

	n.connected = true
	log.Info().Int("party", self).Str("session", n.message.Session()).
		Msg("session established")
	return nil
}

// resolveSelf finds this party's roster entry by matching the public
// key derived from its private key.
func (n *node) resolveSelf(roster []party.Info) (int, error) {
	if len(roster) != n.conf.NumParties {
		return -1, types.NewError(types.ProtocolError,
			"roster has %d entries, configuration demands %d",
			len(roster), n.conf.NumParties)
	}

	seen := make(map[int]bool, len(roster))
	for _, info := range roster {
		if info.ID < 0 || info.ID >= len(roster) || seen[info.ID] {
			return -1, types.NewError(types.ProtocolError,
				"roster ids must be unique over [0, %d)", len(roster))
		}
		seen[info.ID] = true
	}

	pubkey := crypto.CompressPubkey(&n.conf.PrivateKey.PublicKey)
	for _, info := range roster {
		key, err := info.PublicKeyBytes()
		if err != nil {
			return -1, types.WrapError(types.ProtocolError, err, "bad roster entry")
		}
		if bytes.Equal(key, pubkey) {
			return info.ID, nil
		}
	}
	return -1, types.NewError(types.ProtocolError,
		"our public key is not in the roster")
}

// setup runs the handshakes, session agreement, MAC key distribution
// and the final synchronization barrier.
func (n *node) setup(ctx context.Context, self int) error {
	hctx, hcancel := context.WithTimeout(ctx, n.conf.HandshakeTimeout)
	defer hcancel()

	// Authenticated hello with every other party, concurrently. One
	// failure fails the whole connect.
	errs := make(chan error, n.conf.NumParties-1)
	for _, info := range n.message.Roster() {
		if info.ID == self {
			continue
		}
		go func(dest int) {
			if err := n.message.SendHello(dest); err != nil {
				errs <- err
				return
			}
			errs <- n.message.AwaitHello(hctx, dest, n.conf.HandshakeTimeout)
		}(info.ID)
	}
	for i := 0; i < n.conf.NumParties-1; i++ {
		if err := <-errs; err != nil {
			// keep the cause's code: a handshake that expired must
			// surface TIMEOUT, not NETWORK_ERROR
			code := types.NetworkError
			var mpcErr *types.MPCError
			if errors.As(err, &mpcErr) {
				code = mpcErr.Code
			}
			return types.WrapError(code, err, "handshake failed")
		}
	}

	// Party 0 leads session agreement; everyone else adopts its id.
	if self == 0 {
		if err := n.message.AnnounceSession(n.proposal); err != nil {
			return err
		}
		n.message.Adopt(n.proposal)
	} else {
		session, err := n.message.AwaitSession(hctx, n.conf.HandshakeTimeout)
		if err != nil {
			return err
		}
		n.message.Adopt(session)
	}

	if err := n.prep.SetupMacKey(hctx); err != nil {
		return err
	}

	return n.message.SyncBarrier(hctx, "connect", n.conf.HandshakeTimeout)
}

func (n *node) startDaemons(ctx context.Context) {
	daemons := map[string]func(context.Context) error{
		"messaging": n.message.MessagingDaemon,
	}
	if n.conf.HeartbeatInterval > 0 {
		daemons["heartbeat"] = func(ctx context.Context) error {
			return n.message.HeartbeatDaemon(ctx, n.conf.HeartbeatInterval)
		}
		daemons["monitor"] = func(ctx context.Context) error {
			return n.message.MonitorDaemon(ctx, n.conf.HeartbeatInterval)
		}
	}

	for name, daemon := range daemons {
		name, daemon := name, daemon
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := daemon(ctx); err != nil {
				log.Err(err).Str("daemon", name).Msg("daemon stopped")
			}
		}()
	}
}

// teardown stops the daemons, closes the socket and drops the cached
// preprocessing material. Safe to call more than once.
func (n *node) teardown() {
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	// Unblock the receive loop before waiting on it.
	if err := n.conf.Socket.Close(); err != nil {
		log.Debug().Msgf("closing socket: %v", err)
	}
	n.wg.Wait()
	n.prep.Cleanup()
	n.connected = false
}

// Disconnect implements party.MPC.
func (n *node) Disconnect() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.initialized {
		return nil
	}
	n.teardown()
	return nil
}

func (n *node) ready() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.connected {
		return types.NewError(types.ProtocolError, "party is not connected")
	}
	return nil
}

// Share implements party.MPC.
func (n *node) Share(ctx context.Context, reqID string, owner int,
	value *big.Int) (types.Share, error) {

	if err := n.ready(); err != nil {
		return types.Share{}, err
	}
	if owner < 0 || owner >= n.conf.NumParties {
		return types.Share{}, types.NewError(types.ProtocolError,
			"share %s: owner %d is not in the roster", reqID, owner)
	}
	return n.engine.Share(ctx, reqID, owner, value)
}

// Reconstruct implements party.MPC.
func (n *node) Reconstruct(ctx context.Context, reqID string,
	share types.Share) (types.Result, error) {

	if err := n.ready(); err != nil {
		return types.Result{}, err
	}
	return n.engine.Reconstruct(ctx, reqID, share)
}

// Multiply implements party.MPC.
func (n *node) Multiply(ctx context.Context, reqID string,
	x, y types.Share) (types.Share, error) {

	if err := n.ready(); err != nil {
		return types.Share{}, err
	}
	return n.engine.Multiply(ctx, reqID, x, y)
}

// Compare implements party.MPC.
func (n *node) Compare(ctx context.Context, reqID string,
	x, y types.Share) (types.Share, error) {

	if err := n.ready(); err != nil {
		return types.Share{}, err
	}
	return n.engine.Compare(ctx, reqID, x, y)
}

// SelfID implements party.MPC.
func (n *node) SelfID() int {
	if n.message == nil {
		return -1
	}
	return n.message.Self()
}

// SessionID implements party.MPC.
func (n *node) SessionID() string {
	if n.message == nil {
		return ""
	}
	if s := n.message.Session(); s != "" {
		return s
	}
	return n.proposal
}

var _ party.MPC = (*node)(nil)

// String helps debugging multi-party tests.
func (n *node) String() string {
	return fmt.Sprintf("party %d", n.SelfID())
}
