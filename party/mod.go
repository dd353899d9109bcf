package party

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/mindhaven/mpcnet/storage"
	"github.com/mindhaven/mpcnet/transport"
	"github.com/mindhaven/mpcnet/types"
)

// Info describes one party of the roster. IDs must be unique and dense
// over [0, n). PublicKey is the hex-encoded compressed secp256k1 key
// the party authenticates with; the running process finds its own
// entry by matching its private key against the roster, never by
// host/port heuristics.
type Info struct {
	ID        int    `yaml:"id"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicKey string `yaml:"publicKey"`
}

// Address returns the host:port endpoint of the party.
func (i Info) Address() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// PublicKeyBytes decodes the hex compressed public key.
func (i Info) PublicKeyBytes() ([]byte, error) {
	b, err := hex.DecodeString(i.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("party %d: bad public key: %v", i.ID, err)
	}
	return b, nil
}

// Configuration gathers everything a party needs to run a session. It
// is stored immutably once Initialize has validated it.
type Configuration struct {
	// ProtocolVariant selects the engine, e.g. "mascot".
	ProtocolVariant string

	// NumParties is n, Threshold is the maximum number of corrupt
	// parties tolerated. 1 <= Threshold < NumParties.
	NumParties int
	Threshold  int

	// FieldModulus is the session prime p.
	FieldModulus *big.Int

	// SecurityParameter is the minimum bit length of the modulus.
	SecurityParameter int

	// PreprocessingBatchSize is how many triples/bits/masks one
	// generation round produces.
	PreprocessingBatchSize int

	// CompareBitLength bounds the inputs of Compare to [0, 2^k).
	CompareBitLength int

	// PrivateKey is this party's secp256k1 identity key.
	PrivateKey *ecdsa.PrivateKey

	// Socket is the bound transport endpoint.
	Socket transport.ClosableSocket

	// MessageRegistry dispatches incoming typed messages.
	MessageRegistry *Registry

	// ResultLog records every reconstructed value with its proof.
	// Defaults to an in-memory log.
	ResultLog storage.ResultLog

	// HeartbeatInterval is the liveness probe cadence. Silence for
	// longer than twice the interval is a party failure. Zero
	// disables heartbeats.
	HeartbeatInterval time.Duration

	// HandshakeTimeout bounds each channel handshake during Connect.
	HandshakeTimeout time.Duration

	// OpTimeout bounds the fan-in barriers of every online operation
	// and the blocking preprocessing pops.
	OpTimeout time.Duration
}

// MPC is the public surface of one protocol party. Operation request
// ids identify one logical operation across all parties: every party
// must invoke the same operation with the same reqID, and ids must not
// be reused within a session.
type MPC interface {
	// Initialize validates the configuration and derives this
	// party's session id proposal.
	Initialize() error

	// Connect resolves this party's identity against the roster,
	// opens a channel to every other party concurrently and runs the
	// session setup. Any single handshake failure closes everything
	// opened so far.
	Connect(ctx context.Context, roster []Info) error

	// Disconnect closes all channels and discards cached
	// preprocessing material. Idempotent.
	Disconnect() error

	// Share secret-shares the owner's value. Every party calls it;
	// only the owner's value argument is used. Returns this party's
	// authenticated share.
	Share(ctx context.Context, reqID string, owner int, value *big.Int) (types.Share, error)

	// Reconstruct opens a shared value. It fails with INVALID_SHARE
	// and aborts the session if the MAC check fails, and never
	// returns the arithmetically recovered value in that case.
	Reconstruct(ctx context.Context, reqID string, share types.Share) (types.Result, error)

	// Multiply computes a share of x*y, consuming one Beaver triple.
	Multiply(ctx context.Context, reqID string, x, y types.Share) (types.Share, error)

	// Compare computes a share of the indicator [x > y], with both
	// inputs bounded by the configured compare bit length.
	Compare(ctx context.Context, reqID string, x, y types.Share) (types.Share, error)

	// SelfID returns this party's roster id, or -1 before Connect.
	SelfID() int

	// SessionID returns the adopted session id, or this party's
	// proposal before Connect completes.
	SessionID() string
}
