package message

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
	"github.com/mindhaven/mpcnet/transport"
	"github.com/mindhaven/mpcnet/types"
)

func helloDigest(id int, pubkey []byte) []byte {
	return crypto.Keccak256([]byte(fmt.Sprintf("mpcnet-hello|%d|", id)), pubkey)
}

func sessionDigest(sessionID string) []byte {
	return crypto.Keccak256([]byte("mpcnet-session|" + sessionID))
}

// SendHello opens the handshake with one remote party: a signed proof
// that this endpoint controls the roster key.
func (m *MessageModule) SendHello(dest int) error {
	self := m.Self()
	pubkey := crypto.CompressPubkey(&m.conf.PrivateKey.PublicKey)
	sig, err := crypto.Sign(helloDigest(self, pubkey), m.conf.PrivateKey)
	if err != nil {
		return types.WrapError(types.CryptoError, err, "sign hello")
	}
	return m.Unicast(dest, types.HelloMessage{
		Party:     self,
		Pubkey:    pubkey,
		Signature: sig,
	})
}

// AwaitHello blocks until the signed hello of one remote party arrived
// and was verified.
func (m *MessageModule) AwaitHello(ctx context.Context, from int, timeout time.Duration) error {
	key := fmt.Sprintf("hello|%d", from)
	_, err := m.AwaitFrom(ctx, key, from, timeout)
	m.Release(key)
	return err
}

// AnnounceSession signs and broadcasts the session id derived by this
// party. Only the session leader (party 0) calls it.
func (m *MessageModule) AnnounceSession(sessionID string) error {
	sig, err := crypto.Sign(sessionDigest(sessionID), m.conf.PrivateKey)
	if err != nil {
		return types.WrapError(types.CryptoError, err, "sign session id")
	}
	m.Deliver("session", m.Self(), sessionID)
	return m.Broadcast(types.SessionMessage{SessionID: sessionID, Signature: sig})
}

// AwaitSession blocks until the leader's session announcement arrived
// and returns the session id to adopt.
func (m *MessageModule) AwaitSession(ctx context.Context, timeout time.Duration) (string, error) {
	v, err := m.AwaitFrom(ctx, "session", 0, timeout)
	m.Release("session")
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

/** Handlers **/

// ProcessHelloMsg is a callback function to handle a received
// handshake hello
func (m *MessageModule) ProcessHelloMsg(msg types.Message, pkt transport.Packet) error {
	hello, ok := msg.(*types.HelloMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	if hello.Party != pkt.Header.Source {
		return types.NewError(types.ProtocolError,
			"hello claims party %d but came from %d", hello.Party, pkt.Header.Source)
	}

	roster := m.Roster()
	if hello.Party < 0 || hello.Party >= len(roster) {
		return types.NewError(types.ProtocolError, "hello from unknown party %d", hello.Party)
	}
	expected, err := roster[hello.Party].PublicKeyBytes()
	if err != nil {
		return types.WrapError(types.CryptoError, err, "roster key")
	}
	if !bytes.Equal(expected, hello.Pubkey) {
		return types.NewError(types.CryptoError, "hello key mismatch for party %d", hello.Party)
	}
	if len(hello.Signature) < 64 ||
		!crypto.VerifySignature(hello.Pubkey, helloDigest(hello.Party, hello.Pubkey), hello.Signature[:64]) {
		return types.NewError(types.CryptoError, "bad hello signature from party %d", hello.Party)
	}

	m.Deliver(fmt.Sprintf("hello|%d", hello.Party), hello.Party, struct{}{})
	return nil
}

// ProcessSessionMsg is a callback function to handle the leader's
// session announcement
func (m *MessageModule) ProcessSessionMsg(msg types.Message, pkt transport.Packet) error {
	session, ok := msg.(*types.SessionMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	if pkt.Header.Source != 0 {
		return types.NewError(types.ProtocolError,
			"session announcement from non-leader party %d", pkt.Header.Source)
	}

	leaderKey, err := m.Roster()[0].PublicKeyBytes()
	if err != nil {
		return types.WrapError(types.CryptoError, err, "leader key")
	}
	if len(session.Signature) < 64 ||
		!crypto.VerifySignature(leaderKey, sessionDigest(session.SessionID), session.Signature[:64]) {
		return types.NewError(types.CryptoError, "bad session signature")
	}

	m.Deliver("session", 0, session.SessionID)
	return nil
}

// ProcessHeartbeatMsg is a callback function to handle a liveness
// probe; it echoes back immediately with the current clock
func (m *MessageModule) ProcessHeartbeatMsg(msg types.Message, pkt transport.Packet) error {
	hb, ok := msg.(*types.HeartbeatMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	return m.Unicast(pkt.Header.Source, types.HeartbeatReplyMessage{
		Echo:      hb.Timestamp,
		Timestamp: time.Now().UnixMilli(),
	})
}

// ProcessHeartbeatReplyMsg is a callback function to handle a
// heartbeat echo. Receiving the packet already refreshed the liveness
// table.
func (m *MessageModule) ProcessHeartbeatReplyMsg(msg types.Message, pkt transport.Packet) error {
	_, ok := msg.(*types.HeartbeatReplyMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	return nil
}

// ProcessSyncMsg is a callback function to handle a readiness barrier
// message
func (m *MessageModule) ProcessSyncMsg(msg types.Message, pkt transport.Packet) error {
	sync, ok := msg.(*types.SyncMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	m.Deliver("sync|"+sync.Phase, pkt.Header.Source, struct{}{})
	return nil
}

// ProcessErrorMsg is a callback function to handle a failure reported
// by a peer. The local session aborts without re-broadcasting, so an
// error storm cannot build up.
func (m *MessageModule) ProcessErrorMsg(msg types.Message, pkt transport.Packet) error {
	errMsg, ok := msg.(*types.ErrorMessage)
	if !ok {
		return fmt.Errorf("wrong type: %T", msg)
	}
	log.Warn().Msgf("party %d: party %d reported %s: %s",
		m.Self(), pkt.Header.Source, errMsg.Code, errMsg.Reason)
	m.Abort(&types.MPCError{
		Code:   types.ErrorCode(errMsg.Code),
		Reason: fmt.Sprintf("reported by party %d: %s", pkt.Header.Source, errMsg.Reason),
	}, false)
	return nil
}
