package types

// HelloMessage opens a channel between two parties. It is the only
// message, together with SessionMessage, accepted before a session id
// has been adopted. The signature covers the sender id and the sender
// public key, proving the channel endpoint controls the roster key.
type HelloMessage struct {
	Party     int
	Pubkey    []byte
	Signature []byte
}

// SessionMessage announces the session id derived by party 0. All other
// parties adopt it before any protocol traffic flows.
type SessionMessage struct {
	SessionID string
	Signature []byte
}

// HeartbeatMessage probes a remote party for liveness.
type HeartbeatMessage struct {
	Timestamp int64
}

// HeartbeatReplyMessage echoes a heartbeat, carrying both the original
// probe timestamp and the responder's own clock.
type HeartbeatReplyMessage struct {
	Echo      int64
	Timestamp int64
}

// SyncMessage implements the readiness barrier run before a protocol
// phase.
type SyncMessage struct {
	Phase string
}

// ErrorMessage broadcasts a failure so peers can independently abort.
type ErrorMessage struct {
	Code   string
	Reason string
}

// MacKeyMessage delivers one party's additive share of the global MAC
// key. Sent once per session; the key itself is never reconstructed.
type MacKeyMessage struct {
	Share []byte
}

// ShareMessage is the owner's broadcast during input sharing: the
// public difference between the secret and its consumed input mask.
type ShareMessage struct {
	ReqID   string
	Owner   int
	Index   int
	Epsilon []byte
}

// Stages of a reconstruction. StageValue opens the secret, StageMac
// opens the MAC check share that must sum to zero.
const (
	StageValue = "value"
	StageMac   = "mac"
)

// ReconstructMessage carries one party's contribution to an opening.
type ReconstructMessage struct {
	ReqID string
	Stage string
	Value []byte
}

// MultiplyMessage opens a party's shares of the blinded differences
// d = x-a and e = y-b of a Beaver multiplication. Index is the triple
// index reserved by the sequencing party and is only meaningful on its
// message; other parties echo it back.
type MultiplyMessage struct {
	ReqID string
	Index int
	D     []byte
	E     []byte
}

// CompareMessage opens a party's share of the masked difference used by
// the bitwise comparison circuit.
type CompareMessage struct {
	ReqID string
	Start int
	C     []byte
}

// TripleWire is one multiplication triple share on the wire.
type TripleWire struct {
	A    []byte
	B    []byte
	C    []byte
	MacA []byte
	MacB []byte
	MacC []byte
}

// BitWire is one random-bit share on the wire.
type BitWire struct {
	Value []byte
	Mac   []byte
}

// MaskWire is one input-mask share on the wire. Clear is only populated
// on the copy sent to the mask's owner.
type MaskWire struct {
	Value []byte
	Mac   []byte
	Clear []byte
}

// PrepRequestMessage asks the generator party for a fresh batch of
// preprocessing material. Kind is one of "triple", "bit", "mask".
type PrepRequestMessage struct {
	Kind  string
	Owner int
	Count int
}

// TripleBatchMessage delivers a batch of triple shares.
type TripleBatchMessage struct {
	Batch []TripleWire
}

// BitBatchMessage delivers a batch of random-bit shares.
type BitBatchMessage struct {
	Batch []BitWire
}

// MaskBatchMessage delivers a batch of input-mask shares for one owner.
type MaskBatchMessage struct {
	Owner int
	Batch []MaskWire
}
