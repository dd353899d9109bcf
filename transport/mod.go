package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
)

// Transport creates sockets bound to network addresses.
type Transport interface {
	CreateSocket(address string) (ClosableSocket, error)
}

// Socket sends and receives packets. A packet sent to a destination is
// delivered to the socket listening on that address.
type Socket interface {
	// Send sends a packet to the destination address. A zero timeout
	// means blocking until delivered.
	Send(dest string, pkt Packet, timeout time.Duration) error

	// Recv blocks until a packet is received or the timeout is
	// reached, in which case it returns a TimeoutErr.
	Recv(timeout time.Duration) (Packet, error)

	// GetAddress returns the address the socket is bound to.
	GetAddress() string
}

// ClosableSocket is a socket that can release its resources.
type ClosableSocket interface {
	Socket

	// Close closes the socket. Closing twice returns an error.
	Close() error
}

// Header describes the routing envelope of a packet. Source and
// Destination are party indexes, not addresses; the session id binds
// the packet to one protocol session.
type Header struct {
	PacketID    string
	SessionID   string
	Source      int
	Destination int
	Timestamp   int64
}

// NewHeader creates a header with a fresh packet id, stamped with the
// current wall clock in epoch milliseconds.
func NewHeader(sessionID string, source, destination int) Header {
	return Header{
		PacketID:    xid.New().String(),
		SessionID:   sessionID,
		Source:      source,
		Destination: destination,
		Timestamp:   time.Now().UnixMilli(),
	}
}

// Message is the typed payload of a packet. Type is the registered
// message name used for dispatch.
type Message struct {
	Type    string
	Payload json.RawMessage
}

// Copy returns a deep copy of the message.
func (m Message) Copy() Message {
	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)
	return Message{Type: m.Type, Payload: payload}
}

// Packet is what moves on the wire: a header plus a typed message.
type Packet struct {
	Header *Header
	Msg    *Message
}

// Marshal encodes the packet to JSON wire bytes.
func (p Packet) Marshal() ([]byte, error) {
	return json.Marshal(&p)
}

// Unmarshal decodes wire bytes into the packet.
func (p *Packet) Unmarshal(buf []byte) error {
	return json.Unmarshal(buf, p)
}

// Copy returns a deep copy of the packet.
func (p Packet) Copy() Packet {
	h := *p.Header
	m := p.Msg.Copy()
	return Packet{Header: &h, Msg: &m}
}

// TimeoutErr is returned when Send or Recv exceeds its bound.
type TimeoutErr time.Duration

// Error implements error.
func (e TimeoutErr) Error() string {
	return fmt.Sprintf("transport timeout after %s", time.Duration(e))
}

// TimeoutError wraps a duration into a TimeoutErr.
func TimeoutError(d time.Duration) error {
	return TimeoutErr(d)
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	_, ok := err.(TimeoutErr)
	return ok
}
