package party

import (
	"encoding/json"
	"sync"

	"github.com/mindhaven/mpcnet/transport"
	"github.com/mindhaven/mpcnet/types"
	"golang.org/x/xerrors"
)

// Exec is the function called for a registered message type.
type Exec func(types.Message, transport.Packet) error

// Registry dispatches packets to the callbacks registered for their
// message type. Dispatch is explicit by name: the set of message types
// a node understands is exactly the set registered here.
type Registry struct {
	sync.RWMutex
	messages map[string]types.Message
	handlers map[string]Exec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		messages: map[string]types.Message{},
		handlers: map[string]Exec{},
	}
}

// RegisterMessageCallback registers the callback for the message's
// type name. Registering the same name twice overwrites.
func (r *Registry) RegisterMessageCallback(m types.Message, exec Exec) {
	r.Lock()
	defer r.Unlock()
	r.messages[m.Name()] = m
	r.handlers[m.Name()] = exec
}

// ProcessPacket unmarshals the packet payload into its registered
// message type and calls the callback.
func (r *Registry) ProcessPacket(pkt transport.Packet) error {
	r.RLock()
	proto, okM := r.messages[pkt.Msg.Type]
	exec, okH := r.handlers[pkt.Msg.Type]
	r.RUnlock()

	if !okM || !okH {
		return types.NewError(types.ProtocolError, "unknown message type %q", pkt.Msg.Type)
	}

	msg := proto.NewEmpty()
	err := json.Unmarshal(pkt.Msg.Payload, msg)
	if err != nil {
		return types.WrapError(types.ProtocolError, err, "malformed %q payload", pkt.Msg.Type)
	}
	return exec(msg, pkt)
}

// MarshalMessage wraps a typed message into a transport message.
func (r *Registry) MarshalMessage(msg types.Message) (transport.Message, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return transport.Message{}, xerrors.Errorf("marshal %q: %v", msg.Name(), err)
	}
	return transport.Message{Type: msg.Name(), Payload: data}, nil
}
