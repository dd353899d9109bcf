package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/mindhaven/mpcnet/transport"
	"golang.org/x/xerrors"
)

const socketBuffer = 4096

// NewTransport returns an in-memory transport where sockets exchange
// packets over channels. Used by tests and the local demo.
func NewTransport() transport.Transport {
	return &Transport{
		sockets: map[string]*Socket{},
	}
}

// Transport implements an in-process transport layer
//
// - implements transport.Transport
type Transport struct {
	sync.RWMutex
	sockets  map[string]*Socket
	nextPort int
}

// CreateSocket implements transport.Transport
func (t *Transport) CreateSocket(address string) (transport.ClosableSocket, error) {
	t.Lock()
	defer t.Unlock()

	if address == "" {
		return nil, xerrors.Errorf("empty address")
	}

	// a ":0" suffix asks for an automatically assigned address
	if address[len(address)-1] == '0' {
		t.nextPort++
		address = fmt.Sprintf("%s%d", address[:len(address)-1], t.nextPort)
	}
	if _, ok := t.sockets[address]; ok {
		return nil, xerrors.Errorf("address %s already in use", address)
	}

	s := &Socket{
		transport: t,
		myAddr:    address,
		ins:       make(chan transport.Packet, socketBuffer),
		stop:      make(chan struct{}),
	}
	t.sockets[address] = s
	return s, nil
}

func (t *Transport) get(address string) (*Socket, bool) {
	t.RLock()
	defer t.RUnlock()
	s, ok := t.sockets[address]
	return s, ok
}

func (t *Transport) remove(address string) {
	t.Lock()
	defer t.Unlock()
	delete(t.sockets, address)
}

// Socket implements an in-process socket
//
// - implements transport.Socket
// - implements transport.ClosableSocket
type Socket struct {
	transport *Transport
	myAddr    string
	ins       chan transport.Packet

	once   sync.Once
	closed bool
	stop   chan struct{}
}

// Close implements transport.Socket. It returns an error if already
// closed.
func (s *Socket) Close() error {
	if s.closed {
		return xerrors.Errorf("Socket already closed.")
	}
	s.closed = true
	s.once.Do(func() {
		close(s.stop)
		s.transport.remove(s.myAddr)
	})
	return nil
}

// Send implements transport.Socket
func (s *Socket) Send(dest string, pkt transport.Packet, timeout time.Duration) error {
	to, ok := s.transport.get(dest)
	if !ok {
		return xerrors.Errorf("no socket listening on %s", dest)
	}

	if timeout == 0 {
		select {
		case to.ins <- pkt.Copy():
			return nil
		case <-to.stop:
			return xerrors.Errorf("destination %s closed", dest)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case to.ins <- pkt.Copy():
		return nil
	case <-to.stop:
		return xerrors.Errorf("destination %s closed", dest)
	case <-timer.C:
		return transport.TimeoutError(timeout)
	}
}

// Recv implements transport.Socket. It blocks until a packet is
// received, or the timeout is reached. In the case the timeout is
// reached, return a TimeoutErr.
func (s *Socket) Recv(timeout time.Duration) (transport.Packet, error) {
	if timeout == 0 {
		select {
		case pkt := <-s.ins:
			return pkt, nil
		case <-s.stop:
			return transport.Packet{}, xerrors.Errorf("Socket closed")
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case pkt := <-s.ins:
		return pkt, nil
	case <-s.stop:
		return transport.Packet{}, xerrors.Errorf("Socket closed")
	case <-timer.C:
		return transport.Packet{}, transport.TimeoutError(timeout)
	}
}

// GetAddress implements transport.Socket. It returns the address
// assigned.
func (s *Socket) GetAddress() string {
	return s.myAddr
}
