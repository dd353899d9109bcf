package tcp

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mindhaven/mpcnet/transport"
	"golang.org/x/xerrors"
)

// maxFrameSize bounds one wire frame. Preprocessing batches are the
// largest packets and stay well under this.
const maxFrameSize = 1 << 22

const inboundBuffer = 1024

// NewTCP returns a new tcp transport implementation. Each socket keeps
// one persistent connection per remote address.
func NewTCP() transport.Transport {
	return &TCP{}
}

// TCP implements a transport layer over persistent TCP connections
//
// - implements transport.Transport
type TCP struct {
}

func checkValidAddr(address string) bool {
	chunks := strings.Split(address, ":")
	if len(chunks) != 2 {
		return false
	}
	if net.ParseIP(chunks[0]) == nil {
		return false
	}
	port, err := strconv.Atoi(chunks[1])
	if err != nil {
		return false
	}
	return port <= 65535
}

// CreateSocket implements transport.Transport
func (t *TCP) CreateSocket(address string) (transport.ClosableSocket, error) {
	if !checkValidAddr(address) {
		return nil, xerrors.Errorf("Invalid address %s", address)
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		listener: listener,
		myAddr:   listener.Addr().String(),
		ins:      make(chan transport.Packet, inboundBuffer),
		conns:    map[string]*conn{},
		stop:     make(chan struct{}),
	}
	go s.acceptLoop()

	return s, nil
}

// Socket implements a network socket using persistent TCP connections.
//
// - implements transport.Socket
// - implements transport.ClosableSocket
type Socket struct {
	listener net.Listener
	myAddr   string
	ins      chan transport.Packet

	mu     sync.Mutex
	conns  map[string]*conn
	closed bool
	stop   chan struct{}
}

type conn struct {
	sync.Mutex
	c net.Conn
}

func (s *Socket) acceptLoop() {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.readLoop(c)
	}
}

func (s *Socket) readLoop(c net.Conn) {
	defer c.Close()
	for {
		var sizeBuf [4]byte
		if _, err := io.ReadFull(c, sizeBuf[:]); err != nil {
			return
		}
		size := binary.BigEndian.Uint32(sizeBuf[:])
		if size > maxFrameSize {
			return
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(c, buf); err != nil {
			return
		}
		pkt := transport.Packet{}
		if err := pkt.Unmarshal(buf); err != nil {
			continue
		}
		select {
		case s.ins <- pkt:
		case <-s.stop:
			return
		}
	}
}

// Close implements transport.Socket. It returns an error if already
// closed.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return xerrors.Errorf("Socket already closed.")
	}
	s.closed = true
	close(s.stop)
	s.listener.Close()
	for _, c := range s.conns {
		c.c.Close()
	}
	s.conns = map[string]*conn{}
	return nil
}

func (s *Socket) getConn(dest string, timeout time.Duration) (*conn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, xerrors.Errorf("Socket closed")
	}
	if c, ok := s.conns[dest]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	if timeout == 0 {
		timeout = time.Second * 30
	}
	raw, err := net.DialTimeout("tcp", dest, timeout)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		raw.Close()
		return nil, xerrors.Errorf("Socket closed")
	}
	if existing, ok := s.conns[dest]; ok {
		raw.Close()
		return existing, nil
	}
	c := &conn{c: raw}
	s.conns[dest] = c
	return c, nil
}

func (s *Socket) dropConn(dest string, c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conns[dest]; ok && existing == c {
		existing.c.Close()
		delete(s.conns, dest)
	}
}

// Send implements transport.Socket
func (s *Socket) Send(dest string, pkt transport.Packet, timeout time.Duration) error {
	if !checkValidAddr(dest) {
		return xerrors.Errorf("Invalid address %s", dest)
	}

	c, err := s.getConn(dest, timeout)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return transport.TimeoutError(timeout)
		}
		return err
	}

	bytes, err := pkt.Marshal()
	if err != nil {
		return err
	}
	frame := make([]byte, 4+len(bytes))
	binary.BigEndian.PutUint32(frame, uint32(len(bytes)))
	copy(frame[4:], bytes)

	c.Lock()
	defer c.Unlock()
	if timeout != 0 {
		c.c.SetWriteDeadline(time.Now().Add(timeout))
	} else {
		c.c.SetWriteDeadline(time.Time{})
	}
	_, err = c.c.Write(frame)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		s.dropConn(dest, c)
		return transport.TimeoutError(timeout)
	}
	if err != nil {
		// the remote may have gone away; drop the cached connection
		// so the next send redials
		s.dropConn(dest, c)
		return err
	}
	return nil
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
// assigned. Can be useful in the case one provided a :0 address, which
// makes the system use a random free port.
func (s *Socket) GetAddress() string {
	return s.myAddr
}
