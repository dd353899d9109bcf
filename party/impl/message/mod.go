package message

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/mindhaven/mpcnet/party"
	"github.com/mindhaven/mpcnet/transport"
	"github.com/mindhaven/mpcnet/types"
)

const ReadTimeout = time.Millisecond * 100
const WriteTimeout = time.Second * 5

// MessageModule owns the routing state of one session: the roster, the
// adopted session id, the per-party liveness table and the fan-in
// collectors protocol steps block on. All mutable state is accessed
// through its methods only.
type MessageModule struct {
	conf *party.Configuration

	mu      sync.RWMutex
	roster  []party.Info
	self    int
	session string
	adopted bool

	collectors collectorStore
	liveness   livenessTable

	failOnce sync.Once
	failed   chan struct{}
	failErr  error
}

// NewMessageModule creates the router and registers the session-level
// message handlers.
func NewMessageModule(conf *party.Configuration) *MessageModule {
	m := MessageModule{
		conf:       conf,
		self:       -1,
		collectors: collectorStore{
			store:    map[string]*collector{},
			released: map[string]struct{}{},
		},
		liveness:   livenessTable{seen: map[int]time.Time{}},
		failed:     make(chan struct{}),
	}

	// message registry callbacks
	m.conf.MessageRegistry.RegisterMessageCallback(types.HelloMessage{}, m.ProcessHelloMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.SessionMessage{}, m.ProcessSessionMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.HeartbeatMessage{}, m.ProcessHeartbeatMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.HeartbeatReplyMessage{}, m.ProcessHeartbeatReplyMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.SyncMessage{}, m.ProcessSyncMsg)
	m.conf.MessageRegistry.RegisterMessageCallback(types.ErrorMessage{}, m.ProcessErrorMsg)

	return &m
}

/** Identity & session **/

// SetIdentity installs the roster, this party's id and the locally
// derived session proposal. Called once at the start of Connect.
func (m *MessageModule) SetIdentity(roster []party.Info, self int, sessionProposal string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roster = append([]party.Info{}, roster...)
	m.self = self
	m.session = sessionProposal
	m.adopted = false

	// a failed Connect may be retried; barriers and tombstones of the
	// aborted handshake must not carry over
	m.collectors.reset()
}

// Adopt replaces the session proposal with the id announced by the
// session leader. From that point on inbound packets carrying another
// session id are rejected.
func (m *MessageModule) Adopt(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session
	m.adopted = true
}

// Session returns the current session id.
func (m *MessageModule) Session() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Self returns this party's roster id, or -1 before SetIdentity.
func (m *MessageModule) Self() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self
}

// N returns the roster size.
func (m *MessageModule) N() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.roster)
}

// Roster returns a copy of the roster.
func (m *MessageModule) Roster() []party.Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]party.Info{}, m.roster...)
}

func (m *MessageModule) address(dest int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if dest < 0 || dest >= len(m.roster) {
		return "", types.NewError(types.ProtocolError, "unknown party %d", dest)
	}
	return m.roster[dest].Address(), nil
}

/** Send paths **/

// Unicast sends a typed message to one party.
func (m *MessageModule) Unicast(dest int, msg types.Message) error {
	tmsg, err := m.conf.MessageRegistry.MarshalMessage(msg)
	if err != nil {
		return err
	}
	addr, err := m.address(dest)
	if err != nil {
		return err
	}
	header := transport.NewHeader(m.Session(), m.Self(), dest)
	pkt := transport.Packet{Header: &header, Msg: &tmsg}
	err = m.conf.Socket.Send(addr, pkt, WriteTimeout)
	if err != nil {
		return types.WrapError(types.NetworkError, err, "send to party %d", dest)
	}
	return nil
}

// Broadcast sends a typed message to every other party.
func (m *MessageModule) Broadcast(msg types.Message) error {
	self := m.Self()
	for _, info := range m.Roster() {
		if info.ID == self {
			continue
		}
		err := m.Unicast(info.ID, msg)
		if err != nil {
			return err
		}
	}
	return nil
}

/** Inbound processing **/

// ProcessPkt routes one inbound packet: liveness bookkeeping, session
// filtering, then registry dispatch.
func (m *MessageModule) ProcessPkt(pkt transport.Packet) error {
	if pkt.Header == nil || pkt.Msg == nil {
		return types.NewError(types.ProtocolError, "packet without header")
	}
	src := pkt.Header.Source
	if src < 0 || src >= m.N() {
		return types.NewError(types.ProtocolError, "packet from unknown party %d", src)
	}
	m.liveness.touch(src)

	// The filter only arms once the leader's session id has been
	// adopted: peers that adopted earlier may already stamp packets
	// with it while ours is still the local proposal. Hello and
	// session announcements are always accepted.
	m.mu.RLock()
	session, adopted := m.session, m.adopted
	m.mu.RUnlock()
	if adopted &&
		pkt.Msg.Type != (types.HelloMessage{}).Name() &&
		pkt.Msg.Type != (types.SessionMessage{}).Name() &&
		pkt.Header.SessionID != session {
		return types.NewError(types.ProtocolError,
			"foreign session id %s on %s from party %d", pkt.Header.SessionID, pkt.Msg.Type, src)
	}

	return m.conf.MessageRegistry.ProcessPacket(pkt)
}

// MessagingDaemon runs the receive loop until the context is
// cancelled. Malformed or misrouted packets are logged and skipped.
func (m *MessageModule) MessagingDaemon(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			pkt, err := m.conf.Socket.Recv(ReadTimeout)
			if err != nil {
				continue
			}
			err = m.ProcessPkt(pkt)
			if err != nil {
				log.Warn().Msgf("party %d: dropping packet: %v", m.Self(), err)
			}
		}
	}
}

// HeartbeatDaemon periodically probes every other party. A zero
// interval disables the mechanism.
func (m *MessageModule) HeartbeatDaemon(ctx context.Context, interval time.Duration) error {
	if interval == 0 {
		return nil
	}
	ticker := time.NewTicker(interval)

	go func() {
	out:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				break out
			case <-ticker.C:
				err := m.Broadcast(types.HeartbeatMessage{
					Timestamp: time.Now().UnixMilli(),
				})
				if err != nil {
					continue
				}
			}
		}
	}()

	return nil
}

// MonitorDaemon watches the liveness table. A party silent for longer
// than twice the heartbeat interval is a PARTY_FAILURE, and the
// maliciously-secure default is to abort the whole session: MAC checks
// assume full participation.
func (m *MessageModule) MonitorDaemon(ctx context.Context, interval time.Duration) error {
	if interval == 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	m.liveness.reset(m.Roster(), m.Self())

	go func() {
	out:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				break out
			case <-ticker.C:
				silent := m.liveness.silent(2 * interval)
				if len(silent) > 0 {
					m.Abort(types.NewError(types.PartyFailure,
						"no traffic from parties %v", silent), true)
					ticker.Stop()
					break out
				}
			}
		}
	}()

	return nil
}

/** Failure handling **/

// Abort moves the session into a failed state: every pending and
// future fan-in wait is rejected with err. When broadcast is set the
// failure is also announced to peers so they can independently abort.
func (m *MessageModule) Abort(err error, broadcast bool) {
	m.failOnce.Do(func() {
		log.Error().Msgf("party %d: session aborted: %v", m.Self(), err)
		m.failErr = err
		close(m.failed)
		m.collectors.failAll(err)
		if broadcast {
			sendErr := m.Broadcast(types.ErrorMessage{
				Code:   string(types.CodeOf(err)),
				Reason: err.Error(),
			})
			if sendErr != nil {
				log.Warn().Msgf("party %d: abort broadcast failed: %v", m.Self(), sendErr)
			}
		}
	})
}

// FailedChan returns a channel closed when the session aborts.
func (m *MessageModule) FailedChan() <-chan struct{} {
	return m.failed
}

// Failed returns the abort error, or nil while the session is healthy.
func (m *MessageModule) Failed() error {
	select {
	case <-m.failed:
		return m.failErr
	default:
		return nil
	}
}

/** Fan-in barriers **/

// Deliver feeds one party's contribution into the collector for key.
// Handlers call it for remote messages; operations call it directly
// for their own local contribution.
func (m *MessageModule) Deliver(key string, from int, val interface{}) {
	c := m.collectors.get(key)
	if c == nil {
		log.Debug().Msgf("party %d: late contribution from party %d for %s dropped",
			m.Self(), from, key)
		return
	}
	c.deliver(from, val)
}

// DeliverErr poisons the collector for key so its waiter fails.
func (m *MessageModule) DeliverErr(key string, err error) {
	c := m.collectors.get(key)
	if c == nil {
		return
	}
	c.fail(err)
}

// Release discards the collector for key. Operations whose final wait
// is an AwaitFrom call it once done with the barrier.
func (m *MessageModule) Release(key string) {
	m.collectors.drop(key)
}

// Await blocks until the collector for key holds one contribution from
// want distinct parties, the timeout elapses, or the session fails.
func (m *MessageModule) Await(ctx context.Context, key string, want int,
	timeout time.Duration) (map[int]interface{}, error) {

	out, err := m.await(ctx, key, timeout, func(c *collector) (map[int]interface{}, bool) {
		if len(c.items) < want {
			return nil, false
		}
		res := make(map[int]interface{}, len(c.items))
		for k, v := range c.items {
			res[k] = v
		}
		return res, true
	})
	if err == nil {
		m.collectors.drop(key)
	}
	return out, err
}

// AwaitFrom blocks until the collector for key holds the contribution
// of one specific party and returns it.
func (m *MessageModule) AwaitFrom(ctx context.Context, key string, from int,
	timeout time.Duration) (interface{}, error) {

	res, err := m.await(ctx, key, timeout, func(c *collector) (map[int]interface{}, bool) {
		v, ok := c.items[from]
		if !ok {
			return nil, false
		}
		return map[int]interface{}{from: v}, true
	})
	if err != nil {
		return nil, err
	}
	return res[from], nil
}

func (m *MessageModule) await(ctx context.Context, key string, timeout time.Duration,
	ready func(*collector) (map[int]interface{}, bool)) (map[int]interface{}, error) {

	c := m.collectors.get(key)
	if c == nil {
		return nil, types.NewError(types.ProtocolError, "barrier %s already released", key)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if c.err != nil {
			err := c.err
			c.mu.Unlock()
			return nil, err
		}
		out, ok := ready(c)
		if ok {
			c.mu.Unlock()
			return out, nil
		}
		update := c.update
		c.mu.Unlock()

		select {
		case <-update:
		case <-timer.C:
			return nil, types.NewError(types.Timeout, "barrier %s expired after %s", key, timeout)
		case <-m.failed:
			return nil, m.failErr
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, types.WrapError(types.Timeout, ctx.Err(),
					"barrier %s expired", key)
			}
			return nil, ctx.Err()
		}
	}
}

// SyncBarrier broadcasts readiness for a phase and waits until every
// party has done the same.
func (m *MessageModule) SyncBarrier(ctx context.Context, phase string, timeout time.Duration) error {
	key := "sync|" + phase
	m.Deliver(key, m.Self(), struct{}{})
	err := m.Broadcast(types.SyncMessage{Phase: phase})
	if err != nil {
		return err
	}
	_, err = m.Await(ctx, key, m.N(), timeout)
	return err
}
