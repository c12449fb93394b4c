// Package session implements the single-threaded cooperative actor (C4)
// that owns a session's UDP circuit, sequence counter, ack queues, and
// lifecycle state machine.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/config"
	"github.com/osgrid/metaviewer/internal/monitoring"
	"github.com/osgrid/metaviewer/internal/packets"
	"github.com/osgrid/metaviewer/internal/reliability"
	"github.com/osgrid/metaviewer/internal/wire"
)

// Conn abstracts the UDP socket a session owns, so tests can substitute an
// in-memory pair instead of a real kernel socket.
type Conn interface {
	ReadFrom(b []byte) (n int, addr net.Addr, err error)
	WriteTo(b []byte, addr net.Addr) (n int, err error)
	Close() error
}

// CapabilityRequester is the narrow slice of the HTTP capability client
// (C7) the login sequence needs; kept as an interface here so the session
// package does not import internal/capability directly.
type CapabilityRequester interface {
	RequestCapabilities(ctx context.Context, seedURL string, names []string) (map[string]string, error)
}

// Handler processes one decoded inbound message. Handlers run on the
// actor's dispatch goroutine and must not block.
type Handler func(a *Actor, msg packets.Message) error

// LoginRecord is the session record the out-of-core login collaborator
// hands to the actor once external authentication succeeds.
type LoginRecord struct {
	AgentID       uuid.UUID
	SessionID     uuid.UUID
	CircuitCode   uint32
	SeedURL       string
	SimulatorAddr net.Addr
	// Throttles sets the per-category outbound bandwidth caps sent via
	// AgentThrottle; the zero value leaves every category at
	// DefaultThrottles.
	Throttles [7]float32
}

// DefaultThrottles mirrors the IEC/SL-wiki default per-category bandwidth
// caps, in kbps: resend, land, wind, cloud, task, texture, asset.
var DefaultThrottles = [7]float32{40, 40, 10, 10, 440, 440, 440}

// RequiredCapabilities is the closed set of capability names the login
// sequence requests at minimum.
var RequiredCapabilities = []string{"GetMesh", "GetTexture", "FetchInventoryDescendents2"}

// Actor is a session's cooperative actor: one per logged-in agent, driving
// a single UDP circuit from a single dispatch goroutine.
type Actor struct {
	conn   Conn
	remote net.Addr
	cfg    *config.SessionConfig

	seq      atomic.Uint32
	outbound *reliability.OutboundTracker
	inbound  *reliability.InboundTracker

	handlersMu sync.RWMutex
	handlers   map[packets.Kind]Handler

	stateMu  sync.Mutex
	state    State
	watchers map[string]chan State

	capabilities map[string]string

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Actor bound to conn/remote, not yet started.
func New(conn Conn, remote net.Addr, cfg *config.SessionConfig) *Actor {
	if cfg == nil {
		cfg = config.EmptySessionConfig()
	}
	a := &Actor{
		conn:     conn,
		remote:   remote,
		cfg:      cfg,
		state:    StateStarting,
		handlers: make(map[packets.Kind]Handler),
		watchers: make(map[string]chan State),
		done:     make(chan struct{}),
	}
	a.outbound = reliability.NewOutboundTracker(a, cfg.GetResendTimeout(), cfg.GetResendMaxAttempts())
	a.inbound = reliability.NewInboundTracker(cfg.GetAckDrainThreshold())
	return a
}

// RegisterHandler installs the steady-state routing table entry for kind.
// Calling it again for the same kind replaces the previous handler.
func (a *Actor) RegisterHandler(kind packets.Kind, h Handler) {
	a.handlersMu.Lock()
	defer a.handlersMu.Unlock()
	a.handlers[kind] = h
}

// CapabilityURL returns the URL the seed exchange bound to name, or "" if
// Login has not completed or the simulator does not advertise that
// capability.
func (a *Actor) CapabilityURL(name string) string {
	return a.capabilities[name]
}

// State returns the actor's current lifecycle state.
func (a *Actor) State() State {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

// Subscribe returns a channel woken on every state transition. Callers must
// Unsubscribe when done to release the channel.
func (a *Actor) Subscribe() (string, chan State) {
	id := randomWatcherID()
	ch := make(chan State, 1)
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.watchers[id] = ch
	return id, ch
}

// Unsubscribe removes a state-change watcher.
func (a *Actor) Unsubscribe(id string) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if ch, ok := a.watchers[id]; ok {
		close(ch)
		delete(a.watchers, id)
	}
}

func randomWatcherID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func (a *Actor) setState(s State) {
	a.stateMu.Lock()
	a.state = s
	watchers := make([]chan State, 0, len(a.watchers))
	for _, ch := range a.watchers {
		watchers = append(watchers, ch)
	}
	a.stateMu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- s:
		default:
			// slow observer; state is also readable via State() on demand
		}
	}
}

// nextSequence assigns the next outbound sequence number. Sequence numbers
// are assigned monotonically and only at send time, never at enqueue time.
func (a *Actor) nextSequence() uint32 {
	return a.seq.Add(1)
}

// send encodes and transmits one packet, optionally tracking it for resend.
func (a *Actor) send(kind packets.Kind, body []byte, zeroCoded bool, reliable bool) (uint32, error) {
	seq := a.nextSequence()
	h := wire.Header{
		ZeroCoded: zeroCoded,
		Reliable:  reliable,
		Sequence:  seq,
		Msg:       packets.MsgIDFor(kind),
	}

	var acks []uint32
	if reliable {
		acks = a.inbound.Drain()
	}

	encoded, err := wire.EncodePacket(h, body, acks)
	if err != nil {
		return 0, fmt.Errorf("session: encode %v: %w", kind, err)
	}
	if _, err := a.conn.WriteTo(encoded, a.remote); err != nil {
		return 0, fmt.Errorf("session: write %v: %w", kind, err)
	}
	if reliable {
		a.outbound.Track(seq, encoded)
	}
	return seq, nil
}

// SendReliable transmits a zero-coded, reliable packet and arms its resend
// timer via the reliability layer.
func (a *Actor) SendReliable(kind packets.Kind, body []byte) (uint32, error) {
	return a.send(kind, body, true, true)
}

// SendUnreliable transmits a best-effort packet with no resend tracking.
func (a *Actor) SendUnreliable(kind packets.Kind, body []byte) (uint32, error) {
	return a.send(kind, body, false, false)
}

// ResendPacket implements reliability.Sender: it re-emits a previously
// encoded packet with the resent flag set, keeping the original sequence
// number untouched.
func (a *Actor) ResendPacket(seq uint32, payload []byte, attempt int) error {
	resent := wire.MarkResent(payload)
	monitoring.Logf("session: resending sequence %d (attempt %d)", seq, attempt)
	_, err := a.conn.WriteTo(resent, a.remote)
	return err
}

// HandleTransportError implements reliability.Sender: a reliable send
// exhausted its resend budget without being acked. The circuit is presumed
// dead, so the actor stops rather than leaving the caller waiting forever.
func (a *Actor) HandleTransportError(err *reliability.TransportError) {
	monitoring.Logf("session: %v, stopping", err)
	a.setState(StateStopping)
	if a.cancel != nil {
		a.cancel()
	}
}

// Login drives the Starting-state login sub-protocol.
func (a *Actor) Login(ctx context.Context, rec LoginRecord, caps CapabilityRequester) error {
	if rec.SimulatorAddr != nil {
		a.remote = rec.SimulatorAddr
	}

	capResult, err := caps.RequestCapabilities(ctx, rec.SeedURL, RequiredCapabilities)
	if err != nil {
		return &LoginError{Step: StepRequestCapabilities, Err: err}
	}
	a.capabilities = capResult

	ucc := packets.EncodeUseCircuitCode(packets.UseCircuitCode{
		CircuitCode: rec.CircuitCode,
		SessionID:   rec.SessionID,
		AgentID:     rec.AgentID,
	})
	if _, err := a.SendReliable(packets.KindUseCircuitCode, ucc); err != nil {
		return &LoginError{Step: StepUseCircuitCode, Err: err}
	}

	select {
	case <-time.After(a.cfg.GetCompleteAgentMovementDelay()):
	case <-ctx.Done():
		return &LoginError{Step: StepCompleteAgentMovement, Err: ctx.Err()}
	}

	cam := packets.EncodeCompleteAgentMovement(packets.CompleteAgentMovement{
		AgentID:     rec.AgentID,
		SessionID:   rec.SessionID,
		CircuitCode: rec.CircuitCode,
	})
	if _, err := a.SendReliable(packets.KindCompleteAgentMovement, cam); err != nil {
		return &LoginError{Step: StepCompleteAgentMovement, Err: err}
	}

	throttles := rec.Throttles
	if throttles == ([7]float32{}) {
		throttles = DefaultThrottles
	}
	throttle := packets.EncodeAgentThrottle(packets.AgentThrottle{
		GenCounter: 0,
		Throttles:  throttles,
	})
	if _, err := a.SendReliable(packets.KindAgentThrottle, throttle); err != nil {
		return &LoginError{Step: StepAgentThrottle, Err: err}
	}

	return nil
}

// CompleteHandshake emits RegionHandshakeReply and marks the session
// Running, the final step of the login sub-protocol. The caller invokes this from the RegionHandshake steady-state
// handler once the server's handshake has arrived.
func (a *Actor) CompleteHandshake(rec LoginRecord, flags uint32) error {
	reply := packets.EncodeRegionHandshakeReply(packets.RegionHandshakeReply{
		AgentID:   rec.AgentID,
		SessionID: rec.SessionID,
		Flags:     flags,
	})
	if _, err := a.SendReliable(packets.KindRegionHandshakeReply, reply); err != nil {
		return &LoginError{Step: StepRegionHandshake, Err: err}
	}
	a.setState(StateRunning)
	return nil
}

// datagramResult carries one ReadFrom outcome from the blocking reader
// goroutine back to the dispatch loop.
type datagramResult struct {
	data []byte
	err  error
}

// Run starts the actor's dispatch loop; it blocks until ctx is cancelled or
// a fatal read error occurs. Run owns Stopping/Stopped transitions
// regardless of how it exits. The blocking
// socket read happens on its own goroutine
// so cancellation is timely even while a read is in flight.
func (a *Actor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	defer close(a.done)
	defer a.outbound.Close()

	reads := make(chan datagramResult)
	go func() {
		buf := make([]byte, 8192)
		for {
			n, _, err := a.conn.ReadFrom(buf)
			if err != nil {
				select {
				case reads <- datagramResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case reads <- datagramResult{data: cp}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			a.setState(StateStopping)
			a.setState(StateStopped)
			return ctx.Err()
		case res := <-reads:
			if res.err != nil {
				a.setState(StateStopping)
				a.setState(StateStopped)
				return fmt.Errorf("session: read: %w", res.err)
			}
			if err := a.handleDatagram(res.data); err != nil {
				monitoring.Logf("session: dispatch error: %v", err)
			}
		}
	}
}

// Stop requests an orderly shutdown of the dispatch loop.
func (a *Actor) Stop() {
	a.setState(StateStopping)
	if a.cancel != nil {
		a.cancel()
	}
}

// Done is closed once Run has returned.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) handleDatagram(raw []byte) error {
	decoded, err := wire.DecodePacket(raw)
	if err != nil {
		return fmt.Errorf("decode packet: %w", err)
	}

	if decoded.Header.Reliable {
		if a.inbound.Record(decoded.Header.Sequence) {
			a.flushAcks()
		}
	}
	if len(decoded.AppendedAcks) > 0 {
		a.outbound.Ack(decoded.AppendedAcks)
	}

	msg, err := packets.Decode(decoded.Header.Msg.Frequency, decoded.Header.Msg.ID, decoded.Body)
	if err != nil {
		return fmt.Errorf("decode body: %w", err)
	}

	if msg.Kind() == packets.KindPacketAck {
		ack := msg.(packets.PacketAck)
		a.outbound.Ack(ack.IDs)
		return nil
	}
	if msg.Kind() == packets.KindStartPingCheck {
		ping := msg.(packets.StartPingCheck)
		_, err := a.SendUnreliable(packets.KindCompletePingCheck, packets.EncodeCompletePingCheck(packets.CompletePingCheck{PingID: ping.PingID}))
		return err
	}
	if msg.Kind() == packets.KindDisableSimulator {
		a.Stop()
		return nil
	}

	a.handlersMu.RLock()
	h, ok := a.handlers[msg.Kind()]
	a.handlersMu.RUnlock()
	if !ok {
		return nil // no routing table entry; silently ignored like an unrecognized path
	}
	return h(a, msg)
}

// flushAcks drains the inbound ack set into a PacketAck, per the short-timer
// or size-threshold drain policy.
func (a *Actor) flushAcks() {
	ids := a.inbound.Drain()
	if len(ids) == 0 {
		return
	}
	if _, err := a.SendUnreliable(packets.KindPacketAck, packets.EncodePacketAck(packets.PacketAck{IDs: ids})); err != nil {
		monitoring.Logf("session: failed to flush acks: %v", err)
	}
}

// RunAckDrainTimer periodically flushes the inbound ack set even if the
// size threshold is never crossed. Callers run this as a separate goroutine alongside Run.
func (a *Actor) RunAckDrainTimer(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.GetAckDrainInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flushAcks()
		}
	}
}
