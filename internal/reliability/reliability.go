// Package reliability implements the two ack-tracking sets the session
// actor (C4) uses to provide at-least-once delivery over an otherwise
// unreliable UDP circuit.
package reliability

import (
	"fmt"
	"sync"
	"time"

	"github.com/osgrid/metaviewer/internal/monitoring"
)

// DefaultResendTimeout is how long a reliable send waits for an ack before
// re-emitting with the resent flag set.
const DefaultResendTimeout = 1 * time.Second

// DefaultMaxAttempts bounds the retry loop for a single reliable send.
const DefaultMaxAttempts = 3

// TransportError is surfaced to the session actor when a reliable packet is
// still unacked after MaxAttempts sends (the original send plus its
// resends). The circuit is no longer viable once this fires.
type TransportError struct {
	Sequence uint32
	Attempts int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("reliability: sequence %d exhausted after %d attempts", e.Sequence, e.Attempts)
}

// Sender is the narrow capability the outbound tracker needs from the
// session actor's socket: re-emit a packet on timeout, and learn when a
// packet's retry budget has run out entirely.
type Sender interface {
	ResendPacket(seq uint32, payload []byte, attempt int) error
	HandleTransportError(err *TransportError)
}

// pendingSend tracks one in-flight reliable packet.
type pendingSend struct {
	payload  []byte
	attempts int
	timer    *time.Timer
}

// OutboundTracker owns the set of reliable packets awaiting acknowledgement
// and the resend timers that re-emit them.
type OutboundTracker struct {
	mu            sync.Mutex
	pending       map[uint32]*pendingSend
	resendTimeout time.Duration
	maxAttempts   int
	sender        Sender
}

// NewOutboundTracker constructs an OutboundTracker bound to sender, the
// collaborator that performs the actual re-emit on timer expiry.
func NewOutboundTracker(sender Sender, resendTimeout time.Duration, maxAttempts int) *OutboundTracker {
	if resendTimeout <= 0 {
		resendTimeout = DefaultResendTimeout
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &OutboundTracker{
		pending:       make(map[uint32]*pendingSend),
		resendTimeout: resendTimeout,
		maxAttempts:   maxAttempts,
		sender:        sender,
	}
}

// Track registers a freshly sent reliable packet under its sequence number
// and arms its resend timer. The sequence number must already have been
// assigned by the caller at send time, never at enqueue time.
func (t *OutboundTracker) Track(seq uint32, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ps := &pendingSend{payload: payload, attempts: 1}
	ps.timer = time.AfterFunc(t.resendTimeout, func() { t.onTimeout(seq) })
	t.pending[seq] = ps
}

// onTimeout re-emits a packet that has not yet been acked, or surfaces an
// error once the attempt budget is exhausted.
func (t *OutboundTracker) onTimeout(seq uint32) {
	t.mu.Lock()
	ps, ok := t.pending[seq]
	if !ok {
		t.mu.Unlock()
		return // acked between timer fire and lock acquisition
	}
	if ps.attempts >= t.maxAttempts {
		delete(t.pending, seq)
		t.mu.Unlock()
		monitoring.Logf("reliability: sequence %d exhausted after %d attempts", seq, ps.attempts)
		t.sender.HandleTransportError(&TransportError{Sequence: seq, Attempts: ps.attempts})
		return
	}
	ps.attempts++
	ps.timer = time.AfterFunc(t.resendTimeout, func() { t.onTimeout(seq) })
	t.mu.Unlock()

	if err := t.sender.ResendPacket(seq, ps.payload, ps.attempts); err != nil {
		monitoring.Logf("reliability: resend of sequence %d failed: %v", seq, err)
	}
}

// Ack removes every sequence number named in a received PacketAck from the
// pending set and cancels its resend timer.
func (t *OutboundTracker) Ack(ids []uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		if ps, ok := t.pending[id]; ok {
			ps.timer.Stop()
			delete(t.pending, id)
		}
	}
}

// Pending reports how many reliable sends are currently awaiting ack, for
// diagnostics and tests.
func (t *OutboundTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close cancels every outstanding resend timer, used during session
// teardown so no stray timer fires after the actor has stopped.
func (t *OutboundTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for seq, ps := range t.pending {
		ps.timer.Stop()
		delete(t.pending, seq)
	}
}

// InboundTracker accumulates sequence numbers of received reliable packets
// until they are drained into an outbound PacketAck.
type InboundTracker struct {
	mu        sync.Mutex
	seen      map[uint32]struct{}
	threshold int
}

// NewInboundTracker constructs an InboundTracker that requests an immediate
// drain once it accumulates threshold entries.
func NewInboundTracker(threshold int) *InboundTracker {
	if threshold <= 0 {
		threshold = 32
	}
	return &InboundTracker{seen: make(map[uint32]struct{}), threshold: threshold}
}

// Record adds a sequence number to the pending-ack set. It returns true if
// the set has crossed the drain threshold and should be flushed immediately
// rather than waiting for the drain timer.
func (t *InboundTracker) Record(seq uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[seq] = struct{}{}
	return len(t.seen) >= t.threshold
}

// Drain atomically empties the pending-ack set and returns its contents as
// a slice suitable for EncodePacketAck.
func (t *InboundTracker) Drain() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.seen) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(t.seen))
	for id := range t.seen {
		ids = append(ids, id)
	}
	t.seen = make(map[uint32]struct{})
	return ids
}
