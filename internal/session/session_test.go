package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/osgrid/metaviewer/internal/config"
	"github.com/osgrid/metaviewer/internal/packets"
	"github.com/osgrid/metaviewer/internal/wire"
)

// fakeAddr satisfies net.Addr for loopback-free tests.
type fakeAddr struct{ s string }

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return a.s }

// fakeConn is an in-memory Conn: writes are recorded, reads are served from
// an inbound queue fed by the test.
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	inbound chan []byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	data, ok := <-c.inbound
	if !ok {
		return 0, nil, net.ErrClosed
	}
	n := copy(b, data)
	return n, fakeAddr{"sim"}, nil
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	c.written = append(c.written, cp)
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbound)
	}
	return nil
}

func (c *fakeConn) lastWrite() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.written) == 0 {
		return nil
	}
	return c.written[len(c.written)-1]
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

type stubCapabilities struct {
	result map[string]string
	err    error
}

func (s stubCapabilities) RequestCapabilities(ctx context.Context, seedURL string, names []string) (map[string]string, error) {
	return s.result, s.err
}

func TestSendReliableTracksAndEncodesPacket(t *testing.T) {
	conn := newFakeConn()
	a := New(conn, fakeAddr{"sim"}, config.EmptySessionConfig())

	seq, err := a.SendReliable(packets.KindCompletePingCheck, []byte{0x2A})
	if err != nil {
		t.Fatalf("SendReliable: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected first sequence to be 1, got %d", seq)
	}
	if got := a.outbound.Pending(); got != 1 {
		t.Fatalf("expected 1 pending reliable send, got %d", got)
	}

	raw := conn.lastWrite()
	h, _, err := wire.DecodeHeader(raw)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !h.Reliable {
		t.Fatal("expected reliable flag set")
	}
	if h.Sequence != 1 {
		t.Fatalf("expected sequence 1 in header, got %d", h.Sequence)
	}
}

func TestSessionStateTransitionsOnRunCancel(t *testing.T) {
	conn := newFakeConn()
	a := New(conn, fakeAddr{"sim"}, config.EmptySessionConfig())

	id, watch := a.Subscribe()
	defer a.Unsubscribe(id)

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	cancel()

	seen := map[State]bool{}
	timeout := time.After(time.Second)
	for len(seen) < 2 {
		select {
		case s, ok := <-watch:
			if !ok {
				t.Fatal("watch channel closed early")
			}
			seen[s] = true
		case <-timeout:
			t.Fatalf("timed out waiting for state transitions, saw %v", seen)
		}
	}
	if !seen[StateStopping] || !seen[StateStopped] {
		t.Fatalf("expected Stopping and Stopped, saw %v", seen)
	}
	<-a.Done()
}

func TestHandleDatagramRoutesToRegisteredHandler(t *testing.T) {
	conn := newFakeConn()
	a := New(conn, fakeAddr{"sim"}, config.EmptySessionConfig())

	received := make(chan packets.Message, 1)
	a.RegisterHandler(packets.KindCompletePingCheck, func(actor *Actor, msg packets.Message) error {
		received <- msg
		return nil
	})

	body := []byte{0x07}
	h := wire.Header{Sequence: 1, Msg: packets.MsgIDFor(packets.KindCompletePingCheck)}
	raw, err := wire.EncodePacket(h, body, nil)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	if err := a.handleDatagram(raw); err != nil {
		t.Fatalf("handleDatagram: %v", err)
	}

	select {
	case msg := <-received:
		cp := msg.(packets.CompletePingCheck)
		if cp.PingID != 0x07 {
			t.Fatalf("expected ping id 7, got %d", cp.PingID)
		}
	default:
		t.Fatal("expected handler to run synchronously")
	}
}

func TestHandleDatagramRepliesToStartPingCheck(t *testing.T) {
	conn := newFakeConn()
	a := New(conn, fakeAddr{"sim"}, config.EmptySessionConfig())

	body := append([]byte{0x09}, wire.EncodeU32(0)...)
	h := wire.Header{Sequence: 1, Msg: packets.MsgIDFor(packets.KindStartPingCheck)}
	raw, err := wire.EncodePacket(h, body, nil)
	if err != nil {
		t.Fatalf("EncodePacket: %v", err)
	}

	if err := a.handleDatagram(raw); err != nil {
		t.Fatalf("handleDatagram: %v", err)
	}
	if conn.writeCount() != 1 {
		t.Fatalf("expected one reply datagram, got %d", conn.writeCount())
	}
}

func TestLoginSurfacesStepOnCapabilityFailure(t *testing.T) {
	conn := newFakeConn()
	a := New(conn, fakeAddr{"sim"}, config.EmptySessionConfig())

	err := a.Login(context.Background(), LoginRecord{
		AgentID:     uuid.New(),
		SessionID:   uuid.New(),
		CircuitCode: 42,
		SeedURL:     "https://example.invalid/seed",
	}, stubCapabilities{err: context.DeadlineExceeded})

	var loginErr *LoginError
	if err == nil {
		t.Fatal("expected login error")
	}
	if !asLoginError(err, &loginErr) {
		t.Fatalf("expected *LoginError, got %T", err)
	}
	if loginErr.Step != StepRequestCapabilities {
		t.Fatalf("expected StepRequestCapabilities, got %v", loginErr.Step)
	}
}

func asLoginError(err error, target **LoginError) bool {
	le, ok := err.(*LoginError)
	if !ok {
		return false
	}
	*target = le
	return true
}
