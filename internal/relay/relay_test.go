package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/kofany/nexus-sub000/internal/auth"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/frame"
	"github.com/kofany/nexus-sub000/internal/testutil/testlog"
)

type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	out [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadChunk() ([]byte, error) {
	select {
	case chunk := <-f.in:
		return chunk, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeConn) Write(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	f.out = append(f.out, cp)
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) RemoteAddr() string { return "test:1" }
func (f *fakeConn) Transport() string  { return "test" }

func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.out...)
}

type recordHandler struct {
	mu      sync.Mutex
	authed  int
	authErr error
	cmds    []Command
	closed  int
}

func (h *recordHandler) SessionAuthenticated(context.Context, *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authed++
	return h.authErr
}

func (h *recordHandler) SessionCommand(_ context.Context, _ *Session, cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmds = append(h.cmds, cmd)
}

func (h *recordHandler) SessionClosed(*Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
}

func (h *recordHandler) snapshot() (int, []Command, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authed, append([]Command(nil), h.cmds...), h.closed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startSession(t *testing.T, cfg Config) (*fakeConn, *Session, *recordHandler) {
	t.Helper()
	fc := newFakeConn()
	h := &recordHandler{}
	s := NewSession(fc, cfg, h, testlog.New(t))
	go s.Run(context.Background())
	t.Cleanup(s.Close)
	return fc, s, h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password = "sekret"
	cfg.AuthTimeout = 5 * time.Second
	cfg.OfferCompression = true
	return cfg
}

func lastMessage(t *testing.T, fc *fakeConn) *protocol.Message {
	t.Helper()
	frames := fc.frames()
	if len(frames) == 0 {
		t.Fatalf("no frames written")
	}
	msg, err := frame.Unmarshal(frames[len(frames)-1], frame.DefaultLimits())
	if err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	return msg
}

func TestAccumulatorReassemblesSplitLines(t *testing.T) {
	acc := newAccumulator(1024)
	full := "(42) hdata buffer:gui_buffers(*)\nping one\n"
	for cut := 1; cut < len(full); cut++ {
		acc.buf = nil
		if err := acc.push([]byte(full[:cut])); err != nil {
			t.Fatalf("push: %v", err)
		}
		if err := acc.push([]byte(full[cut:])); err != nil {
			t.Fatalf("push: %v", err)
		}
		one, ok := acc.next()
		if !ok || one != "(42) hdata buffer:gui_buffers(*)" {
			t.Fatalf("cut=%d: first line %q ok=%v", cut, one, ok)
		}
		two, ok := acc.next()
		if !ok || two != "ping one" {
			t.Fatalf("cut=%d: second line %q ok=%v", cut, two, ok)
		}
		if _, ok := acc.next(); ok {
			t.Fatalf("cut=%d: unexpected third line", cut)
		}
	}
}

func TestAccumulatorStripsCR(t *testing.T) {
	acc := newAccumulator(64)
	if err := acc.push([]byte("ping\r\n")); err != nil {
		t.Fatalf("push: %v", err)
	}
	line, ok := acc.next()
	if !ok || line != "ping" {
		t.Fatalf("line = %q ok=%v", line, ok)
	}
}

func TestAccumulatorCap(t *testing.T) {
	acc := newAccumulator(8)
	err := acc.push([]byte("0123456789"))
	if !errors.Is(err, ErrAccumulationCap) {
		t.Fatalf("expected ErrAccumulationCap, got %v", err)
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want Command
		ok   bool
	}{
		{"init password=x", Command{Name: "init", Args: "password=x"}, true},
		{"(42) hdata buffer:gui_buffers(*) number,name", Command{ID: "42", Name: "hdata", Args: "buffer:gui_buffers(*) number,name"}, true},
		{"(id) sync", Command{ID: "id", Name: "sync"}, true},
		{"PING  now ", Command{Name: "ping", Args: "now"}, true},
		{"", Command{}, false},
		{"   ", Command{}, false},
		{"(broken", Command{}, false},
		{"(id)", Command{}, false},
	}
	for _, tc := range cases {
		got, ok := parseCommand(tc.line)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseCommand(%q) = %#v,%v want %#v,%v", tc.line, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSplitOptionsEscapedComma(t *testing.T) {
	got := splitOptions(`password=se\,cret,compression=off`)
	if len(got) != 2 {
		t.Fatalf("parts = %#v", got)
	}
	if got[0][0] != "password" || got[0][1] != "se,cret" {
		t.Fatalf("password pair = %#v", got[0])
	}
	if got[1][0] != "compression" || got[1][1] != "off" {
		t.Fatalf("compression pair = %#v", got[1])
	}
}

func TestHandshakeNegotiatesStrongestMutual(t *testing.T) {
	fc, s, _ := startSession(t, testConfig())
	fc.in <- []byte("(h1) handshake password_hash_algo=plain:sha256:pbkdf2+sha512,compression=off:zlib\n")

	waitFor(t, "handshake reply", func() bool { return len(fc.frames()) > 0 })
	msg := lastMessage(t, fc)
	if msg.ID != "h1" {
		t.Fatalf("reply id = %q", msg.ID)
	}
	table := msg.Objects[0].Value.(protocol.Hashtable)
	got := map[string]string{}
	for i := range table.Keys {
		got[table.Keys[i].(protocol.String).Text] = table.Values[i].(protocol.String).Text
	}
	if got["password_hash_algo"] != "pbkdf2+sha512" {
		t.Fatalf("algo = %q", got["password_hash_algo"])
	}
	if got["compression"] != "zlib" {
		t.Fatalf("compression = %q", got["compression"])
	}
	if got["nonce"] == "" {
		t.Fatalf("missing nonce")
	}
	if got["totp"] != "off" {
		t.Fatalf("totp = %q", got["totp"])
	}
	if s.State() != StateAuthenticating {
		t.Fatalf("state = %s", s.State())
	}
}

func TestInitPlainWithoutHandshake(t *testing.T) {
	fc, s, h := startSession(t, testConfig())
	fc.in <- []byte("init password=sekret,compression=off\n")
	waitFor(t, "connected", func() bool { return s.State() == StateConnected })
	authed, _, _ := h.snapshot()
	if authed != 1 {
		t.Fatalf("authenticated callbacks = %d", authed)
	}
	if s.Compression() != frame.CompressionOff {
		t.Fatalf("compression = %s", s.Compression())
	}
}

func TestInitEscapedCommaPassword(t *testing.T) {
	cfg := testConfig()
	cfg.Password = "se,kret"
	fc, s, _ := startSession(t, cfg)
	fc.in <- []byte(`init password=se\,kret` + "\n")
	waitFor(t, "connected", func() bool { return s.State() == StateConnected })
}

func TestInitWrongPasswordCloses(t *testing.T) {
	fc, s, h := startSession(t, testConfig())
	fc.in <- []byte("init password=wrong\n")
	waitFor(t, "disconnect", func() bool { return s.State() == StateDisconnected })
	authed, _, closed := h.snapshot()
	if authed != 0 || closed != 1 {
		t.Fatalf("authed=%d closed=%d", authed, closed)
	}
	// The close is silent: no error frame precedes it.
	if len(fc.frames()) != 0 {
		t.Fatalf("unexpected frames on auth failure: %d", len(fc.frames()))
	}
}

func TestInitHashedAfterHandshake(t *testing.T) {
	fc, s, _ := startSession(t, testConfig())
	fc.in <- []byte("(h) handshake password_hash_algo=pbkdf2+sha256\n")
	waitFor(t, "handshake reply", func() bool { return len(fc.frames()) > 0 })

	nonce := s.Nonce()
	if nonce == "" {
		t.Fatalf("no nonce issued")
	}
	proof, err := auth.MakeProof(auth.AlgoPBKDF2SHA256, "sekret", nonce, 100_000)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}
	fc.in <- []byte("init password_hash=" + proof + "\n")
	waitFor(t, "connected", func() bool { return s.State() == StateConnected })
}

func TestInitHashedWithoutHandshakeCloses(t *testing.T) {
	fc, s, _ := startSession(t, testConfig())
	proof, err := auth.MakeProof(auth.AlgoSHA256, "sekret", "aabbccdd", 0)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}
	fc.in <- []byte("init password_hash=" + proof + "\n")
	waitFor(t, "disconnect", func() bool { return s.State() == StateDisconnected })
}

func TestInitProofAlgoMustMatchNegotiated(t *testing.T) {
	fc, s, _ := startSession(t, testConfig())
	fc.in <- []byte("handshake password_hash_algo=pbkdf2+sha512\n")
	waitFor(t, "handshake reply", func() bool { return len(fc.frames()) > 0 })
	proof, err := auth.MakeProof(auth.AlgoSHA256, "sekret", s.Nonce(), 0)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}
	fc.in <- []byte("init password_hash=" + proof + "\n")
	waitFor(t, "disconnect", func() bool { return s.State() == StateDisconnected })
}

func TestPreAuthGate(t *testing.T) {
	fc, s, h := startSession(t, testConfig())
	fc.in <- []byte("(q) hdata buffer:gui_buffers(*)\n")
	fc.in <- []byte("sync\n")
	fc.in <- []byte("(p) ping alive\n")

	waitFor(t, "pong", func() bool { return len(fc.frames()) > 0 })
	msg := lastMessage(t, fc)
	if msg.ID != "_pong" {
		t.Fatalf("reply id = %q", msg.ID)
	}
	if msg.Objects[0].Value.(protocol.String).Text != "alive" {
		t.Fatalf("pong payload: %#v", msg.Objects[0])
	}
	_, cmds, _ := h.snapshot()
	if len(cmds) != 0 {
		t.Fatalf("pre-auth commands reached handler: %#v", cmds)
	}
	if len(fc.frames()) != 1 {
		t.Fatalf("rejected commands produced frames: %d", len(fc.frames()))
	}
	if s.State() != StateConnecting {
		t.Fatalf("state = %s", s.State())
	}
}

func TestConnectedCommandsReachHandler(t *testing.T) {
	fc, s, h := startSession(t, testConfig())
	fc.in <- []byte("init password=sekret\n")
	waitFor(t, "connected", func() bool { return s.State() == StateConnected })
	fc.in <- []byte("(77) hdata buffer:gui_buffers(*) number,full_name\n")
	waitFor(t, "command", func() bool {
		_, cmds, _ := h.snapshot()
		return len(cmds) == 1
	})
	_, cmds, _ := h.snapshot()
	want := Command{ID: "77", Name: "hdata", Args: "buffer:gui_buffers(*) number,full_name"}
	if cmds[0] != want {
		t.Fatalf("command = %#v, want %#v", cmds[0], want)
	}
}

func TestQuitClosesOnce(t *testing.T) {
	fc, s, h := startSession(t, testConfig())
	fc.in <- []byte("quit\n")
	waitFor(t, "disconnect", func() bool { return s.State() == StateDisconnected })
	s.Close()
	s.Close()
	_, _, closed := h.snapshot()
	if closed != 1 {
		t.Fatalf("closed callbacks = %d, want 1", closed)
	}
}

func TestSendAfterCloseIsNoOp(t *testing.T) {
	_, s, _ := startSession(t, testConfig())
	s.Close()
	msg := &protocol.Message{ID: "x"}
	msg.Add(protocol.TypeString, protocol.Str("y"))
	if err := s.Send(msg); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestPushOverflowClosesSlowConsumer(t *testing.T) {
	cfg := testConfig()
	cfg.PushQueueLen = 1
	fc := newFakeConn()
	h := &recordHandler{}
	s := NewSession(fc, cfg, h, testlog.New(t))
	// No Run: the queue has no drainer, so the second push overflows.
	msg := &protocol.Message{ID: "_buffer_line_added"}
	s.Push(msg)
	s.Push(msg)
	if s.State() != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", s.State())
	}
	_, _, closed := h.snapshot()
	if closed != 1 {
		t.Fatalf("closed callbacks = %d", closed)
	}
}

func TestAuthTimeoutCloses(t *testing.T) {
	cfg := testConfig()
	cfg.AuthTimeout = 20 * time.Millisecond
	_, s, _ := startSession(t, cfg)
	waitFor(t, "auth timeout", func() bool { return s.State() == StateDisconnected })
}

func TestAccumulationCapClosesConnection(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBufferBytes = 16
	fc, s, _ := startSession(t, cfg)
	fc.in <- []byte("this line never terminates and keeps growing")
	waitFor(t, "disconnect", func() bool { return s.State() == StateDisconnected })
}

func TestBackendBindFailureCloses(t *testing.T) {
	fc, s, h := startSession(t, testConfig())
	h.mu.Lock()
	h.authErr = errors.New("no backend session")
	h.mu.Unlock()
	fc.in <- []byte("init password=sekret\n")
	waitFor(t, "disconnect", func() bool { return s.State() == StateDisconnected })
}

func TestCloseDuringVerificationRefusesConnect(t *testing.T) {
	fc, s, h := startSession(t, testConfig())
	fc.in <- []byte("(h) handshake password_hash_algo=pbkdf2+sha512\n")
	waitFor(t, "handshake reply", func() bool { return len(fc.frames()) > 0 })

	proof, err := auth.MakeProof(auth.AlgoPBKDF2SHA512, "sekret", s.Nonce(), 100_000)
	if err != nil {
		t.Fatalf("make proof: %v", err)
	}

	// The auth deadline or a server shutdown can close the session
	// while a slow proof is still being verified. The late transition
	// to connected must be refused; disconnected is terminal.
	s.Close()
	if s.connect(true, "") {
		t.Fatalf("connect succeeded on a closed session")
	}
	if got := s.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}

	// Even a valid proof arriving now must not authenticate.
	s.handleLine(context.Background(), "init password_hash="+proof)
	authed, _, closed := h.snapshot()
	if authed != 0 || closed != 1 {
		t.Fatalf("authed=%d closed=%d, want 0 and 1", authed, closed)
	}
}

// teardownOrderHandler records whether the socket was already closed
// when SessionClosed ran.
type teardownOrderHandler struct {
	recordHandler
	fc          *fakeConn
	socketFirst bool
}

func (h *teardownOrderHandler) SessionClosed(s *Session) {
	select {
	case <-h.fc.closed:
		h.mu.Lock()
		h.socketFirst = true
		h.mu.Unlock()
	default:
	}
	h.recordHandler.SessionClosed(s)
}

func TestCloseDetachesHandlerBeforeSocket(t *testing.T) {
	fc := newFakeConn()
	h := &teardownOrderHandler{fc: fc}
	s := NewSession(fc, testConfig(), h, testlog.New(t))
	s.Close()

	h.mu.Lock()
	socketFirst := h.socketFirst
	h.mu.Unlock()
	if socketFirst {
		t.Fatalf("socket closed before SessionClosed ran")
	}
	select {
	case <-fc.closed:
	default:
		t.Fatalf("socket still open after Close")
	}
}

func TestCloseConcurrentWithRunStartup(t *testing.T) {
	fc := newFakeConn()
	h := &recordHandler{}
	s := NewSession(fc, testConfig(), h, testlog.New(t))
	go s.Run(context.Background())
	s.Close()
	waitFor(t, "close callback", func() bool {
		_, _, closed := h.snapshot()
		return closed == 1
	})
	if got := s.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
}
