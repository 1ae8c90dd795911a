package bridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/kofany/nexus-sub000/internal/backend/memory"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/frame"
	"github.com/kofany/nexus-sub000/internal/relay"
	"github.com/kofany/nexus-sub000/internal/testutil/testlog"
)

func newTestBridge(t *testing.T) (*Bridge, *memory.Session) {
	t.Helper()
	sess := memory.NewSession("me")
	sess.AddNetwork("libera")
	sess.AddChannel("libera", "#go", "Go talk")
	provider := &memory.Provider{Password: "secret", Sess: sess}

	cfg := relay.DefaultConfig()
	cfg.AuthTimeout = 5 * time.Second
	return New(provider, cfg, testlog.New(t)), sess
}

func readFrame(t *testing.T, conn net.Conn) *protocol.Message {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		t.Fatalf("read frame length: %v", err)
	}
	total := binary.BigEndian.Uint32(hdr[:])
	if total < 5 || total > 1<<20 {
		t.Fatalf("implausible frame length %d", total)
	}
	rest := make([]byte, total-4)
	if _, err := io.ReadFull(conn, rest); err != nil {
		t.Fatalf("read frame body: %v", err)
	}
	msg, err := frame.Unmarshal(append(hdr[:], rest...), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTCPEndToEnd(t *testing.T) {
	b, sess := newTestBridge(t)
	if err := b.ListenTCP("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer b.Shutdown()

	conn, err := net.Dial("tcp", b.TCPAddr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "init password=secret\n")
	fmt.Fprintf(conn, "(listbuffers) hdata buffer:gui_buffers(*) number,full_name\n")

	msg := readFrame(t, conn)
	if msg.ID != "listbuffers" {
		t.Fatalf("reply id = %q", msg.ID)
	}
	h, ok := msg.Objects[0].Value.(protocol.Hdata)
	if !ok {
		t.Fatalf("expected hdata reply")
	}
	if len(h.Objects) != 2 {
		t.Fatalf("buffers = %d, want 2", len(h.Objects))
	}

	// Authenticated connection is subscribed to the feed and listed.
	waitFor(t, "feed subscription", func() bool { return sess.Feed().Len() == 1 })
	infos := b.Sessions()
	if len(infos) != 1 || infos[0].State != "connected" {
		t.Fatalf("sessions = %+v", infos)
	}

	fmt.Fprintf(conn, "quit\n")
	waitFor(t, "feed teardown", func() bool { return sess.Feed().Len() == 0 })
	waitFor(t, "session removal", func() bool { return len(b.Sessions()) == 0 })
}

func TestLinePushReachesClient(t *testing.T) {
	b, sess := newTestBridge(t)
	if err := b.ListenTCP("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer b.Shutdown()

	conn, err := net.Dial("tcp", b.TCPAddr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "init password=secret\n")
	waitFor(t, "authentication", func() bool { return sess.Feed().Len() == 1 })

	channels, err := sess.Channels(context.Background())
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	if _, err := sess.Post(channels[1].ID, "alice", "hi", 0, false); err != nil {
		t.Fatalf("post: %v", err)
	}

	msg := readFrame(t, conn)
	if msg.ID != "_buffer_line_added" {
		t.Fatalf("push id = %q", msg.ID)
	}
	// Posting also updates unread state.
	msg = readFrame(t, conn)
	if msg.ID != "_hotlist_changed" {
		t.Fatalf("second push id = %q", msg.ID)
	}
}

func TestBadPasswordClosesConnection(t *testing.T) {
	b, sess := newTestBridge(t)
	if err := b.ListenTCP("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer b.Shutdown()

	conn, err := net.Dial("tcp", b.TCPAddr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "init password=wrong\n")

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatalf("expected connection close, read a byte")
	}
	if sess.Feed().Len() != 0 {
		t.Fatalf("failed auth still subscribed to feed")
	}
}

func TestSessionClosedIsIdempotent(t *testing.T) {
	b, sess := newTestBridge(t)

	client, server := net.Pipe()
	defer client.Close()
	s := relay.NewSession(relay.NewTCPConn(server), relay.DefaultConfig(), b, testlog.New(t))

	if err := b.SessionAuthenticated(context.Background(), s); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if sess.Feed().Len() != 1 {
		t.Fatalf("feed len = %d, want 1", sess.Feed().Len())
	}

	b.SessionClosed(s)
	b.SessionClosed(s)
	if sess.Feed().Len() != 0 {
		t.Fatalf("feed len after teardown = %d, want 0", sess.Feed().Len())
	}
}
