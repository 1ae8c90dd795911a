// Package adapter translates between the line-oriented command surface
// of a relay connection and the chat session backing it. Each relay
// connection owns one Adapter; all dialect and subscription state is
// scoped to that connection and never shared.
package adapter

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kofany/nexus-sub000/internal/backend"
	"github.com/kofany/nexus-sub000/internal/pointer"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/hdata"
	"github.com/kofany/nexus-sub000/internal/relay"
)

// Version strings reported over the wire. The numeric form packs
// major.minor.patch into the high three bytes.
const (
	emulatedVersion       = "3.8.0"
	emulatedVersionNumber = 0x03080000
)

// pushHistoryCount is how many recent lines a browser client receives
// when it syncs a single buffer.
const pushHistoryCount = 50

// Conn is the outbound surface of one relay connection. Send carries
// request replies; Push carries server-initiated messages through the
// connection's bounded queue. *relay.Session satisfies it.
type Conn interface {
	Send(msg *protocol.Message) error
	Push(msg *protocol.Message)
}

// Adapter serves relay commands against one backend session on behalf
// of one connection.
type Adapter struct {
	sess backend.Session
	log  zerolog.Logger

	mu        sync.Mutex
	dialect   Dialect
	syncAll   bool
	synced    map[protocol.Pointer]struct{}
	nickSnaps map[int64][]backend.Member
}

// New returns an adapter in the default subscription state: all
// buffers synced, dialect unknown.
func New(sess backend.Session, log zerolog.Logger) *Adapter {
	return &Adapter{
		sess:      sess,
		log:       log,
		syncAll:   true,
		synced:    make(map[protocol.Pointer]struct{}),
		nickSnaps: make(map[int64][]backend.Member),
	}
}

// Dialect reports the inferred client family.
func (a *Adapter) Dialect() Dialect {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dialect
}

// HandleCommand dispatches one authenticated relay command. Unknown
// commands are logged and dropped; the protocol has no error reply.
func (a *Adapter) HandleCommand(ctx context.Context, s Conn, cmd relay.Command) {
	switch cmd.Name {
	case "hdata":
		a.handleHData(ctx, s, cmd)
	case "info":
		a.handleInfo(s, cmd)
	case "infolist":
		a.handleInfolist(s, cmd)
	case "nicklist":
		a.handleNicklist(ctx, s, cmd)
	case "input":
		a.handleInput(ctx, s, cmd)
	case "sync":
		a.handleSync(ctx, s, cmd)
	case "desync":
		a.handleDesync(cmd)
	case "test":
		a.handleTest(s, cmd)
	default:
		a.log.Debug().Str("command", cmd.Name).Msg("adapter: unhandled command")
	}
}

func (a *Adapter) handleHData(ctx context.Context, s Conn, cmd relay.Command) {
	req := parseHDataArgs(cmd.Args)

	a.mu.Lock()
	if a.dialect == DialectUnknown {
		if d := inferDialect(req); d != DialectUnknown {
			a.dialect = d
			a.log.Info().Str("dialect", d.String()).Msg("adapter: dialect inferred")
		}
	}
	dialect := a.dialect
	a.mu.Unlock()

	var (
		msg *protocol.Message
		err error
	)
	switch req.kind {
	case reqListBuffers:
		msg, err = a.bufferListing(ctx, cmd.ID, req)
	case reqHistoryAll:
		msg, err = a.historyAll(ctx, cmd.ID, req, dialect)
	case reqHistoryOne:
		msg, err = a.historyOne(ctx, cmd.ID, req, dialect)
	case reqReadMarkers:
		msg, err = a.readMarkers(ctx, cmd.ID)
	default:
		msg = hdata.EmptyMessage(cmd.ID)
	}
	if err != nil {
		a.log.Error().Err(err).Str("args", cmd.Args).Msg("adapter: hdata failed")
		msg = hdata.EmptyMessage(cmd.ID)
	}
	if err := s.Send(msg); err != nil {
		a.log.Debug().Err(err).Msg("adapter: hdata reply dropped")
	}
}

func (a *Adapter) handleInfo(s Conn, cmd relay.Command) {
	name, _, _ := strings.Cut(strings.TrimSpace(cmd.Args), " ")
	var value protocol.String
	switch name {
	case "version":
		value = protocol.Str(emulatedVersion)
	case "version_number":
		value = protocol.Str(strconv.Itoa(emulatedVersionNumber))
	default:
		value = protocol.AbsentString()
	}
	msg := &protocol.Message{ID: cmd.ID}
	msg.Add(protocol.TypeInfo, protocol.Info{Name: protocol.Str(name), Value: value})
	if err := s.Send(msg); err != nil {
		a.log.Debug().Err(err).Msg("adapter: info reply dropped")
	}
}

// handleInfolist answers every infolist request with an empty list of
// the requested name. The session model has no infolist-shaped data;
// clients treat the empty list as "nothing here" and move on.
func (a *Adapter) handleInfolist(s Conn, cmd relay.Command) {
	name, _, _ := strings.Cut(strings.TrimSpace(cmd.Args), " ")
	msg := &protocol.Message{ID: cmd.ID}
	msg.Add(protocol.TypeInfolist, protocol.Infolist{Name: protocol.Str(name)})
	if err := s.Send(msg); err != nil {
		a.log.Debug().Err(err).Msg("adapter: infolist reply dropped")
	}
}

func (a *Adapter) handleSync(ctx context.Context, s Conn, cmd relay.Command) {
	target, _, _ := strings.Cut(strings.TrimSpace(cmd.Args), " ")
	if target == "" || target == "*" {
		a.mu.Lock()
		a.syncAll = true
		a.mu.Unlock()
		return
	}
	p, err := parsePointer(target)
	if err != nil {
		a.log.Debug().Str("target", target).Msg("adapter: sync with bad pointer")
		return
	}
	a.mu.Lock()
	a.synced[p] = struct{}{}
	dialect := a.dialect
	a.mu.Unlock()

	// Browser clients hold no local store, so a per-buffer sync is
	// their request for that buffer's backlog.
	if dialect == DialectBrowser {
		a.pushRecentHistory(ctx, s, p)
	}
}

func (a *Adapter) handleDesync(cmd relay.Command) {
	target, _, _ := strings.Cut(strings.TrimSpace(cmd.Args), " ")
	a.mu.Lock()
	defer a.mu.Unlock()
	if target == "" || target == "*" {
		a.syncAll = false
		a.synced = make(map[protocol.Pointer]struct{})
		return
	}
	if p, err := parsePointer(target); err == nil {
		delete(a.synced, p)
	}
}

// covers reports whether pushes for a buffer pointer should reach this
// connection.
func (a *Adapter) covers(p protocol.Pointer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.syncAll {
		return true
	}
	_, ok := a.synced[p]
	return ok
}

func (a *Adapter) forget(p protocol.Pointer, channel int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.synced, p)
	delete(a.nickSnaps, channel)
}

// handleTest emits one object of every wire type, for client codec
// conformance checks.
func (a *Adapter) handleTest(s Conn, cmd relay.Command) {
	msg := &protocol.Message{ID: cmd.ID}
	msg.Add(protocol.TypeChar, byte('A'))
	msg.Add(protocol.TypeInt, int32(123456))
	msg.Add(protocol.TypeInt, int32(-123456))
	msg.Add(protocol.TypeLong, int64(1234567890))
	msg.Add(protocol.TypeLong, int64(-1234567890))
	msg.Add(protocol.TypeString, protocol.Str("a string"))
	msg.Add(protocol.TypeString, protocol.Str(""))
	msg.Add(protocol.TypeString, protocol.AbsentString())
	msg.Add(protocol.TypeBuffer, protocol.Buffer{Data: []byte("buffer")})
	msg.Add(protocol.TypeBuffer, protocol.Buffer{Absent: true})
	msg.Add(protocol.TypePointer, protocol.Pointer(0x1234abcd))
	msg.Add(protocol.TypePointer, protocol.Pointer(0))
	msg.Add(protocol.TypeTime, int64(1321993456))
	msg.Add(protocol.TypeArray, protocol.StringArray("abc", "de"))
	msg.Add(protocol.TypeArray, protocol.Array{
		Elem:  protocol.TypeInt,
		Items: []any{int32(123), int32(456), int32(789)},
	})
	if err := s.Send(msg); err != nil {
		a.log.Debug().Err(err).Msg("adapter: test reply dropped")
	}
}

func channelPointer(id int64) (protocol.Pointer, bool) {
	p, err := pointer.ForChannel(id)
	return p, err == nil
}
