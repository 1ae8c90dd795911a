// Package bridge binds relay connections to the chat session backend.
//
// Ownership boundary: the bridge owns the connection registry and the
// feed subscription of every connection. The relay package owns socket
// lifecycle; the adapter owns protocol rendering. Teardown always
// detaches the feed subscription before the registry entry goes away,
// so no event can reach a connection the bridge no longer tracks.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kofany/nexus-sub000/internal/backend"
	"github.com/kofany/nexus-sub000/internal/relay"
	"github.com/kofany/nexus-sub000/internal/relay/adapter"
)

// binding is the post-auth state of one connection: its adapter and
// its feed subscription.
type binding struct {
	adapter *adapter.Adapter
	feed    *backend.Feed
	token   uint64
	release sync.Once
}

func (b *binding) detach() {
	b.release.Do(func() {
		b.feed.Unsubscribe(b.token)
	})
}

// Bridge is the relay.Handler that connects accepted sockets to
// backend sessions.
type Bridge struct {
	provider backend.Provider
	cfg      relay.Config
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*relay.Session
	bindings map[string]*binding
	tcp      *relay.Listener

	ctx    context.Context
	cancel context.CancelFunc
}

var _ relay.Handler = (*Bridge)(nil)

func New(provider backend.Provider, cfg relay.Config, logger zerolog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		provider: provider,
		cfg:      cfg,
		log:      logger,
		sessions: make(map[string]*relay.Session),
		bindings: make(map[string]*binding),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ListenTCP binds the plain TCP relay port and starts accepting.
func (b *Bridge) ListenTCP(addr string) error {
	ln := relay.NewListener(addr, b.Accept, b.log)
	if err := ln.Start(); err != nil {
		return err
	}
	b.mu.Lock()
	b.tcp = ln
	b.mu.Unlock()
	return nil
}

// TCPAddr reports the bound TCP address, empty when not listening.
func (b *Bridge) TCPAddr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tcp == nil {
		return ""
	}
	return b.tcp.Addr()
}

// Accept runs the relay protocol on one connection until it closes.
// The listener and the WebSocket handler both land here.
func (b *Bridge) Accept(conn relay.Conn) {
	cfg := b.cfg
	cfg.Password = b.provider.RelayPassword()
	s := relay.NewSession(conn, cfg, b, b.log)

	b.mu.Lock()
	b.sessions[s.ID()] = s
	b.mu.Unlock()

	s.Run(b.ctx)
}

// SessionAuthenticated resolves the backend session and wires the
// connection's adapter into its event feed.
func (b *Bridge) SessionAuthenticated(ctx context.Context, s *relay.Session) error {
	sess, err := b.provider.Session(ctx)
	if err != nil {
		return err
	}
	ad := adapter.New(sess, s.Log())
	feed := sess.Feed()
	bind := &binding{adapter: ad, feed: feed}
	bind.token = feed.Subscribe(func(ev backend.Event) {
		ad.HandleEvent(s, ev)
	})

	b.mu.Lock()
	b.bindings[s.ID()] = bind
	b.mu.Unlock()

	log := s.Log()
	log.Info().Msg("session bound to backend")
	return nil
}

func (b *Bridge) SessionCommand(ctx context.Context, s *relay.Session, cmd relay.Command) {
	b.mu.Lock()
	bind := b.bindings[s.ID()]
	b.mu.Unlock()
	if bind == nil {
		log := s.Log()
		log.Warn().Str("command", cmd.Name).Msg("command on unbound session")
		return
	}
	bind.adapter.HandleCommand(ctx, s, cmd)
}

// SessionClosed detaches the feed subscription, then drops the
// registry entries. Safe to call for sessions that never
// authenticated.
func (b *Bridge) SessionClosed(s *relay.Session) {
	b.mu.Lock()
	bind := b.bindings[s.ID()]
	delete(b.bindings, s.ID())
	delete(b.sessions, s.ID())
	b.mu.Unlock()

	if bind != nil {
		bind.detach()
	}
}

// SessionInfo is one connection's admin-surface snapshot.
type SessionInfo struct {
	ID         string    `json:"id"`
	Transport  string    `json:"transport"`
	RemoteAddr string    `json:"remote_addr"`
	Opened     time.Time `json:"opened"`
	State      string    `json:"state"`
	Dialect    string    `json:"dialect"`
}

// Sessions lists every tracked connection, authenticated or not.
func (b *Bridge) Sessions() []SessionInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SessionInfo, 0, len(b.sessions))
	for id, s := range b.sessions {
		info := SessionInfo{
			ID:         id,
			Transport:  s.Transport(),
			RemoteAddr: s.RemoteAddr(),
			Opened:     s.Opened(),
			State:      s.State().String(),
			Dialect:    adapter.DialectUnknown.String(),
		}
		if bind := b.bindings[id]; bind != nil {
			info.Dialect = bind.adapter.Dialect().String()
		}
		out = append(out, info)
	}
	return out
}

// Shutdown stops the TCP listener and closes every open session.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	ln := b.tcp
	open := make([]*relay.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		open = append(open, s)
	}
	b.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil {
			b.log.Warn().Err(err).Msg("listener close failed")
		}
	}
	for _, s := range open {
		s.Close()
	}
	b.cancel()
}
