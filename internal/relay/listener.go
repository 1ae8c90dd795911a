package relay

import (
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"
)

// Listener accepts TCP relay connections and hands each one to the
// accept callback on its own goroutine.
type Listener struct {
	addr   string
	accept func(Conn)
	log    zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool
}

func NewListener(addr string, accept func(Conn), logger zerolog.Logger) *Listener {
	return &Listener{addr: addr, accept: accept, log: logger}
}

// Start binds the listen socket and runs the accept loop in the
// background.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	l.log.Info().Str("addr", ln.Addr().String()).Msg("relay listener started")
	go l.acceptLoop(ln)
	return nil
}

// Addr reports the bound address, useful when addr requested port 0.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return l.addr
	}
	return l.ln.Addr().String()
}

func (l *Listener) acceptLoop(ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		go l.accept(NewTCPConn(c))
	}
}

// Close stops accepting. Already-accepted sessions are unaffected.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}
