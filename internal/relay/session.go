package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kofany/nexus-sub000/internal/auth"
	"github.com/kofany/nexus-sub000/internal/observability"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/frame"
)

var (
	ErrClosed          = errors.New("relay: session closed")
	ErrLifecycleOrder  = errors.New("relay: invalid lifecycle transition")
	ErrAccumulationCap = errors.New("relay: accumulation buffer cap exceeded")
	ErrAuthFailed      = errors.New("relay: authentication failed")
)

// Handler receives session lifecycle callbacks and post-auth commands.
// The bridge implements it; handshake, init, ping and quit never reach
// the handler.
type Handler interface {
	// SessionAuthenticated runs once when a session reaches connected.
	// A non-nil error closes the session.
	SessionAuthenticated(ctx context.Context, s *Session) error

	// SessionCommand dispatches one command from a connected session.
	SessionCommand(ctx context.Context, s *Session, cmd Command)

	// SessionClosed runs exactly once after the session disconnects.
	SessionClosed(s *Session)
}

// Session is one relay client connection. Exactly one Session exists
// per socket and it is never shared between backend sessions.
type Session struct {
	id      string
	conn    Conn
	cfg     Config
	handler Handler
	log     zerolog.Logger
	opened  time.Time

	// writeMu serializes frame writes; one in-flight write at a time.
	writeMu     sync.Mutex
	writeClosed bool

	mu          sync.Mutex
	state       State
	handshaken  bool
	nonce       string
	algo        auth.Algo
	compression frame.Compression

	pushQ     chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
	authTimer *time.Timer
}

// NewSession wraps an accepted connection. Run starts protocol
// handling.
func NewSession(conn Conn, cfg Config, handler Handler, logger zerolog.Logger) *Session {
	s := &Session{
		id:      uuid.NewString(),
		conn:    conn,
		cfg:     cfg,
		handler: handler,
		opened:  time.Now(),
		pushQ:   make(chan *protocol.Message, cfg.PushQueueLen),
		done:    make(chan struct{}),
	}
	s.log = logger.With().
		Str("session", s.id).
		Str("transport", conn.Transport()).
		Str("remote", conn.RemoteAddr()).
		Logger()
	return s
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Transport() string   { return s.conn.Transport() }
func (s *Session) RemoteAddr() string  { return s.conn.RemoteAddr() }
func (s *Session) Opened() time.Time   { return s.opened }
func (s *Session) Log() zerolog.Logger { return s.log }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run reads and dispatches until the connection drops or the session
// closes. It owns the reader goroutine; the push writer runs alongside
// and both stop on Close.
func (s *Session) Run(ctx context.Context) {
	observability.RecordConnectionOpened(s.conn.Transport())
	s.log.Info().Msg("session opened")

	s.mu.Lock()
	s.authTimer = time.AfterFunc(s.cfg.AuthTimeout, func() {
		if s.State() != StateConnected {
			s.log.Warn().Dur("timeout", s.cfg.AuthTimeout).Msg("authentication deadline exceeded")
			s.Close()
		}
	})
	s.mu.Unlock()

	go s.pushLoop()
	defer s.Close()

	acc := newAccumulator(s.cfg.MaxBufferBytes)
	for {
		chunk, err := s.conn.ReadChunk()
		if err != nil {
			if s.State() != StateDisconnected {
				s.log.Debug().Err(err).Msg("read ended")
			}
			return
		}
		if err := acc.push(chunk); err != nil {
			s.log.Warn().Err(err).Msg("closing oversized connection")
			return
		}
		for {
			line, ok := acc.next()
			if !ok {
				break
			}
			s.handleLine(ctx, line)
			if s.State() == StateDisconnected {
				return
			}
		}
	}
}

// pushLoop drains the push queue, serializing pushes with direct
// replies through Send.
func (s *Session) pushLoop() {
	for {
		select {
		case msg := <-s.pushQ:
			if err := s.Send(msg); err != nil && !errors.Is(err, ErrClosed) {
				s.log.Debug().Err(err).Msg("push write failed")
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) handleLine(ctx context.Context, line string) {
	cmd, ok := parseCommand(line)
	if !ok {
		s.log.Debug().Msg("ignoring malformed line")
		return
	}
	observability.RecordCommand(cmd.Name)

	switch cmd.Name {
	case "ping":
		// Liveness probe, answered in every state.
		msg := &protocol.Message{ID: "_pong"}
		msg.Add(protocol.TypeString, protocol.Str(cmd.Args))
		if err := s.Send(msg); err != nil && !errors.Is(err, ErrClosed) {
			s.log.Debug().Err(err).Msg("pong write failed")
		}
		return
	case "quit":
		s.log.Info().Msg("client quit")
		s.Close()
		return
	case "handshake":
		s.handleHandshake(cmd)
		return
	case "init":
		s.handleInit(ctx, cmd)
		return
	}

	if s.State() != StateConnected {
		// Pre-auth commands other than handshake/init/ping are dropped
		// without any response.
		s.log.Warn().Str("command", cmd.Name).Msg("rejected pre-auth command")
		return
	}
	s.handler.SessionCommand(ctx, s, cmd)
}

func (s *Session) handleHandshake(cmd Command) {
	proposal := parseHandshake(cmd.Args)

	nonce, err := auth.NewNonce()
	if err != nil {
		s.log.Error().Err(err).Msg("nonce generation failed")
		s.Close()
		return
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		err := transitionError(s.state, StateAuthenticating)
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("handshake out of order")
		return
	}
	s.state = StateAuthenticating
	s.handshaken = true
	s.nonce = nonce
	s.algo = auth.Negotiate(proposal.algos, s.cfg.Algos)
	s.compression = negotiateCompression(proposal.compression, s.cfg.OfferCompression)
	algo := s.algo
	comp := s.compression
	s.mu.Unlock()

	s.log.Info().
		Str("algo", algo.String()).
		Str("compression", comp.String()).
		Msg("handshake negotiated")

	// The handshake reply itself always travels uncompressed; the
	// negotiated compression applies from init onward.
	reply := handshakeReply(cmd.ID, algo, s.cfg.Iterations, nonce, comp)
	if err := s.sendWith(reply, frame.CompressionOff); err != nil && !errors.Is(err, ErrClosed) {
		s.log.Debug().Err(err).Msg("handshake reply failed")
	}
}

func (s *Session) handleInit(ctx context.Context, cmd Command) {
	s.mu.Lock()
	switch s.state {
	case StateConnecting:
		s.state = StateAuthenticating
	case StateAuthenticating:
	default:
		err := transitionError(s.state, StateConnected)
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("init out of order")
		return
	}
	handshaken := s.handshaken
	nonce := s.nonce
	algo := s.algo
	s.mu.Unlock()

	var password, proof, compression string
	var hasPassword, hasProof bool
	for _, kv := range splitOptions(cmd.Args) {
		switch kv[0] {
		case "password":
			password, hasPassword = kv[1], true
		case "password_hash":
			proof, hasProof = kv[1], true
		case "compression":
			compression = kv[1]
		}
	}

	if err := s.verifyInit(handshaken, nonce, algo, password, hasPassword, proof, hasProof); err != nil {
		observability.RecordAuthFailure()
		s.log.Warn().Err(err).Msg("authentication failed")
		s.Close()
		return
	}

	if !s.connect(handshaken, compression) {
		// Close ran while the proof was being verified; the session
		// already disconnected and must stay that way.
		s.log.Warn().Msg("session closed during credential verification")
		return
	}
	s.log.Info().Msg("session authenticated")

	if err := s.handler.SessionAuthenticated(ctx, s); err != nil {
		s.log.Error().Err(err).Msg("backend binding failed")
		s.Close()
	}
}

// connect flips an authenticating session to connected. It reports
// false without touching the state when the session left
// authenticating meanwhile; disconnected is terminal.
func (s *Session) connect(handshaken bool, compression string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticating {
		return false
	}
	s.state = StateConnected
	// Handshake-less clients may still pick a compression on init.
	if !handshaken && compression != "" {
		if c, ok := frame.ParseCompression(compression); ok {
			s.compression = c
		}
	}
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
	return true
}

// verifyInit applies the init contract: plain passwords only when
// negotiated (or without handshake), hashed proofs only after a
// handshake issued a nonce, and the proof algorithm must match the
// negotiated one. Every failure is uniform: auth failed, socket
// closed.
func (s *Session) verifyInit(handshaken bool, nonce string, algo auth.Algo,
	password string, hasPassword bool, proof string, hasProof bool) error {
	switch {
	case hasPassword:
		if handshaken && algo != auth.AlgoPlain {
			return ErrAuthFailed
		}
		if err := auth.VerifyPlain(s.cfg.Password, password); err != nil {
			return ErrAuthFailed
		}
		return nil
	case hasProof:
		if !handshaken || nonce == "" {
			return ErrAuthFailed
		}
		proofAlgo, _, _ := strings.Cut(proof, ":")
		if proofAlgo != algo.String() {
			return ErrAuthFailed
		}
		if err := auth.VerifyProof(s.cfg.Password, nonce, proof); err != nil {
			return ErrAuthFailed
		}
		return nil
	}
	return ErrAuthFailed
}

// Send marshals and writes one message. Writes are serialized; writing
// after close is a detected no-op reported as ErrClosed.
func (s *Session) Send(msg *protocol.Message) error {
	s.mu.Lock()
	comp := s.compression
	s.mu.Unlock()
	return s.sendWith(msg, comp)
}

func (s *Session) sendWith(msg *protocol.Message, comp frame.Compression) error {
	raw, err := frame.Marshal(msg, comp, s.cfg.FrameLimits)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeClosed {
		return ErrClosed
	}
	if err := s.conn.Write(raw); err != nil {
		return err
	}
	observability.RecordFrameSent(s.conn.Transport(), len(raw))
	return nil
}

// Push enqueues a message for the session's writer. A full queue means
// the client cannot keep up; the session is closed rather than block
// event delivery to other connections.
func (s *Session) Push(msg *protocol.Message) {
	select {
	case s.pushQ <- msg:
	case <-s.done:
	default:
		observability.RecordPushDrop()
		s.log.Warn().Msg("push queue overflow, closing slow consumer")
		s.Close()
	}
}

// Close tears the session down. It is idempotent: the state flips
// under the write lock first, so no frame can be written after close.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.writeClosed = true
		s.writeMu.Unlock()

		s.mu.Lock()
		s.state = StateDisconnected
		timer := s.authTimer
		s.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		close(s.done)
		observability.RecordConnectionClosed(s.conn.Transport())
		s.log.Info().Msg("session closed")

		// The subscription is released synchronously before the socket,
		// so no backend event can race a dead connection.
		s.handler.SessionClosed(s)
		_ = s.conn.Close()
	})
}

// Compression reports the session's negotiated frame compression.
func (s *Session) Compression() frame.Compression {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compression
}

// Algo reports the negotiated hash algorithm.
func (s *Session) Algo() auth.Algo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.algo
}

// Nonce reports the handshake nonce, empty before handshake.
func (s *Session) Nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}
