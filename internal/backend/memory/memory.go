// Package memory is the in-memory backend session: the test double and
// the demo daemon's session source. Every mutation publishes the
// matching feed event, the way a real backend implementation must.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kofany/nexus-sub000/internal/backend"
)

// Input is one text submission recorded by SubmitInput.
type Input struct {
	ChannelID int64
	Text      string
}

type channelState struct {
	ch         backend.Channel
	messages   []backend.Message
	members    []backend.Member
	readMarker string
	nextSeq    int64
}

// Session is a mutex-guarded in-memory backend.Session.
type Session struct {
	mu       sync.RWMutex
	feed     *backend.Feed
	channels map[int64]*channelState
	order    []int64
	nextID   int64
	nick     string
	inputs   []Input
	marks    []int64
	leaves   []int64
}

var _ backend.Session = (*Session)(nil)

func NewSession(nick string) *Session {
	if nick == "" {
		nick = "relay"
	}
	return &Session{
		feed:     backend.NewFeed(),
		channels: make(map[int64]*channelState),
		nick:     nick,
	}
}

// AddNetwork creates the server channel for a network and returns its id.
func (s *Session) AddNetwork(name string) int64 {
	return s.add(backend.Channel{
		Network:   name,
		Name:      name,
		ShortName: name,
		Kind:      backend.KindServer,
	})
}

// AddChannel creates a conversation channel under a network.
func (s *Session) AddChannel(network, name, title string) int64 {
	return s.add(backend.Channel{
		Network:   network,
		Name:      network + "." + name,
		ShortName: name,
		Title:     title,
		Kind:      backend.KindChannel,
	})
}

// AddPrivate creates a private query channel under a network.
func (s *Session) AddPrivate(network, nick string) int64 {
	return s.add(backend.Channel{
		Network:   network,
		Name:      network + "." + nick,
		ShortName: nick,
		Kind:      backend.KindPrivate,
	})
}

func (s *Session) add(ch backend.Channel) int64 {
	s.mu.Lock()
	s.nextID++
	ch.ID = s.nextID
	ch.Ordinal = len(s.order) + 1
	s.channels[ch.ID] = &channelState{ch: ch}
	s.order = append(s.order, ch.ID)
	s.mu.Unlock()

	s.feed.Publish(backend.Event{Kind: backend.EventChannelOpened, ChannelID: ch.ID})
	return ch.ID
}

// Post appends one message and publishes line-added plus the channel's
// new unread state.
func (s *Session) Post(channelID int64, author, body string, kind backend.MessageKind, highlight bool) (backend.Message, error) {
	s.mu.Lock()
	st, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return backend.Message{}, backend.ErrNoChannel
	}
	st.nextSeq++
	msg := backend.Message{
		ID:        fmt.Sprintf("%d-%d", channelID, st.nextSeq),
		Seq:       st.nextSeq,
		ChannelID: channelID,
		At:        time.Now(),
		Author:    author,
		Body:      body,
		Kind:      kind,
		Highlight: highlight,
		Self:      author == s.nick,
		Tags:      tagsFor(kind, highlight),
	}
	st.messages = append(st.messages, msg)
	unread := unreadLocked(st)
	s.mu.Unlock()

	s.feed.Publish(backend.Event{Kind: backend.EventLineAdded, ChannelID: channelID, Message: &msg})
	s.feed.Publish(backend.Event{Kind: backend.EventUnreadChanged, ChannelID: channelID, Unread: &unread})
	return msg, nil
}

func tagsFor(kind backend.MessageKind, highlight bool) []string {
	tags := []string{"irc_" + kind.String()}
	switch kind {
	case backend.MessagePrivmsg, backend.MessageAction, backend.MessageNotice:
		tags = append(tags, "notify_message")
	}
	if highlight {
		tags = append(tags, "notify_highlight")
	}
	return tags
}

func unreadLocked(st *channelState) backend.Unread {
	u := backend.Unread{ChannelID: st.ch.ID}
	seen := st.readMarker == ""
	start := 0
	if !seen {
		for i, m := range st.messages {
			if m.ID == st.readMarker {
				start = i + 1
				break
			}
		}
	}
	for _, m := range st.messages[start:] {
		u.Messages++
		if m.Highlight {
			u.Highlights++
		}
	}
	return u
}

// SetMembers replaces a channel's participant list.
func (s *Session) SetMembers(channelID int64, members []backend.Member) error {
	s.mu.Lock()
	st, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return backend.ErrNoChannel
	}
	st.members = append([]backend.Member(nil), members...)
	s.mu.Unlock()

	s.feed.Publish(backend.Event{Kind: backend.EventNicklistChanged, ChannelID: channelID})
	return nil
}

// SetTitle changes a channel's title.
func (s *Session) SetTitle(channelID int64, title string) error {
	s.mu.Lock()
	st, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return backend.ErrNoChannel
	}
	st.ch.Title = title
	s.mu.Unlock()

	s.feed.Publish(backend.Event{Kind: backend.EventTitleChanged, ChannelID: channelID})
	return nil
}

func (s *Session) Channels(ctx context.Context) ([]backend.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Channel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.channels[id].ch)
	}
	return out, nil
}

func (s *Session) Channel(ctx context.Context, id int64) (backend.Channel, error) {
	if err := ctx.Err(); err != nil {
		return backend.Channel{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.channels[id]
	if !ok {
		return backend.Channel{}, backend.ErrNoChannel
	}
	return st.ch, nil
}

func (s *Session) History(ctx context.Context, channelID int64, lastN int) ([]backend.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.channels[channelID]
	if !ok {
		return nil, backend.ErrNoChannel
	}
	msgs := st.messages
	if lastN > 0 && len(msgs) > lastN {
		msgs = msgs[len(msgs)-lastN:]
	}
	return append([]backend.Message(nil), msgs...), nil
}

func (s *Session) Members(ctx context.Context, channelID int64) ([]backend.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.channels[channelID]
	if !ok {
		return nil, backend.ErrNoChannel
	}
	return append([]backend.Member(nil), st.members...), nil
}

func (s *Session) ReadMarker(ctx context.Context, channelID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.channels[channelID]
	if !ok {
		return "", backend.ErrNoChannel
	}
	return st.readMarker, nil
}

func (s *Session) SubmitInput(ctx context.Context, channelID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return backend.ErrNoChannel
	}
	s.inputs = append(s.inputs, Input{ChannelID: channelID, Text: text})
	nick := s.nick
	s.mu.Unlock()

	// Plain text echoes back as the session user's own message, the way
	// a real backend renders sent chat.
	if len(text) > 0 && text[0] != '/' {
		_, err := s.Post(channelID, nick, text, backend.MessagePrivmsg, false)
		return err
	}
	return nil
}

func (s *Session) MarkRead(ctx context.Context, channelID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	st, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return backend.ErrNoChannel
	}
	if n := len(st.messages); n > 0 {
		st.readMarker = st.messages[n-1].ID
	}
	s.marks = append(s.marks, channelID)
	unread := unreadLocked(st)
	s.mu.Unlock()

	s.feed.Publish(backend.Event{Kind: backend.EventUnreadChanged, ChannelID: channelID, Unread: &unread})
	return nil
}

func (s *Session) LeaveChannel(ctx context.Context, channelID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.channels[channelID]
	if !ok {
		s.mu.Unlock()
		return backend.ErrNoChannel
	}
	delete(s.channels, channelID)
	for i, id := range s.order {
		if id == channelID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.leaves = append(s.leaves, channelID)
	s.mu.Unlock()

	s.feed.Publish(backend.Event{Kind: backend.EventChannelClosed, ChannelID: channelID})
	return nil
}

func (s *Session) Feed() *backend.Feed {
	return s.feed
}

// Inputs returns every SubmitInput call observed, oldest first.
func (s *Session) Inputs() []Input {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Input(nil), s.inputs...)
}

// MarkReads returns the channel ids passed to MarkRead, oldest first.
func (s *Session) MarkReads() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.marks...)
}

// Leaves returns the channel ids passed to LeaveChannel, oldest first.
func (s *Session) Leaves() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.leaves...)
}

// Provider binds a relay password to a single in-memory session.
type Provider struct {
	Password string
	Sess     *Session
}

var _ backend.Provider = (*Provider)(nil)

func (p *Provider) RelayPassword() string {
	return p.Password
}

func (p *Provider) Session(ctx context.Context) (backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Sess, nil
}
