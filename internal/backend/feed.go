package backend

import "sync"

// EventKind names one backend event.
type EventKind int

const (
	EventLineAdded EventKind = iota
	EventNicklistChanged
	EventChannelOpened
	EventChannelClosed
	EventTitleChanged
	EventUnreadChanged
)

func (k EventKind) String() string {
	switch k {
	case EventLineAdded:
		return "line_added"
	case EventNicklistChanged:
		return "nicklist_changed"
	case EventChannelOpened:
		return "channel_opened"
	case EventChannelClosed:
		return "channel_closed"
	case EventTitleChanged:
		return "title_changed"
	case EventUnreadChanged:
		return "unread_changed"
	}
	return "unknown"
}

// Event is one backend state change. Message is set for line-added
// events, Unread for unread-changed events.
type Event struct {
	Kind      EventKind
	ChannelID int64
	Message   *Message
	Unread    *Unread
}

// Handler consumes one event. Handlers must not block: the feed
// publishes synchronously on the mutating caller's goroutine.
type Handler func(Event)

// Feed is an explicit subscriber registry keyed by token. Unsubscribe
// is idempotent; tokens are never reused within one feed.
type Feed struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]Handler
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[uint64]Handler)}
}

// Subscribe registers h and returns its removal token.
func (f *Feed) Subscribe(h Handler) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.subs[f.next] = h
	return f.next
}

// Unsubscribe removes the handler for token. Removing an unknown or
// already-removed token is a no-op.
func (f *Feed) Unsubscribe(token uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, token)
}

// Len reports the current subscriber count.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Publish delivers ev to every current subscriber. Handlers registered
// or removed during delivery take effect on the next publish.
func (f *Feed) Publish(ev Event) {
	f.mu.Lock()
	handlers := make([]Handler, 0, len(f.subs))
	for _, h := range f.subs {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}
