package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/kofany/nexus-sub000/internal/backend"
)

func seeded(t *testing.T) (*Session, int64, int64) {
	t.Helper()
	s := NewSession("me")
	s.AddNetwork("libera")
	ch := s.AddChannel("libera", "#go", "Go talk")
	q := s.AddPrivate("libera", "alice")
	return s, ch, q
}

func TestChannelsOrdered(t *testing.T) {
	s, _, _ := seeded(t)
	chans, err := s.Channels(context.Background())
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	if len(chans) != 3 {
		t.Fatalf("len = %d, want 3", len(chans))
	}
	for i, ch := range chans {
		if ch.Ordinal != i+1 {
			t.Fatalf("ordinal[%d] = %d", i, ch.Ordinal)
		}
	}
	if chans[0].Kind != backend.KindServer || chans[1].Kind != backend.KindChannel ||
		chans[2].Kind != backend.KindPrivate {
		t.Fatalf("unexpected kinds: %#v", chans)
	}
}

func TestHistoryOldestFirstLastN(t *testing.T) {
	s, ch, _ := seeded(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Post(ch, "alice", "msg", backend.MessagePrivmsg, false); err != nil {
			t.Fatalf("post: %v", err)
		}
	}
	msgs, err := s.History(context.Background(), ch, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if msgs[0].Seq != 3 || msgs[2].Seq != 5 {
		t.Fatalf("not oldest-first last-3: %d..%d", msgs[0].Seq, msgs[2].Seq)
	}
}

func TestPostPublishesLineAndUnread(t *testing.T) {
	s, ch, _ := seeded(t)
	var events []backend.Event
	s.Feed().Subscribe(func(ev backend.Event) {
		events = append(events, ev)
	})
	if _, err := s.Post(ch, "alice", "hi me", backend.MessagePrivmsg, true); err != nil {
		t.Fatalf("post: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Kind != backend.EventLineAdded || events[0].Message == nil {
		t.Fatalf("first event: %#v", events[0])
	}
	if events[1].Kind != backend.EventUnreadChanged || events[1].Unread == nil {
		t.Fatalf("second event: %#v", events[1])
	}
	if events[1].Unread.Messages != 1 || events[1].Unread.Highlights != 1 {
		t.Fatalf("unread: %#v", events[1].Unread)
	}
}

func TestMarkReadClearsUnread(t *testing.T) {
	s, ch, _ := seeded(t)
	s.Post(ch, "alice", "one", backend.MessagePrivmsg, false)
	last, _ := s.Post(ch, "alice", "two", backend.MessagePrivmsg, true)

	if err := s.MarkRead(context.Background(), ch); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	marker, err := s.ReadMarker(context.Background(), ch)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if marker != last.ID {
		t.Fatalf("marker = %q, want %q", marker, last.ID)
	}
	if got := s.MarkReads(); len(got) != 1 || got[0] != ch {
		t.Fatalf("mark-read calls: %#v", got)
	}
}

func TestSubmitInputEchoesChatOnly(t *testing.T) {
	s, ch, _ := seeded(t)
	ctx := context.Background()
	if err := s.SubmitInput(ctx, ch, "hello there"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := s.SubmitInput(ctx, ch, "/me waves"); err != nil {
		t.Fatalf("submit command: %v", err)
	}
	msgs, _ := s.History(ctx, ch, 0)
	if len(msgs) != 1 || msgs[0].Body != "hello there" || !msgs[0].Self {
		t.Fatalf("unexpected history: %#v", msgs)
	}
	if got := s.Inputs(); len(got) != 2 {
		t.Fatalf("inputs: %#v", got)
	}
}

func TestLeaveChannelPublishesClose(t *testing.T) {
	s, ch, _ := seeded(t)
	var closed []int64
	s.Feed().Subscribe(func(ev backend.Event) {
		if ev.Kind == backend.EventChannelClosed {
			closed = append(closed, ev.ChannelID)
		}
	})
	if err := s.LeaveChannel(context.Background(), ch); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if len(closed) != 1 || closed[0] != ch {
		t.Fatalf("close events: %#v", closed)
	}
	if _, err := s.Channel(context.Background(), ch); !errors.Is(err, backend.ErrNoChannel) {
		t.Fatalf("expected ErrNoChannel, got %v", err)
	}
}

func TestUnknownChannelErrors(t *testing.T) {
	s, _, _ := seeded(t)
	ctx := context.Background()
	if _, err := s.History(ctx, 404, 10); !errors.Is(err, backend.ErrNoChannel) {
		t.Fatalf("history: %v", err)
	}
	if err := s.MarkRead(ctx, 404); !errors.Is(err, backend.ErrNoChannel) {
		t.Fatalf("mark read: %v", err)
	}
	if err := s.SubmitInput(ctx, 404, "x"); !errors.Is(err, backend.ErrNoChannel) {
		t.Fatalf("submit: %v", err)
	}
}
