package backend

import "testing"

func TestFeedSubscribePublish(t *testing.T) {
	feed := NewFeed()
	var got []Event
	token := feed.Subscribe(func(ev Event) {
		got = append(got, ev)
	})
	feed.Publish(Event{Kind: EventLineAdded, ChannelID: 3})
	feed.Publish(Event{Kind: EventTitleChanged, ChannelID: 3})
	if len(got) != 2 || got[0].Kind != EventLineAdded || got[1].Kind != EventTitleChanged {
		t.Fatalf("unexpected events: %#v", got)
	}

	feed.Unsubscribe(token)
	feed.Publish(Event{Kind: EventLineAdded})
	if len(got) != 2 {
		t.Fatalf("event delivered after unsubscribe")
	}
}

func TestFeedUnsubscribeIdempotent(t *testing.T) {
	feed := NewFeed()
	a := feed.Subscribe(func(Event) {})
	b := feed.Subscribe(func(Event) {})
	if feed.Len() != 2 {
		t.Fatalf("len = %d, want 2", feed.Len())
	}
	feed.Unsubscribe(a)
	feed.Unsubscribe(a)
	feed.Unsubscribe(999)
	if feed.Len() != 1 {
		t.Fatalf("len = %d, want 1", feed.Len())
	}
	feed.Unsubscribe(b)
	if feed.Len() != 0 {
		t.Fatalf("len = %d, want 0", feed.Len())
	}
}

func TestFeedTokensNeverReused(t *testing.T) {
	feed := NewFeed()
	a := feed.Subscribe(func(Event) {})
	feed.Unsubscribe(a)
	b := feed.Subscribe(func(Event) {})
	if a == b {
		t.Fatalf("token reused after unsubscribe")
	}
}
