package backend

import (
	"context"
	"errors"
)

var ErrNoChannel = errors.New("backend: no such channel")

// Session is one live chat session as seen by the bridge. The backend
// is the single writer of canonical chat state; the bridge only reads
// snapshots and routes mutations through the command surface below.
type Session interface {
	// Channels returns the current channel snapshot in display order.
	Channels(ctx context.Context) ([]Channel, error)

	// Channel resolves one channel by backend id.
	Channel(ctx context.Context, id int64) (Channel, error)

	// History returns up to lastN most recent messages, oldest first.
	History(ctx context.Context, channelID int64, lastN int) ([]Message, error)

	// Members returns the current participant list of a conversation.
	// Non-conversation channels return an empty list.
	Members(ctx context.Context, channelID int64) ([]Member, error)

	// ReadMarker returns the id of the last read message, or the empty
	// string when nothing has been marked.
	ReadMarker(ctx context.Context, channelID int64) (string, error)

	// SubmitInput delivers text to a channel as the session user.
	SubmitInput(ctx context.Context, channelID int64, text string) error

	// MarkRead moves the read marker to the channel's newest message.
	MarkRead(ctx context.Context, channelID int64) error

	// LeaveChannel parts and closes a channel.
	LeaveChannel(ctx context.Context, channelID int64) error

	// Feed is the session's event feed.
	Feed() *Feed
}

// Provider resolves an authenticated relay connection to its backing
// session and credentials.
type Provider interface {
	// RelayPassword is the password relay clients authenticate with.
	RelayPassword() string

	// Session returns the live session for the authenticated identity.
	Session(ctx context.Context) (Session, error)
}
