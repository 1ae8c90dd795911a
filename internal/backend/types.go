package backend

import "time"

// ChannelKind classifies a relay-addressable target.
type ChannelKind int

const (
	KindServer ChannelKind = iota
	KindChannel
	KindPrivate
)

func (k ChannelKind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindChannel:
		return "channel"
	case KindPrivate:
		return "private"
	}
	return "unknown"
}

// Channel is one addressable chat target: a network root or one of its
// channels/queries. IDs are small backend-assigned integers, stable for
// the channel's lifetime.
type Channel struct {
	ID        int64
	Network   string
	Name      string
	ShortName string
	Title     string
	Kind      ChannelKind
	Ordinal   int
}

// MessageKind classifies one rendered chat event.
type MessageKind int

const (
	MessagePrivmsg MessageKind = iota
	MessageNotice
	MessageAction
	MessageJoin
	MessagePart
	MessageQuit
	MessageTopic
)

func (k MessageKind) String() string {
	switch k {
	case MessagePrivmsg:
		return "privmsg"
	case MessageNotice:
		return "notice"
	case MessageAction:
		return "action"
	case MessageJoin:
		return "join"
	case MessagePart:
		return "part"
	case MessageQuit:
		return "quit"
	case MessageTopic:
		return "topic"
	}
	return "unknown"
}

// Message is one immutable chat event. Seq increases per channel and
// doubles as the small line identifier some relay clients require.
type Message struct {
	ID        string
	Seq       int64
	ChannelID int64
	At        time.Time
	Author    string
	Body      string
	Kind      MessageKind
	Highlight bool
	Self      bool
	Tags      []string
}

// Member is one conversation participant.
type Member struct {
	Nick  string
	Mode  string // "o" op, "v" voice, "" regular
	Color string
}

// Unread is the aggregate unread/highlight state of one channel.
type Unread struct {
	ChannelID  int64
	Messages   int
	Highlights int
}
