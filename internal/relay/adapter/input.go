package adapter

import (
	"context"
	"strings"

	"github.com/kofany/nexus-sub000/internal/pointer"
	"github.com/kofany/nexus-sub000/internal/relay"
)

// Client-side slash directives that map to session operations instead
// of being delivered as text.
const (
	directiveMarkRead = "/buffer set hotlist -1"
	directiveClose    = "/buffer close"
	directiveCloseAlt = "/close"
)

// handleInput delivers text to a buffer. Two directives are intercepted
// and routed to session operations; everything else, slash-prefixed or
// not, is submitted verbatim and the backend decides what it means.
// Input commands have no reply.
func (a *Adapter) handleInput(ctx context.Context, _ Conn, cmd relay.Command) {
	target, text, ok := strings.Cut(cmd.Args, " ")
	if !ok {
		a.log.Debug().Str("args", cmd.Args).Msg("adapter: input without text")
		return
	}
	buf, err := parsePointer(target)
	if err != nil {
		a.log.Debug().Str("target", target).Msg("adapter: input with bad pointer")
		return
	}
	channelID, err := pointer.ChannelID(buf)
	if err != nil {
		a.log.Debug().Str("target", target).Msg("adapter: input outside buffer range")
		return
	}

	switch strings.TrimSpace(text) {
	case directiveMarkRead:
		err = a.sess.MarkRead(ctx, channelID)
	case directiveClose, directiveCloseAlt:
		err = a.sess.LeaveChannel(ctx, channelID)
	default:
		err = a.sess.SubmitInput(ctx, channelID, text)
	}
	if err != nil {
		a.log.Warn().Err(err).Int64("channel", channelID).Msg("adapter: input failed")
	}
}
