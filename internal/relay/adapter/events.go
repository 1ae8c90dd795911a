package adapter

import (
	"context"

	"github.com/kofany/nexus-sub000/internal/backend"
	"github.com/kofany/nexus-sub000/internal/pointer"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/hdata"
)

// HandleEvent renders one backend event into server-initiated pushes
// for this connection. Buffer-scoped events are dropped when the
// buffer is outside the connection's subscription; unread changes are
// always delivered.
func (a *Adapter) HandleEvent(s Conn, ev backend.Event) {
	buf, ok := channelPointer(ev.ChannelID)
	if !ok {
		return
	}
	if ev.Kind != backend.EventUnreadChanged && !a.covers(buf) {
		if ev.Kind == backend.EventChannelClosed {
			a.forget(buf, ev.ChannelID)
		}
		return
	}

	ctx := context.Background()
	switch ev.Kind {
	case backend.EventLineAdded:
		a.pushLineAdded(s, buf, ev)
	case backend.EventNicklistChanged:
		a.pushNicklist(ctx, s, buf, ev.ChannelID)
	case backend.EventChannelOpened:
		a.pushBufferOpened(ctx, s, buf, ev.ChannelID)
	case backend.EventChannelClosed:
		a.pushBufferClosing(ctx, s, buf, ev.ChannelID)
		a.forget(buf, ev.ChannelID)
	case backend.EventTitleChanged:
		a.pushTitleChanged(ctx, s, buf, ev.ChannelID)
	case backend.EventUnreadChanged:
		a.pushHotlistChanged(buf, s, ev)
	}
}

func (a *Adapter) pushLineAdded(s Conn, buf protocol.Pointer, ev backend.Event) {
	if ev.Message == nil {
		return
	}
	fields := resolveFields(nil, defaultLineFields(a.Dialect()), lineFieldTypes)
	b, err := hdata.New(linePushPath, fields)
	if err != nil {
		return
	}
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = lineValue(f.Name, *ev.Message, buf)
	}
	if err := b.Append([]protocol.Pointer{pointer.ForLineData(buf, ev.Message.ID)}, values...); err != nil {
		a.log.Error().Err(err).Msg("adapter: line push render failed")
		return
	}
	msg := &protocol.Message{ID: "_buffer_line_added"}
	msg.Objects = append(msg.Objects, b.Record())
	s.Push(msg)
}

// pushNicklist sends a diff against the last pushed snapshot when one
// exists, or the full nicklist on first change.
func (a *Adapter) pushNicklist(ctx context.Context, s Conn, buf protocol.Pointer, channelID int64) {
	members, err := a.sess.Members(ctx, channelID)
	if err != nil {
		return
	}

	a.mu.Lock()
	prev, had := a.nickSnaps[channelID]
	a.nickSnaps[channelID] = members
	a.mu.Unlock()

	if had {
		msg, err := nicklistDiff(buf, prev, members)
		if err != nil {
			a.log.Error().Err(err).Msg("adapter: nicklist diff render failed")
			return
		}
		if msg != nil {
			s.Push(msg)
		}
		return
	}

	b, err := hdata.New(nicklistPath, nicklistFields)
	if err != nil {
		return
	}
	if err := appendNicklist(b, buf, members); err != nil {
		a.log.Error().Err(err).Msg("adapter: nicklist render failed")
		return
	}
	msg := &protocol.Message{ID: "_nicklist"}
	msg.Objects = append(msg.Objects, b.Record())
	s.Push(msg)
}

func (a *Adapter) pushBufferOpened(ctx context.Context, s Conn, buf protocol.Pointer, channelID int64) {
	ch, err := a.sess.Channel(ctx, channelID)
	if err != nil {
		return
	}
	a.pushBufferRecord(s, "_buffer_opened", buf, ch, defaultBufferFields)
}

func (a *Adapter) pushBufferClosing(ctx context.Context, s Conn, buf protocol.Pointer, channelID int64) {
	// The channel may already be gone from the snapshot; the pointer
	// alone identifies what closed.
	ch, err := a.sess.Channel(ctx, channelID)
	if err != nil {
		ch = backend.Channel{ID: channelID}
	}
	a.pushBufferRecord(s, "_buffer_closing", buf, ch, []string{"number", "full_name"})
}

func (a *Adapter) pushTitleChanged(ctx context.Context, s Conn, buf protocol.Pointer, channelID int64) {
	ch, err := a.sess.Channel(ctx, channelID)
	if err != nil {
		return
	}
	a.pushBufferRecord(s, "_buffer_title_changed", buf, ch, []string{"number", "full_name", "title"})
}

func (a *Adapter) pushBufferRecord(s Conn, id string, buf protocol.Pointer,
	ch backend.Channel, keys []string) {
	fields := resolveFields(keys, nil, bufferFieldTypes)
	b, err := hdata.New("buffer", fields)
	if err != nil {
		return
	}
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = bufferValue(f.Name, ch)
	}
	if err := b.Append([]protocol.Pointer{buf}, values...); err != nil {
		a.log.Error().Err(err).Str("push", id).Msg("adapter: buffer push render failed")
		return
	}
	msg := &protocol.Message{ID: id}
	msg.Objects = append(msg.Objects, b.Record())
	s.Push(msg)
}

// pushHotlistChanged delivers unread counters. Every connection gets
// these regardless of sync state, so clients can badge buffers they
// are not watching.
func (a *Adapter) pushHotlistChanged(buf protocol.Pointer, s Conn, ev backend.Event) {
	if ev.Unread == nil {
		return
	}
	fields := []protocol.HdataField{
		{Name: "buffer", Type: protocol.TypePointer},
		{Name: "count_message", Type: protocol.TypeInt},
		{Name: "count_highlight", Type: protocol.TypeInt},
	}
	b, err := hdata.New("hotlist", fields)
	if err != nil {
		return
	}
	ppath := []protocol.Pointer{pointer.ForNode(buf, "hotlist")}
	if err := b.Append(ppath, buf, int32(ev.Unread.Messages), int32(ev.Unread.Highlights)); err != nil {
		a.log.Error().Err(err).Msg("adapter: hotlist push render failed")
		return
	}
	msg := &protocol.Message{ID: "_hotlist_changed"}
	msg.Objects = append(msg.Objects, b.Record())
	s.Push(msg)
}
