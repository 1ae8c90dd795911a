package adapter

import (
	"context"
	"errors"

	"github.com/kofany/nexus-sub000/internal/backend"
	"github.com/kofany/nexus-sub000/internal/pointer"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/hdata"
)

const (
	historyPath    = "buffer/lines/line/line_data"
	readMarkerPath = "buffer/own_lines/last_read_line/data"
	linePushPath   = "line_data"
)

var lineFieldTypes = map[string]protocol.HdataField{
	"id":           {Name: "id", Type: protocol.TypeInt},
	"buffer":       {Name: "buffer", Type: protocol.TypePointer},
	"date":         {Name: "date", Type: protocol.TypeTime},
	"date_printed": {Name: "date_printed", Type: protocol.TypeTime},
	"displayed":    {Name: "displayed", Type: protocol.TypeChar},
	"prefix":       {Name: "prefix", Type: protocol.TypeString},
	"message":      {Name: "message", Type: protocol.TypeString},
	"highlight":    {Name: "highlight", Type: protocol.TypeChar},
	"tags_array":   {Name: "tags_array", Type: protocol.TypeArray, Elem: protocol.TypeString},
}

var (
	browserLineFields = []string{
		"buffer", "date", "displayed", "prefix", "message", "highlight", "tags_array",
	}
	// Companion clients key their local store on the small integer
	// line id, so it leads the default set.
	companionLineFields = append([]string{"id"}, browserLineFields...)
)

func defaultLineFields(d Dialect) []string {
	if d == DialectCompanion {
		return companionLineFields
	}
	return browserLineFields
}

func renderPrefix(m backend.Message) string {
	switch m.Kind {
	case backend.MessageAction:
		return " *"
	case backend.MessageJoin:
		return "-->"
	case backend.MessagePart, backend.MessageQuit:
		return "<--"
	case backend.MessageTopic:
		return "--"
	}
	return m.Author
}

func lineValue(name string, m backend.Message, buf protocol.Pointer) any {
	switch name {
	case "id":
		return int32(m.Seq)
	case "buffer":
		return buf
	case "date", "date_printed":
		return m.At.Unix()
	case "displayed":
		return byte(1)
	case "prefix":
		return protocol.Str(renderPrefix(m))
	case "message":
		return protocol.Str(m.Body)
	case "highlight":
		if m.Highlight {
			return byte(1)
		}
		return byte(0)
	case "tags_array":
		return protocol.StringArray(m.Tags...)
	}
	return nil
}

// lineStore names the line container the request walked; node handles
// derive from it so the same buffer exposes distinct handles for its
// lines and own_lines hierarchies.
func lineStore(req hdataRequest) string {
	if req.linesPath {
		return "lines"
	}
	return "own_lines"
}

func linePPath(buf protocol.Pointer, store, messageID string) []protocol.Pointer {
	return []protocol.Pointer{
		buf,
		pointer.ForNode(buf, store),
		pointer.ForLine(buf, messageID),
		pointer.ForLineData(buf, messageID),
	}
}

func (a *Adapter) appendLines(b *hdata.Builder, fields []protocol.HdataField,
	buf protocol.Pointer, store string, msgs []backend.Message) error {
	for _, m := range msgs {
		values := make([]any, len(fields))
		for i, f := range fields {
			values[i] = lineValue(f.Name, m, buf)
		}
		if err := b.Append(linePPath(buf, store, m.ID), values...); err != nil {
			return err
		}
	}
	return nil
}

// historyAll renders the most recent lines of every buffer into one
// record, oldest first within each buffer.
func (a *Adapter) historyAll(ctx context.Context, id string, req hdataRequest, d Dialect) (*protocol.Message, error) {
	channels, err := a.sess.Channels(ctx)
	if err != nil {
		return nil, err
	}
	fields := resolveFields(req.keys, defaultLineFields(d), lineFieldTypes)
	if len(fields) == 0 {
		return hdata.EmptyMessage(id), nil
	}
	b, err := hdata.New(historyPath, fields)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		buf, ok := channelPointer(ch.ID)
		if !ok {
			continue
		}
		msgs, err := a.sess.History(ctx, ch.ID, req.count)
		if err != nil {
			return nil, err
		}
		if err := a.appendLines(b, fields, buf, lineStore(req), msgs); err != nil {
			return nil, err
		}
	}
	msg := &protocol.Message{ID: id}
	msg.Objects = append(msg.Objects, b.Record())
	return msg, nil
}

// historyOne renders the most recent lines of a single buffer. An
// unknown buffer pointer yields the empty record, never an error frame.
func (a *Adapter) historyOne(ctx context.Context, id string, req hdataRequest, d Dialect) (*protocol.Message, error) {
	channelID, err := pointer.ChannelID(req.buffer)
	if err != nil {
		return hdata.EmptyMessage(id), nil
	}
	msgs, err := a.sess.History(ctx, channelID, req.count)
	if err != nil {
		if errors.Is(err, backend.ErrNoChannel) {
			return hdata.EmptyMessage(id), nil
		}
		return nil, err
	}
	fields := resolveFields(req.keys, defaultLineFields(d), lineFieldTypes)
	if len(fields) == 0 {
		return hdata.EmptyMessage(id), nil
	}
	b, err := hdata.New(historyPath, fields)
	if err != nil {
		return nil, err
	}
	if err := a.appendLines(b, fields, req.buffer, lineStore(req), msgs); err != nil {
		return nil, err
	}
	msg := &protocol.Message{ID: id}
	msg.Objects = append(msg.Objects, b.Record())
	return msg, nil
}

// readMarkers reports the last-read line of every buffer that has one.
func (a *Adapter) readMarkers(ctx context.Context, id string) (*protocol.Message, error) {
	channels, err := a.sess.Channels(ctx)
	if err != nil {
		return nil, err
	}
	fields := []protocol.HdataField{{Name: "buffer", Type: protocol.TypePointer}}
	b, err := hdata.New(readMarkerPath, fields)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		buf, ok := channelPointer(ch.ID)
		if !ok {
			continue
		}
		marker, err := a.sess.ReadMarker(ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		if marker == "" {
			continue
		}
		ppath := []protocol.Pointer{
			buf,
			pointer.ForNode(buf, "own_lines"),
			pointer.ForLine(buf, marker),
			pointer.ForLineData(buf, marker),
		}
		if err := b.Append(ppath, buf); err != nil {
			return nil, err
		}
	}
	msg := &protocol.Message{ID: id}
	msg.Objects = append(msg.Objects, b.Record())
	return msg, nil
}

// pushRecentHistory sends a buffer's backlog as line-added pushes.
// Only browser connections receive this; companion clients keep their
// own store and would duplicate lines.
func (a *Adapter) pushRecentHistory(ctx context.Context, s Conn, buf protocol.Pointer) {
	channelID, err := pointer.ChannelID(buf)
	if err != nil {
		return
	}
	msgs, err := a.sess.History(ctx, channelID, pushHistoryCount)
	if err != nil || len(msgs) == 0 {
		return
	}
	fields := resolveFields(nil, defaultLineFields(DialectBrowser), lineFieldTypes)
	b, err := hdata.New(linePushPath, fields)
	if err != nil {
		return
	}
	for _, m := range msgs {
		values := make([]any, len(fields))
		for i, f := range fields {
			values[i] = lineValue(f.Name, m, buf)
		}
		if err := b.Append([]protocol.Pointer{pointer.ForLineData(buf, m.ID)}, values...); err != nil {
			a.log.Error().Err(err).Msg("adapter: backlog push render failed")
			return
		}
	}
	msg := &protocol.Message{ID: "_buffer_line_added"}
	msg.Objects = append(msg.Objects, b.Record())
	s.Push(msg)
}
