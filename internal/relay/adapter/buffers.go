package adapter

import (
	"context"

	"github.com/kofany/nexus-sub000/internal/backend"
	"github.com/kofany/nexus-sub000/internal/pointer"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/hdata"
)

// bufferFieldTypes is every buffer field the relay can render. Requests
// pick a subset; unknown names are skipped rather than failing the
// whole request.
var bufferFieldTypes = map[string]protocol.HdataField{
	"number":          {Name: "number", Type: protocol.TypeInt},
	"full_name":       {Name: "full_name", Type: protocol.TypeString},
	"short_name":      {Name: "short_name", Type: protocol.TypeString},
	"title":           {Name: "title", Type: protocol.TypeString},
	"local_variables": {Name: "local_variables", Type: protocol.TypeHashtable},
	"notify":          {Name: "notify", Type: protocol.TypeInt},
	"hidden":          {Name: "hidden", Type: protocol.TypeChar},
	"type":            {Name: "type", Type: protocol.TypeInt},
}

var defaultBufferFields = []string{
	"number", "full_name", "short_name", "title", "local_variables",
}

// resolveFields maps requested key names onto a schema, preserving
// request order. Field lists are built per request; nothing here is
// shared between connections.
func resolveFields(keys, defaults []string, types map[string]protocol.HdataField) []protocol.HdataField {
	if len(keys) == 0 {
		keys = defaults
	}
	fields := make([]protocol.HdataField, 0, len(keys))
	for _, k := range keys {
		if f, ok := types[k]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func bufferValue(name string, ch backend.Channel) any {
	switch name {
	case "number":
		return int32(ch.Ordinal)
	case "full_name":
		return protocol.Str(ch.Name)
	case "short_name":
		return protocol.Str(ch.ShortName)
	case "title":
		return protocol.Str(ch.Title)
	case "local_variables":
		return protocol.StringTable(
			[2]string{"plugin", "irc"},
			[2]string{"type", ch.Kind.String()},
			[2]string{"name", ch.ShortName},
			[2]string{"server", ch.Network},
		)
	case "notify":
		return int32(3)
	case "hidden":
		return byte(0)
	case "type":
		return int32(0)
	}
	return nil
}

// bufferListing answers the buffer enumeration request: one object per
// channel, in display order, each addressed by its derived buffer
// pointer.
func (a *Adapter) bufferListing(ctx context.Context, id string, req hdataRequest) (*protocol.Message, error) {
	channels, err := a.sess.Channels(ctx)
	if err != nil {
		return nil, err
	}
	fields := resolveFields(req.keys, defaultBufferFields, bufferFieldTypes)
	if len(fields) == 0 {
		return hdata.EmptyMessage(id), nil
	}
	b, err := hdata.New("buffer", fields)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		p, err := pointer.ForChannel(ch.ID)
		if err != nil {
			a.log.Warn().Err(err).Int64("channel", ch.ID).Msg("adapter: channel skipped in listing")
			continue
		}
		values := make([]any, len(fields))
		for i, f := range fields {
			values[i] = bufferValue(f.Name, ch)
		}
		if err := b.Append([]protocol.Pointer{p}, values...); err != nil {
			return nil, err
		}
	}
	msg := &protocol.Message{ID: id}
	msg.Objects = append(msg.Objects, b.Record())
	return msg, nil
}
