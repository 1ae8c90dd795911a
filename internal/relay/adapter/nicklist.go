package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/kofany/nexus-sub000/internal/backend"
	"github.com/kofany/nexus-sub000/internal/pointer"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/hdata"
	"github.com/kofany/nexus-sub000/internal/relay"
)

const nicklistPath = "buffer/nicklist_item"

var nicklistFields = []protocol.HdataField{
	{Name: "group", Type: protocol.TypeChar},
	{Name: "visible", Type: protocol.TypeChar},
	{Name: "level", Type: protocol.TypeInt},
	{Name: "name", Type: protocol.TypeString},
	{Name: "color", Type: protocol.TypeString},
	{Name: "prefix", Type: protocol.TypeString},
	{Name: "prefix_color", Type: protocol.TypeString},
}

// mode groups in display order, mirroring the usual op/voice/regular
// split clients expect.
var nickGroups = []struct {
	mode, name, prefix, prefixColor string
}{
	{"o", "000|o", "@", "lightgreen"},
	{"v", "001|v", "+", "yellow"},
	{"", "999|...", "", ""},
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// appendNicklist renders one buffer's nicklist: a root group, one group
// per populated mode, and the member entries under each group.
func appendNicklist(b *hdata.Builder, buf protocol.Pointer, members []backend.Member) error {
	if len(members) == 0 {
		return nil
	}
	root := []any{
		byte(1), byte(0), int32(0),
		protocol.Str("root"), protocol.Str(""), protocol.Str(""), protocol.Str(""),
	}
	rootPath := []protocol.Pointer{buf, pointer.ForNickGroup(buf, "root")}
	if err := b.Append(rootPath, root...); err != nil {
		return err
	}
	for _, g := range nickGroups {
		var matched []backend.Member
		for _, m := range members {
			if m.Mode == g.mode {
				matched = append(matched, m)
			}
		}
		if len(matched) == 0 {
			continue
		}
		gp := []protocol.Pointer{buf, pointer.ForNickGroup(buf, g.name)}
		values := []any{
			byte(1), byte(0), int32(1),
			protocol.Str(g.name), protocol.Str(""), protocol.Str(""), protocol.Str(""),
		}
		if err := b.Append(gp, values...); err != nil {
			return err
		}
		for _, m := range matched {
			np := []protocol.Pointer{buf, pointer.ForNick(buf, m.Nick)}
			values := []any{
				byte(0), byte(1), int32(0),
				protocol.Str(m.Nick), protocol.Str(m.Color),
				protocol.Str(g.prefix), protocol.Str(g.prefixColor),
			}
			if err := b.Append(np, values...); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleNicklist answers the nicklist command: all conversation buffers
// when no argument, one buffer when given its pointer.
func (a *Adapter) handleNicklist(ctx context.Context, s Conn, cmd relay.Command) {
	msg, err := a.nicklist(ctx, cmd.ID, strings.TrimSpace(cmd.Args))
	if err != nil {
		a.log.Error().Err(err).Msg("adapter: nicklist failed")
		msg = hdata.EmptyMessage(cmd.ID)
	}
	if err := s.Send(msg); err != nil {
		a.log.Debug().Err(err).Msg("adapter: nicklist reply dropped")
	}
}

func (a *Adapter) nicklist(ctx context.Context, id, target string) (*protocol.Message, error) {
	b, err := hdata.New(nicklistPath, nicklistFields)
	if err != nil {
		return nil, err
	}
	if target == "" {
		channels, err := a.sess.Channels(ctx)
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			if err := a.appendChannelNicklist(ctx, b, ch.ID); err != nil {
				return nil, err
			}
		}
	} else {
		buf, err := parsePointer(target)
		if err != nil {
			return hdata.EmptyMessage(id), nil
		}
		channelID, err := pointer.ChannelID(buf)
		if err != nil {
			return hdata.EmptyMessage(id), nil
		}
		if err := a.appendChannelNicklist(ctx, b, channelID); err != nil {
			return nil, err
		}
	}
	if b.Len() == 0 {
		return hdata.EmptyMessage(id), nil
	}
	msg := &protocol.Message{ID: id}
	msg.Objects = append(msg.Objects, b.Record())
	return msg, nil
}

func (a *Adapter) appendChannelNicklist(ctx context.Context, b *hdata.Builder, channelID int64) error {
	members, err := a.sess.Members(ctx, channelID)
	if err != nil {
		if errors.Is(err, backend.ErrNoChannel) {
			return nil
		}
		return err
	}
	buf, ok := channelPointer(channelID)
	if !ok {
		return nil
	}
	return appendNicklist(b, buf, members)
}

// nicklistDiff renders the delta between the previously pushed member
// snapshot and the current one: removed entries first, then added, then
// changed. The leading _diff column carries the operation.
func nicklistDiff(buf protocol.Pointer, prev, cur []backend.Member) (*protocol.Message, error) {
	fields := append([]protocol.HdataField{
		{Name: "_diff", Type: protocol.TypeChar},
	}, nicklistFields...)
	b, err := hdata.New(nicklistPath, fields)
	if err != nil {
		return nil, err
	}
	prevByNick := make(map[string]backend.Member, len(prev))
	for _, m := range prev {
		prevByNick[m.Nick] = m
	}
	curByNick := make(map[string]backend.Member, len(cur))
	for _, m := range cur {
		curByNick[m.Nick] = m
	}
	appendOp := func(op byte, m backend.Member) error {
		prefix, prefixColor := modePrefix(m.Mode)
		pp := []protocol.Pointer{buf, pointer.ForNick(buf, m.Nick)}
		return b.Append(pp,
			op, byte(0), byte(1), int32(0),
			protocol.Str(m.Nick), protocol.Str(m.Color),
			protocol.Str(prefix), protocol.Str(prefixColor))
	}
	for _, m := range prev {
		if _, ok := curByNick[m.Nick]; !ok {
			if err := appendOp('-', m); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range cur {
		old, ok := prevByNick[m.Nick]
		switch {
		case !ok:
			if err := appendOp('+', m); err != nil {
				return nil, err
			}
		case old.Mode != m.Mode || old.Color != m.Color:
			if err := appendOp('*', m); err != nil {
				return nil, err
			}
		}
	}
	if b.Len() == 0 {
		return nil, nil
	}
	msg := &protocol.Message{ID: "_nicklist_diff"}
	msg.Objects = append(msg.Objects, b.Record())
	return msg, nil
}

func modePrefix(mode string) (prefix, color string) {
	for _, g := range nickGroups {
		if g.mode == mode {
			return g.prefix, g.prefixColor
		}
	}
	return "", ""
}
