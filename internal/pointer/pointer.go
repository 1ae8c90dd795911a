// Package pointer maps backend entity ids to protocol-visible handles.
//
// The transforms are part of the protocol contract, since clients
// round-trip these values:
//
//	buffer pointer = 0x10000000 + channel_id * 0x10
//
// Buffer pointers are exact and reversible without a lookup table.
// Ephemeral sub-entities (lines, nicklist items, synthetic hierarchy
// nodes) hash a composite key into 0x400000000000 | 48-bit, a range
// disjoint from every buffer pointer; those handles are stable across
// renders of the same item but are never reversed.
package pointer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/zeebo/blake3"

	"github.com/kofany/nexus-sub000/internal/protocol"
)

const (
	BufferBase   protocol.Pointer = 0x10000000
	BufferStride uint64           = 0x10

	// maxChannelID keeps buffer pointers far below the hashed range.
	maxChannelID int64 = 1 << 32

	hashedBase uint64 = 0x4000_0000_0000
	hashedMask uint64 = 1<<48 - 1
)

var (
	ErrChannelIDRange  = errors.New("pointer: channel id out of range")
	ErrNotBufferRange  = errors.New("pointer: value outside buffer pointer range")
	ErrMisalignedValue = errors.New("pointer: value not aligned to buffer stride")
)

// ForChannel derives the buffer pointer for a backend channel id.
func ForChannel(id int64) (protocol.Pointer, error) {
	if id < 0 || id > maxChannelID {
		return 0, fmt.Errorf("%w: %d", ErrChannelIDRange, id)
	}
	return BufferBase + protocol.Pointer(uint64(id)*BufferStride), nil
}

// ChannelID inverts ForChannel. It rejects values outside the buffer
// range or misaligned to the stride.
func ChannelID(p protocol.Pointer) (int64, error) {
	if p < BufferBase {
		return 0, fmt.Errorf("%w: %#x", ErrNotBufferRange, uint64(p))
	}
	off := uint64(p - BufferBase)
	if off%BufferStride != 0 {
		return 0, fmt.Errorf("%w: %#x", ErrMisalignedValue, uint64(p))
	}
	id := int64(off / BufferStride)
	if id > maxChannelID {
		return 0, fmt.Errorf("%w: %#x", ErrNotBufferRange, uint64(p))
	}
	return id, nil
}

// hashed derives a one-way pointer from a composite key. The key parts
// are length-prefixed so distinct part lists never collide textually.
func hashed(parts ...string) protocol.Pointer {
	h := blake3.New()
	var lp [4]byte
	for _, part := range parts {
		binary.BigEndian.PutUint32(lp[:], uint32(len(part)))
		_, _ = h.Write(lp[:])
		_, _ = h.Write([]byte(part))
	}
	sum := h.Sum(nil)
	v := binary.BigEndian.Uint64(sum[:8])
	return protocol.Pointer(hashedBase | (v & hashedMask))
}

// ForLine derives the handle for one rendered line of a buffer.
func ForLine(buffer protocol.Pointer, messageID string) protocol.Pointer {
	return hashed("line", bufferKey(buffer), messageID)
}

// ForLineData derives the line_data node handle for one line.
func ForLineData(buffer protocol.Pointer, messageID string) protocol.Pointer {
	return hashed("line_data", bufferKey(buffer), messageID)
}

// ForNickGroup derives the handle for a nicklist group of a buffer.
func ForNickGroup(buffer protocol.Pointer, group string) protocol.Pointer {
	return hashed("nick_group", bufferKey(buffer), group)
}

// ForNick derives the handle for one nicklist entry of a buffer.
func ForNick(buffer protocol.Pointer, nick string) protocol.Pointer {
	return hashed("nick", bufferKey(buffer), nick)
}

// ForNode derives the handle for a synthetic hierarchy node such as
// own_lines or lines.
func ForNode(buffer protocol.Pointer, node string) protocol.Pointer {
	return hashed("node", bufferKey(buffer), node)
}

func bufferKey(p protocol.Pointer) string {
	return strconv.FormatUint(uint64(p), 16)
}
