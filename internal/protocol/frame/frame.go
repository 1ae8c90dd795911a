// Package frame owns the relay frame envelope: a 4-byte big-endian
// total length, a 1-byte compression selector, and the message body.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/kofany/nexus-sub000/internal/protocol"
)

// Compression is the frame compression selector byte.
type Compression byte

const (
	CompressionOff  Compression = 0
	CompressionZlib Compression = 1
	// CompressionDict is reserved by the protocol for a dictionary codec
	// this bridge does not implement. Selecting it fails closed.
	CompressionDict Compression = 2
)

const headerLen = 5

var (
	ErrShortFrame             = errors.New("frame: short frame")
	ErrFrameTooLarge          = errors.New("frame: frame too large")
	ErrLengthMismatch         = errors.New("frame: declared length does not match data")
	ErrUnsupportedCompression = errors.New("frame: unsupported compression selector")
)

// Limits constrains frame encode/decode memory use.
type Limits struct {
	MaxFrameBytes uint32
	Codec         protocol.Limits
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 16 * 1024 * 1024,
		Codec:         protocol.DefaultLimits(),
	}
}

// ParseCompression maps a negotiated compression name to its selector.
func ParseCompression(name string) (Compression, bool) {
	switch name {
	case "off":
		return CompressionOff, true
	case "zlib":
		return CompressionZlib, true
	}
	return 0, false
}

func (c Compression) String() string {
	switch c {
	case CompressionOff:
		return "off"
	case CompressionZlib:
		return "zlib"
	case CompressionDict:
		return "dict"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// Marshal frames one message. The declared length covers the length
// field itself, the selector byte, and the (possibly compressed) body.
func Marshal(msg *protocol.Message, comp Compression, limits Limits) ([]byte, error) {
	body, err := protocol.EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	switch comp {
	case CompressionOff:
	case CompressionZlib:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		body = buf.Bytes()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, comp)
	}

	total := uint64(headerLen) + uint64(len(body))
	if total > uint64(limits.MaxFrameBytes) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, total)
	}
	out := make([]byte, headerLen, total)
	binary.BigEndian.PutUint32(out[0:4], uint32(total))
	out[4] = byte(comp)
	return append(out, body...), nil
}

// Unmarshal parses one complete frame back into a message. It is the
// inverse of Marshal and exists for conformance tests and client-side
// tooling; inbound client traffic is text lines, never frames.
func Unmarshal(data []byte, limits Limits) (*protocol.Message, error) {
	if len(data) < headerLen {
		return nil, ErrShortFrame
	}
	declared := binary.BigEndian.Uint32(data[0:4])
	if declared > limits.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, declared)
	}
	if int(declared) != len(data) {
		return nil, fmt.Errorf("%w: declared %d, have %d", ErrLengthMismatch, declared, len(data))
	}
	body := data[headerLen:]
	switch Compression(data[4]) {
	case CompressionOff:
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		inflated, err := io.ReadAll(io.LimitReader(zr, int64(limits.MaxFrameBytes)+1))
		if err != nil {
			return nil, err
		}
		if len(inflated) > int(limits.MaxFrameBytes) {
			return nil, fmt.Errorf("%w: inflated body", ErrFrameTooLarge)
		}
		body = inflated
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, Compression(data[4]))
	}
	return protocol.DecodeMessage(body, limits.Codec)
}
