package relay

import (
	"strconv"

	"github.com/kofany/nexus-sub000/internal/auth"
	"github.com/kofany/nexus-sub000/internal/protocol"
	"github.com/kofany/nexus-sub000/internal/protocol/frame"
)

// handshakeProposal is the client's handshake option set.
type handshakeProposal struct {
	algos       []string
	compression []string
}

func parseHandshake(args string) handshakeProposal {
	var p handshakeProposal
	for _, kv := range splitOptions(args) {
		switch kv[0] {
		case "password_hash_algo":
			p.algos = splitList(kv[1])
		case "compression":
			p.compression = splitList(kv[1])
		}
	}
	return p
}

func splitList(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ':' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// negotiateCompression picks the strongest mutually supported option:
// zlib when the client lists it and the server offers it, otherwise
// off. Unknown names (including the reserved dictionary codec) are
// refused by ignoring them.
func negotiateCompression(client []string, offerZlib bool) frame.Compression {
	if len(client) == 0 {
		// No proposal: the server default applies.
		if offerZlib {
			return frame.CompressionZlib
		}
		return frame.CompressionOff
	}
	for _, name := range client {
		if c, ok := frame.ParseCompression(name); ok {
			if c == frame.CompressionZlib && offerZlib {
				return frame.CompressionZlib
			}
		}
	}
	return frame.CompressionOff
}

// handshakeReply renders the negotiated handshake hashtable.
func handshakeReply(id string, algo auth.Algo, iterations int, nonce string, comp frame.Compression) *protocol.Message {
	msg := &protocol.Message{ID: id}
	msg.Add(protocol.TypeHashtable, protocol.StringTable(
		[2]string{"password_hash_algo", algo.String()},
		[2]string{"password_hash_iterations", strconv.Itoa(iterations)},
		[2]string{"nonce", nonce},
		[2]string{"compression", comp.String()},
		[2]string{"totp", "off"},
	))
	return msg
}
