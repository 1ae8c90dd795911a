package adapter

import (
	"strconv"
	"strings"

	"github.com/kofany/nexus-sub000/internal/protocol"
)

type requestKind int

const (
	reqUnknown requestKind = iota
	reqListBuffers
	reqHistoryAll
	reqHistoryOne
	reqReadMarkers
)

// hdataRequest is the parsed form of an hdata command argument. keys
// holds the client's requested field names in request order; an empty
// slice means the server default set.
type hdataRequest struct {
	kind      requestKind
	buffer    protocol.Pointer
	count     int
	linesPath bool
	keys      []string
}

const allBuffers = "gui_buffers(*)"

// parseHDataArgs recognizes the four request shapes served by the
// relay: buffer listing, bulk all-buffers history, single-buffer
// history, and read markers. Anything else parses as reqUnknown and is
// answered with the canonical empty record.
func parseHDataArgs(args string) hdataRequest {
	path, keyspec, _ := strings.Cut(strings.TrimSpace(args), " ")
	req := hdataRequest{keys: splitKeys(keyspec)}

	root, rest, _ := strings.Cut(path, "/")
	source, target, ok := strings.Cut(root, ":")
	if !ok || source != "buffer" {
		return req
	}

	all := target == allBuffers
	if !all {
		p, err := parsePointer(target)
		if err != nil {
			return req
		}
		req.buffer = p
	}

	if rest == "" {
		if all {
			req.kind = reqListBuffers
		}
		return req
	}

	segs := strings.Split(rest, "/")
	if len(segs) != 3 {
		return req
	}
	store, selector, leaf := segs[0], segs[1], segs[2]
	if leaf != "data" {
		return req
	}

	switch {
	case selector == "last_read_line" && store == "own_lines" && all:
		req.kind = reqReadMarkers
	case strings.HasPrefix(selector, "last_line(") && strings.HasSuffix(selector, ")"):
		n, err := strconv.Atoi(selector[len("last_line(") : len(selector)-1])
		if err != nil {
			return req
		}
		if n < 0 {
			n = -n
		}
		switch store {
		case "own_lines":
			req.count = n
			if all {
				req.kind = reqHistoryAll
			} else {
				req.kind = reqHistoryOne
			}
		case "lines":
			if !all {
				req.count = n
				req.kind = reqHistoryOne
				req.linesPath = true
			}
		}
	}
	return req
}

func splitKeys(spec string) []string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	parts := strings.Split(spec, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

func parsePointer(s string) (protocol.Pointer, error) {
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, err
	}
	return protocol.Pointer(v), nil
}
