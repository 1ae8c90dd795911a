package hdata

import (
	"errors"
	"testing"

	"github.com/kofany/nexus-sub000/internal/protocol"
)

func lineFields() []protocol.HdataField {
	return []protocol.HdataField{
		{Name: "buffer", Type: protocol.TypePointer},
		{Name: "date", Type: protocol.TypeTime},
		{Name: "message", Type: protocol.TypeString},
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("", lineFields()); !errors.Is(err, ErrEmptyPath) {
		t.Fatalf("expected ErrEmptyPath, got %v", err)
	}
	if _, err := New("buffer", nil); !errors.Is(err, ErrNoFields) {
		t.Fatalf("expected ErrNoFields, got %v", err)
	}
	bad := []protocol.HdataField{{Name: "x", Type: protocol.Type("nope")}}
	if _, err := New("buffer", bad); !errors.Is(err, ErrBadField) {
		t.Fatalf("expected ErrBadField, got %v", err)
	}
	arr := []protocol.HdataField{{Name: "tags", Type: protocol.TypeArray}}
	if _, err := New("buffer", arr); !errors.Is(err, ErrBadField) {
		t.Fatalf("expected ErrBadField for array without element type, got %v", err)
	}
}

func TestDepthFollowsPath(t *testing.T) {
	cases := []struct {
		hpath string
		depth int
	}{
		{"buffer", 1},
		{"buffer/nicklist_item", 2},
		{"buffer/lines/line/line_data", 4},
		{"buffer/own_lines/last_read_line/data", 4},
	}
	for _, tc := range cases {
		b, err := New(tc.hpath, lineFields())
		if err != nil {
			t.Fatalf("New(%q): %v", tc.hpath, err)
		}
		if b.Depth() != tc.depth {
			t.Fatalf("Depth(%q) = %d, want %d", tc.hpath, b.Depth(), tc.depth)
		}
	}
}

func TestAppendEnforcesPointerDepth(t *testing.T) {
	b, err := New("buffer/nicklist_item", lineFields())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = b.Append([]protocol.Pointer{1},
		protocol.Pointer(1), int64(0), protocol.Str("a"))
	if !errors.Is(err, ErrPointerDepth) {
		t.Fatalf("expected ErrPointerDepth, got %v", err)
	}
	err = b.Append([]protocol.Pointer{1, 2},
		protocol.Pointer(1), int64(0), protocol.Str("a"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestAppendEnforcesSchema(t *testing.T) {
	b, err := New("buffer", lineFields())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = b.Append([]protocol.Pointer{1}, protocol.Pointer(1), int64(0))
	if !errors.Is(err, ErrValueCount) {
		t.Fatalf("expected ErrValueCount, got %v", err)
	}
	err = b.Append([]protocol.Pointer{1}, protocol.Pointer(1), "not a time", protocol.Str("a"))
	if !errors.Is(err, ErrValueType) {
		t.Fatalf("expected ErrValueType, got %v", err)
	}
}

func TestRecordPreservesSchemaOrder(t *testing.T) {
	b, err := New("buffer", lineFields())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Append([]protocol.Pointer{0x10000010},
		protocol.Pointer(0x10000010), int64(99), protocol.Str("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}

	e := protocol.NewEncoder()
	if err := e.Object(b.Record()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := protocol.NewDecoder(e.Bytes(), protocol.DefaultLimits())
	got, err := d.ReadObject()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h := got.Value.(protocol.Hdata)
	if h.HPath.Text != "buffer" {
		t.Fatalf("hpath = %q", h.HPath.Text)
	}
	for i, f := range lineFields() {
		if h.Fields[i].Name != f.Name || h.Fields[i].Type != f.Type {
			t.Fatalf("field[%d] = %+v, want %+v", i, h.Fields[i], f)
		}
	}
	if len(h.Objects) != 1 || len(h.Objects[0].PPath) != 1 {
		t.Fatalf("unexpected objects: %#v", h.Objects)
	}
	if h.Objects[0].Values[2].(protocol.String).Text != "hello" {
		t.Fatalf("value order not preserved: %#v", h.Objects[0].Values)
	}
}

func TestEmptyRecordDecodes(t *testing.T) {
	e := protocol.NewEncoder()
	if err := e.Object(Empty()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := protocol.NewDecoder(e.Bytes(), protocol.DefaultLimits())
	got, err := d.ReadObject()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h := got.Value.(protocol.Hdata)
	if !h.HPath.Absent || len(h.Objects) != 0 {
		t.Fatalf("not the canonical empty record: %#v", h)
	}
}
