// Package hdata builds hierarchical structured records on top of the
// object codec.
//
// Invariants enforced here, not left to callers:
// - every object's pointer path is exactly as long as the hpath depth
// - values appear in schema order and match their declared types
package hdata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kofany/nexus-sub000/internal/protocol"
)

var (
	ErrEmptyPath    = errors.New("hdata: empty hpath")
	ErrNoFields     = errors.New("hdata: schema has no fields")
	ErrBadField     = errors.New("hdata: invalid schema field")
	ErrPointerDepth = errors.New("hdata: pointer path length does not match hpath depth")
	ErrValueCount   = errors.New("hdata: value count does not match schema")
	ErrValueType    = errors.New("hdata: value does not match schema field type")
)

// Builder accumulates objects for one hdata record. The hpath and
// schema are fixed at construction; Append validates every object
// against them.
type Builder struct {
	hpath   string
	depth   int
	fields  []protocol.HdataField
	objects []protocol.HdataObject
}

// New creates a builder for the given hierarchy path and field schema.
func New(hpath string, fields []protocol.HdataField) (*Builder, error) {
	if strings.TrimSpace(hpath) == "" {
		return nil, ErrEmptyPath
	}
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	for _, f := range fields {
		if f.Name == "" || !f.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrBadField, f.Name)
		}
		if f.Type == protocol.TypeArray && !f.Elem.Valid() {
			return nil, fmt.Errorf("%w: array field %q missing element type", ErrBadField, f.Name)
		}
	}
	return &Builder{
		hpath:  hpath,
		depth:  strings.Count(hpath, "/") + 1,
		fields: fields,
	}, nil
}

// Depth is the number of hierarchy levels in the hpath.
func (b *Builder) Depth() int {
	return b.depth
}

// Len is the number of appended objects.
func (b *Builder) Len() int {
	return len(b.objects)
}

// Append adds one object. The pointer path must have exactly Depth
// entries and values must match the schema in order.
func (b *Builder) Append(ppath []protocol.Pointer, values ...any) error {
	if len(ppath) != b.depth {
		return fmt.Errorf("%w: got %d, want %d", ErrPointerDepth, len(ppath), b.depth)
	}
	if len(values) != len(b.fields) {
		return fmt.Errorf("%w: got %d, want %d", ErrValueCount, len(values), len(b.fields))
	}
	for i, f := range b.fields {
		if err := protocol.CheckValue(f.Type, f.Elem, values[i]); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrValueType, f.Name, err)
		}
	}
	pp := make([]protocol.Pointer, len(ppath))
	copy(pp, ppath)
	vv := make([]any, len(values))
	copy(vv, values)
	b.objects = append(b.objects, protocol.HdataObject{PPath: pp, Values: vv})
	return nil
}

// Record returns the built record as a wire object.
func (b *Builder) Record() protocol.Object {
	return protocol.Obj(protocol.TypeHdata, protocol.Hdata{
		HPath:   protocol.Str(b.hpath),
		Fields:  b.fields,
		Objects: b.objects,
	})
}

// Empty is the canonical "no matching data" record: absent hpath,
// absent schema, zero objects. It is a well-formed reply, never an
// error frame.
func Empty() protocol.Object {
	return protocol.Obj(protocol.TypeHdata, protocol.Hdata{HPath: protocol.AbsentString()})
}

// EmptyMessage wraps the empty record under a request identifier.
func EmptyMessage(id string) *protocol.Message {
	msg := &protocol.Message{ID: id}
	msg.Objects = append(msg.Objects, Empty())
	return msg
}
