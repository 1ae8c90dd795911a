package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// absentLength is the length word marking an absent string or buffer.
const absentLength = 0xFFFFFFFF

// Encoder appends wire-encoded objects to an in-memory body.
type Encoder struct {
	buf bytes.Buffer
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated body.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) Len() int {
	return e.buf.Len()
}

// Object writes the three-character type code followed by the value.
func (e *Encoder) Object(o Object) error {
	if !o.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, string(o.Type))
	}
	e.typeCode(o.Type)
	return e.value(o.Type, o.Value)
}

// StringValue writes a bare string value without a type code. Message
// identifiers are encoded this way.
func (e *Encoder) StringValue(s String) {
	e.str(s)
}

// EncodeMessage renders a full message body: identifier string followed
// by the object stream. The frame envelope is applied by the frame
// package.
func EncodeMessage(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrValueMismatch
	}
	e := NewEncoder()
	e.str(Str(msg.ID))
	for _, o := range msg.Objects {
		if err := e.Object(o); err != nil {
			return nil, err
		}
	}
	return e.Bytes(), nil
}

// CheckValue reports whether v is an acceptable Go value for wire type
// t. For arrays, elem constrains the element type when non-empty.
func CheckValue(t Type, elem Type, v any) error {
	switch t {
	case TypeChar:
		_, ok := v.(byte)
		if !ok {
			return valueError(t, v)
		}
	case TypeInt:
		_, ok := v.(int32)
		if !ok {
			return valueError(t, v)
		}
	case TypeLong, TypeTime:
		_, ok := v.(int64)
		if !ok {
			return valueError(t, v)
		}
	case TypeString:
		_, ok := v.(String)
		if !ok {
			return valueError(t, v)
		}
	case TypeBuffer:
		_, ok := v.(Buffer)
		if !ok {
			return valueError(t, v)
		}
	case TypePointer:
		_, ok := v.(Pointer)
		if !ok {
			return valueError(t, v)
		}
	case TypeHashtable:
		_, ok := v.(Hashtable)
		if !ok {
			return valueError(t, v)
		}
	case TypeHdata:
		_, ok := v.(Hdata)
		if !ok {
			return valueError(t, v)
		}
	case TypeInfo:
		_, ok := v.(Info)
		if !ok {
			return valueError(t, v)
		}
	case TypeInfolist:
		_, ok := v.(Infolist)
		if !ok {
			return valueError(t, v)
		}
	case TypeArray:
		arr, ok := v.(Array)
		if !ok {
			return valueError(t, v)
		}
		if elem != "" && arr.Elem != elem {
			return fmt.Errorf("%w: array element %q, want %q", ErrValueMismatch, arr.Elem, elem)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
	return nil
}

func valueError(t Type, v any) error {
	return fmt.Errorf("%w: %T is not %q", ErrValueMismatch, v, string(t))
}

func (e *Encoder) typeCode(t Type) {
	e.buf.WriteString(string(t))
}

func (e *Encoder) value(t Type, v any) error {
	if err := CheckValue(t, "", v); err != nil {
		return err
	}
	switch t {
	case TypeChar:
		e.buf.WriteByte(v.(byte))
	case TypeInt:
		e.int32(v.(int32))
	case TypeLong, TypeTime:
		e.digits(strconv.FormatInt(v.(int64), 10))
	case TypeString:
		e.str(v.(String))
	case TypeBuffer:
		e.bytes(v.(Buffer))
	case TypePointer:
		e.pointer(v.(Pointer))
	case TypeHashtable:
		return e.hashtable(v.(Hashtable))
	case TypeHdata:
		return e.hdata(v.(Hdata))
	case TypeInfo:
		info := v.(Info)
		e.str(info.Name)
		e.str(info.Value)
	case TypeInfolist:
		return e.infolist(v.(Infolist))
	case TypeArray:
		return e.array(v.(Array))
	}
	return nil
}

func (e *Encoder) int32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	e.buf.Write(b[:])
}

// digits writes a one-byte length followed by an ASCII digit string.
// Longs, times and pointers travel this way so values may exceed the
// peer's native integer width.
func (e *Encoder) digits(s string) {
	e.buf.WriteByte(byte(len(s)))
	e.buf.WriteString(s)
}

func (e *Encoder) str(s String) {
	if s.Absent {
		e.int32(int32(-1))
		return
	}
	e.int32(int32(len(s.Text)))
	e.buf.WriteString(s.Text)
}

func (e *Encoder) bytes(b Buffer) {
	if b.Absent {
		e.int32(int32(-1))
		return
	}
	e.int32(int32(len(b.Data)))
	e.buf.Write(b.Data)
}

func (e *Encoder) pointer(p Pointer) {
	// The null pointer encodes as the single digit 0.
	e.digits(strconv.FormatUint(uint64(p), 16))
}

func (e *Encoder) hashtable(h Hashtable) error {
	if !h.KeyType.Valid() || !h.ValueType.Valid() {
		return ErrInvalidType
	}
	if len(h.Keys) != len(h.Values) {
		return fmt.Errorf("%w: hashtable key/value count mismatch", ErrValueMismatch)
	}
	e.typeCode(h.KeyType)
	e.typeCode(h.ValueType)
	e.int32(int32(len(h.Keys)))
	for i := range h.Keys {
		if err := e.value(h.KeyType, h.Keys[i]); err != nil {
			return err
		}
		if err := e.value(h.ValueType, h.Values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) hdata(h Hdata) error {
	if h.HPath.Absent {
		if len(h.Fields) != 0 || len(h.Objects) != 0 {
			return fmt.Errorf("%w: empty record with fields or objects", ErrValueMismatch)
		}
		e.str(AbsentString())
		e.str(AbsentString())
		e.int32(0)
		return nil
	}
	depth := strings.Count(h.HPath.Text, "/") + 1
	e.str(h.HPath)
	e.str(Str(renderSchema(h.Fields)))
	e.int32(int32(len(h.Objects)))
	for _, obj := range h.Objects {
		if len(obj.PPath) != depth {
			return fmt.Errorf("%w: pointer path length %d, hpath depth %d",
				ErrValueMismatch, len(obj.PPath), depth)
		}
		if len(obj.Values) != len(h.Fields) {
			return fmt.Errorf("%w: %d values for %d fields",
				ErrValueMismatch, len(obj.Values), len(h.Fields))
		}
		for _, p := range obj.PPath {
			e.pointer(p)
		}
		for i, f := range h.Fields {
			if err := CheckValue(f.Type, f.Elem, obj.Values[i]); err != nil {
				return err
			}
			if err := e.value(f.Type, obj.Values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderSchema renders hdata fields as "name:type" pairs, with
// "name:type:subtype" for arrays, joined by commas.
func renderSchema(fields []HdataField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Type == TypeArray {
			parts = append(parts, f.Name+":"+string(f.Type)+":"+string(f.Elem))
			continue
		}
		parts = append(parts, f.Name+":"+string(f.Type))
	}
	return strings.Join(parts, ",")
}

func (e *Encoder) infolist(l Infolist) error {
	e.str(l.Name)
	e.int32(int32(len(l.Items)))
	for _, item := range l.Items {
		e.int32(int32(len(item.Vars)))
		for _, v := range item.Vars {
			if !v.Type.Valid() {
				return fmt.Errorf("%w: %q", ErrInvalidType, string(v.Type))
			}
			e.str(v.Name)
			e.typeCode(v.Type)
			if err := e.value(v.Type, v.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Encoder) array(a Array) error {
	if !a.Elem.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, string(a.Elem))
	}
	e.typeCode(a.Elem)
	e.int32(int32(len(a.Items)))
	for _, item := range a.Items {
		if err := e.value(a.Elem, item); err != nil {
			return err
		}
	}
	return nil
}
