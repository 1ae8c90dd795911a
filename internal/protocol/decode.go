package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Limits constrains decode memory use. Declared lengths are never
// trusted beyond the bytes actually available.
type Limits struct {
	MaxStringBytes     int
	MaxCollectionItems int
}

func DefaultLimits() Limits {
	return Limits{
		MaxStringBytes:     8 * 1024 * 1024,
		MaxCollectionItems: 1 << 20,
	}
}

// Decoder reads wire objects from an in-memory body.
type Decoder struct {
	data   []byte
	off    int
	limits Limits
}

func NewDecoder(data []byte, limits Limits) *Decoder {
	return &Decoder{data: data, limits: limits}
}

// Remaining reports how many undecoded bytes are left.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// ReadObject decodes one type code plus value.
func (d *Decoder) ReadObject() (Object, error) {
	t, err := d.readType()
	if err != nil {
		return Object{}, err
	}
	v, err := d.readValue(t)
	if err != nil {
		return Object{}, err
	}
	return Object{Type: t, Value: v}, nil
}

// ReadStringValue decodes a bare string value without a type code.
func (d *Decoder) ReadStringValue() (String, error) {
	return d.readStr()
}

// DecodeMessage parses a full message body: identifier string followed
// by objects until the body is exhausted.
func DecodeMessage(body []byte, limits Limits) (*Message, error) {
	d := NewDecoder(body, limits)
	id, err := d.readStr()
	if err != nil {
		return nil, err
	}
	msg := &Message{ID: id.Text}
	for d.Remaining() > 0 {
		o, err := d.ReadObject()
		if err != nil {
			return nil, err
		}
		msg.Objects = append(msg.Objects, o)
	}
	return msg, nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrInvalidLength
	}
	if d.Remaining() < n {
		return nil, ErrTruncated
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) readType() (Type, error) {
	b, err := d.take(3)
	if err != nil {
		return "", err
	}
	t := Type(b)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, string(b))
	}
	return t, nil
}

func (d *Decoder) readValue(t Type) (any, error) {
	switch t {
	case TypeChar:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil
	case TypeInt:
		return d.readInt32()
	case TypeLong, TypeTime:
		return d.readLong()
	case TypeString:
		return d.readStr()
	case TypeBuffer:
		return d.readBuf()
	case TypePointer:
		return d.readPointer()
	case TypeHashtable:
		return d.readHashtable()
	case TypeHdata:
		return d.readHdata()
	case TypeInfo:
		return d.readInfo()
	case TypeInfolist:
		return d.readInfolist()
	case TypeArray:
		return d.readArray()
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidType, string(t))
}

func (d *Decoder) readInt32() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (d *Decoder) readCount() (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, ErrInvalidLength
	}
	if int(n) > d.limits.MaxCollectionItems {
		return 0, fmt.Errorf("%w: %d items", ErrLimitExceeded, n)
	}
	return int(n), nil
}

func (d *Decoder) readDigits() (string, error) {
	lb, err := d.take(1)
	if err != nil {
		return "", err
	}
	b, err := d.take(int(lb[0]))
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", ErrMalformedNumber
	}
	return string(b), nil
}

func (d *Decoder) readLong() (int64, error) {
	s, err := d.readDigits()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	return v, nil
}

func (d *Decoder) readPointer() (Pointer, error) {
	s, err := d.readDigits()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedNumber, s)
	}
	return Pointer(v), nil
}

func (d *Decoder) readStr() (String, error) {
	raw, err := d.readLenPrefixed()
	if err != nil {
		return String{}, err
	}
	if raw == nil {
		return AbsentString(), nil
	}
	return Str(string(raw)), nil
}

func (d *Decoder) readBuf() (Buffer, error) {
	raw, err := d.readLenPrefixed()
	if err != nil {
		return Buffer{}, err
	}
	if raw == nil {
		return Buffer{Absent: true}, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return Buffer{Data: out}, nil
}

// readLenPrefixed returns nil (without error) for the absent value.
func (d *Decoder) readLenPrefixed() ([]byte, error) {
	b, err := d.take(4)
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(b)
	if length == absentLength {
		return nil, nil
	}
	if int64(length) > int64(d.limits.MaxStringBytes) {
		return nil, fmt.Errorf("%w: %d bytes", ErrLimitExceeded, length)
	}
	raw, err := d.take(int(length))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = []byte{}
	}
	return raw, nil
}

func (d *Decoder) readHashtable() (Hashtable, error) {
	kt, err := d.readType()
	if err != nil {
		return Hashtable{}, err
	}
	vt, err := d.readType()
	if err != nil {
		return Hashtable{}, err
	}
	count, err := d.readCount()
	if err != nil {
		return Hashtable{}, err
	}
	h := Hashtable{KeyType: kt, ValueType: vt}
	for i := 0; i < count; i++ {
		k, err := d.readValue(kt)
		if err != nil {
			return Hashtable{}, err
		}
		v, err := d.readValue(vt)
		if err != nil {
			return Hashtable{}, err
		}
		h.Keys = append(h.Keys, k)
		h.Values = append(h.Values, v)
	}
	return h, nil
}

func (d *Decoder) readHdata() (Hdata, error) {
	hpath, err := d.readStr()
	if err != nil {
		return Hdata{}, err
	}
	keys, err := d.readStr()
	if err != nil {
		return Hdata{}, err
	}
	count, err := d.readCount()
	if err != nil {
		return Hdata{}, err
	}
	if hpath.Absent {
		if count != 0 {
			return Hdata{}, fmt.Errorf("%w: empty record with %d objects", ErrInvalidLength, count)
		}
		return Hdata{HPath: AbsentString()}, nil
	}
	fields, err := parseSchema(keys)
	if err != nil {
		return Hdata{}, err
	}
	depth := strings.Count(hpath.Text, "/") + 1
	h := Hdata{HPath: hpath, Fields: fields}
	for i := 0; i < count; i++ {
		obj := HdataObject{PPath: make([]Pointer, 0, depth)}
		for j := 0; j < depth; j++ {
			p, err := d.readPointer()
			if err != nil {
				return Hdata{}, err
			}
			obj.PPath = append(obj.PPath, p)
		}
		for _, f := range fields {
			v, err := d.readValue(f.Type)
			if err != nil {
				return Hdata{}, err
			}
			obj.Values = append(obj.Values, v)
		}
		h.Objects = append(h.Objects, obj)
	}
	return h, nil
}

// parseSchema parses a "name:type,name:type:subtype" schema string.
func parseSchema(keys String) ([]HdataField, error) {
	if keys.Absent || keys.Text == "" {
		return nil, nil
	}
	parts := strings.Split(keys.Text, ",")
	fields := make([]HdataField, 0, len(parts))
	for _, part := range parts {
		sub := strings.Split(part, ":")
		f := HdataField{Name: sub[0]}
		switch len(sub) {
		case 2:
			f.Type = Type(sub[1])
		case 3:
			f.Type = Type(sub[1])
			f.Elem = Type(sub[2])
		default:
			return nil, fmt.Errorf("%w: %q", ErrMalformedSchema, part)
		}
		if f.Name == "" || !f.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSchema, part)
		}
		if f.Type == TypeArray && !f.Elem.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSchema, part)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (d *Decoder) readInfo() (Info, error) {
	name, err := d.readStr()
	if err != nil {
		return Info{}, err
	}
	value, err := d.readStr()
	if err != nil {
		return Info{}, err
	}
	return Info{Name: name, Value: value}, nil
}

func (d *Decoder) readInfolist() (Infolist, error) {
	name, err := d.readStr()
	if err != nil {
		return Infolist{}, err
	}
	count, err := d.readCount()
	if err != nil {
		return Infolist{}, err
	}
	l := Infolist{Name: name}
	for i := 0; i < count; i++ {
		varCount, err := d.readCount()
		if err != nil {
			return Infolist{}, err
		}
		item := InfolistItem{}
		for j := 0; j < varCount; j++ {
			vname, err := d.readStr()
			if err != nil {
				return Infolist{}, err
			}
			vtype, err := d.readType()
			if err != nil {
				return Infolist{}, err
			}
			v, err := d.readValue(vtype)
			if err != nil {
				return Infolist{}, err
			}
			item.Vars = append(item.Vars, InfolistVar{Name: vname, Type: vtype, Value: v})
		}
		l.Items = append(l.Items, item)
	}
	return l, nil
}

func (d *Decoder) readArray() (Array, error) {
	elem, err := d.readType()
	if err != nil {
		return Array{}, err
	}
	count, err := d.readCount()
	if err != nil {
		return Array{}, err
	}
	a := Array{Elem: elem}
	for i := 0; i < count; i++ {
		v, err := d.readValue(elem)
		if err != nil {
			return Array{}, err
		}
		a.Items = append(a.Items, v)
	}
	return a, nil
}
