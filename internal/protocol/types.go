package protocol

// Type is a three-character ASCII wire type code.
type Type string

const (
	TypeChar      Type = "chr"
	TypeInt       Type = "int"
	TypeLong      Type = "lon"
	TypeString    Type = "str"
	TypeBuffer    Type = "buf"
	TypePointer   Type = "ptr"
	TypeTime      Type = "tim"
	TypeHashtable Type = "htb"
	TypeHdata     Type = "hda"
	TypeInfo      Type = "inf"
	TypeInfolist  Type = "inl"
	TypeArray     Type = "arr"
)

// Valid reports whether t is a known wire type code.
func (t Type) Valid() bool {
	switch t {
	case TypeChar, TypeInt, TypeLong, TypeString, TypeBuffer, TypePointer,
		TypeTime, TypeHashtable, TypeHdata, TypeInfo, TypeInfolist, TypeArray:
		return true
	}
	return false
}

// Pointer is an opaque protocol handle. Zero is the null pointer.
type Pointer uint64

// String is a wire string. The absent string is distinct from the empty
// one and must round-trip as absent.
type String struct {
	Absent bool
	Text   string
}

// Str wraps a present string value.
func Str(s string) String {
	return String{Text: s}
}

// AbsentString is the wire string of length -1.
func AbsentString() String {
	return String{Absent: true}
}

// Buffer is a wire byte buffer with the same absent/empty distinction
// as String.
type Buffer struct {
	Absent bool
	Data   []byte
}

// Hashtable is an ordered sequence of typed key/value pairs. Order is
// preserved on the wire; keys and values must match KeyType/ValueType.
type Hashtable struct {
	KeyType   Type
	ValueType Type
	Keys      []any
	Values    []any
}

// StringTable builds a str->str hashtable from ordered pairs.
func StringTable(pairs ...[2]string) Hashtable {
	h := Hashtable{KeyType: TypeString, ValueType: TypeString}
	for _, p := range pairs {
		h.Keys = append(h.Keys, Str(p[0]))
		h.Values = append(h.Values, Str(p[1]))
	}
	return h
}

// Array is a homogeneous typed array.
type Array struct {
	Elem  Type
	Items []any
}

// StringArray builds a str array.
func StringArray(items ...string) Array {
	a := Array{Elem: TypeString}
	for _, s := range items {
		a.Items = append(a.Items, Str(s))
	}
	return a
}

// Info is a name/value metadata pair.
type Info struct {
	Name  String
	Value String
}

// InfolistVar is one named, typed value inside an infolist item.
type InfolistVar struct {
	Name  String
	Type  Type
	Value any
}

// InfolistItem is one variable set inside an infolist.
type InfolistItem struct {
	Vars []InfolistVar
}

// Infolist is a named list of variable sets.
type Infolist struct {
	Name  String
	Items []InfolistItem
}

// HdataField is one (name, type) column of an hdata schema. Elem is set
// only for array-typed fields.
type HdataField struct {
	Name string
	Type Type
	Elem Type
}

// HdataObject is one hdata row: a pointer path plus one value per
// schema field, in schema order.
type HdataObject struct {
	PPath  []Pointer
	Values []any
}

// Hdata is a hierarchical structured record. The empty record (absent
// hpath, no fields, no objects) is the canonical "no data" reply.
type Hdata struct {
	HPath   String
	Fields  []HdataField
	Objects []HdataObject
}

// Object is one typed value in a message object stream.
type Object struct {
	Type  Type
	Value any
}

// Obj pairs a type code with its value.
func Obj(t Type, v any) Object {
	return Object{Type: t, Value: v}
}

// Message is one outbound relay message: an identifier echoed back to
// the requesting client plus an ordered object stream.
type Message struct {
	ID      string
	Objects []Object
}

// Add appends a typed object to the message.
func (m *Message) Add(t Type, v any) *Message {
	m.Objects = append(m.Objects, Object{Type: t, Value: v})
	return m
}
