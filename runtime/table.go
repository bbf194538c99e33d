package runtime

// Size is a pair of byte sizes/offsets, one per pointer width. Generated
// code always builds a Size{Size32, Size64: ...} literal; PtrSize64
// picks the member matching the running binary's actual pointer width,
// so the same generated table serves 32-bit and 64-bit builds without
// recompilation, unlike the reference C generator's arch-specific output.
type Size struct {
	Size32 uint32
	Size64 uint32
}

// Of picks the member matching the host's pointer width.
func (s Size) Of() uint32 {
	if PtrSize64 {
		return s.Size64
	}
	return s.Size32
}

// Repr is a field's in-memory representation tag.
type Repr uint8

const (
	Repr1Byte Repr = iota
	Repr4Byte
	Repr8Byte
	ReprStrView
	ReprPointer
)

// Kind is a field's coarse dispatch mode.
type Kind uint8

const (
	KindScalar Kind = iota
	KindArray
	KindMap
)

// Mode packs Kind plus flag bits, mirroring the compiler's ir.Mode.
type Mode uint8

const (
	modeKindMask      Mode = 0x7
	ModeFlagPacked    Mode = 1 << 3
	ModeFlagExtension Mode = 1 << 4
)

func NewMode(kind Kind, packed, extension bool) Mode {
	m := Mode(kind)
	if packed {
		m |= ModeFlagPacked
	}
	if extension {
		m |= ModeFlagExtension
	}
	return m
}

func (m Mode) Kind() Kind      { return Kind(m & modeKindMask) }
func (m Mode) Packed() bool    { return m&ModeFlagPacked != 0 }
func (m Mode) Extension() bool { return m&ModeFlagExtension != 0 }

// ExtMode classifies how a message's extension range, if any, encodes.
type ExtMode uint8

const (
	ExtNone ExtMode = iota
	ExtExtendable
	ExtMsgSet
)

// StrView mirrors upb_strview: a non-owning pointer+length view over a
// string or bytes value stored elsewhere. Field slots typed ReprStrView
// do not hold this type: the encoder and the generated accessors read
// and write them as a Go string header.
type StrView struct {
	Data *byte
	Len  uint32
}

// ScalarCodec names the primitive wire encoding of a scalar field's
// value, independent of Go type: it picks which Buffer.Write* method
// and which Repr the generic encoder use.
type ScalarCodec uint8

const (
	CodecBool ScalarCodec = iota
	CodecInt32              // varint, sign-extended to 64 bits first
	CodecUint32             // varint, zero-extended
	CodecInt64              // varint of the raw 64-bit pattern
	CodecUint64             // varint of the raw 64-bit pattern
	CodecSint32             // zigzag32 then varint
	CodecSint64             // zigzag64 then varint
	CodecFixed32
	CodecFixed64
	CodecFloat
	CodecDouble
	CodecString
	CodecBytes
	CodecMessage
	CodecGroup
)

// FieldEntry is one message field's runtime layout+encoding record, the
// data half of what upb calls a upb_msglayout_field. Generated code
// builds one array of these per message type (component E).
type FieldEntry struct {
	Number   int32
	Offset   Size
	Presence Presence
	Mode     Mode
	Repr     Repr
	Codec    ScalarCodec
	Submsg   *MessageTable // non-nil for message/group-kind fields

	// MapEncode is set only for KindMap fields: maps pair arbitrary
	// Go key/value types, which a layout-offset table can't describe
	// generically, so the generator emits one closure per map field
	// with the concrete types baked in. It must encode every entry
	// (sorted by key, for deterministic output) including each
	// entry's length prefix and field tag.
	MapEncode func(msg Message, buf *Buffer)
}

// MessageTable is one message type's complete runtime layout: its field
// table in field-number order (walked back-to-front by Encode, per the
// one-pass backwards encoder), its size for message-value allocation,
// and (optionally) its fast-dispatch table.
type MessageTable struct {
	Fields  []FieldEntry
	Size    Size
	ExtMode ExtMode

	// UnknownOffset is the slot every message reserves for its captured
	// unknown-byte range (a *[]byte, nil until SetUnknownBytes is called).
	UnknownOffset Size

	// ExtensionsOffset is the slot holding a message's extension set (an
	// *Extensions, nil until the first extension is set). Only valid when
	// ExtMode != ExtNone.
	ExtensionsOffset Size

	FastTable []FastEntry
	FastMask  int32
}

// FastEntry is one slot of a message's fast-dispatch table (component
// C): a symbolic function name chosen by the code generator plus the
// packed dispatch word described in package ir. The generic Encode path
// below does not consume these; they exist for a future hand-tuned
// dispatcher to specialize against, exactly as upb's MiniTable feeds
// its separately-maintained fastdecode.c.
type FastEntry struct {
	Func string
	Data uint64
}
