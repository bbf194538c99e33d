// Package ir is the immutable intermediate representation shared by the
// layout computer, the fast-dispatch table builder and the two code
// emitters. An *ir.Message is a pure function of the protogen descriptor it
// was built from; nothing here depends on plugin I/O or output file paths.
package ir

import (
	"google.golang.org/protobuf/compiler/protogen"
)

// Size is a pair of byte offsets or byte counts, one per pointer width.
// size_64 is always >= size_32.
type Size struct {
	Size32 uint32
	Size64 uint32
}

func (s Size) add(o Size) Size { return Size{s.Size32 + o.Size32, s.Size64 + o.Size64} }

// Of picks the member matching the host's pointer width.
func (s Size) Of(ptrSize64 bool) uint32 {
	if ptrSize64 {
		return s.Size64
	}
	return s.Size32
}

// Presence packs a field's presence discipline into one signed value:
//
//	0         -> no presence (proto3 scalar default, repeated, map)
//	positive  -> hasbit index
//	negative  -> bitwise NOT of the owning oneof's case-slot offset
type Presence int32

// NoPresence is the zero value, exported for readability at call sites.
const NoPresence Presence = 0

func HasbitPresence(index int32) Presence { return Presence(index) }

func OneofPresence(caseOffset int32) Presence { return Presence(^caseOffset) }

func (p Presence) HasbitIndex() (int32, bool) {
	if p > 0 {
		return int32(p), true
	}
	return 0, false
}

func (p Presence) OneofCaseOffset() (int32, bool) {
	if p < 0 {
		return int32(^p), true
	}
	return 0, false
}

// Repr is the in-memory representation tag of a field's data slot. It drives
// the zero-check in shouldEncode; the type letter in a fast-table function
// symbol comes from the field's descriptor kind, not from Repr.
type Repr uint8

const (
	Repr1Byte Repr = iota
	Repr4Byte
	Repr8Byte
	ReprStrView
	ReprPointer
)

// Kind is the coarse dispatch mode of a field, independent of wire type.
type Kind uint8

const (
	KindScalar Kind = iota
	KindArray
	KindMap
)

// Mode packs Kind plus two flag bits, mirroring the runtime mode byte.
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

func (m Mode) Kind() Kind       { return Kind(m & modeKindMask) }
func (m Mode) Packed() bool     { return m&ModeFlagPacked != 0 }
func (m Mode) Extension() bool  { return m&ModeFlagExtension != 0 }

// ExtMode classifies how a message's extension range (if any) encodes.
type ExtMode uint8

const (
	ExtNone ExtMode = iota
	ExtExtendable
	ExtMsgSet
)

// Field is a laid-out, field-number-ordered member of a Message.
type Field struct {
	Desc   *protogen.Field
	Number int32

	Offset   Size
	Presence Presence
	Mode     Mode
	Repr     Repr

	// Oneof is non-nil when this field is a member of a real (non-synthetic)
	// oneof; all fields of the same Oneof share Offset (the oneof's data
	// slot).
	Oneof *Oneof

	// Submsg is the referenced message's layout for message/group-kind
	// fields (nil otherwise); SubmsgIdx is its deduped, dense index within
	// the owning Message's Submsgs table (component B).
	Submsg     *Message
	SubmsgIdx  int
}

// IsMessage reports whether the field's payload is itself a message.
func (f *Field) IsMessage() bool {
	return f.Submsg != nil
}

// Oneof is a laid-out oneof: one 4-byte case slot shared by all members,
// plus the data slot each member's Field.Offset points at.
type Oneof struct {
	Desc       *protogen.Oneof
	CaseOffset Size
	DataOffset Size
	Fields     []*Field
}

// Message is the fully computed layout of one message type: field and
// oneof offsets, hasbit accounting, the deduped submessage table
// (component B) and, once built, the fast-dispatch table (component C).
type Message struct {
	Desc *protogen.Message

	Fields      []*Field // field-number order
	Oneofs      []*Oneof
	HasbitCount int32 // highest allocated hasbit index; 0 if none
	Size        Size
	ExtMode     ExtMode
	DenseBelow  int

	// UnknownOffset is the pointer-sized slot every message reserves for
	// its captured unknown-byte range (component E/F's unknown-field
	// passthrough).
	UnknownOffset Size

	// ExtensionsOffset is the pointer-sized slot reserved for a message's
	// extension set; only meaningful when ExtMode != ExtNone.
	ExtensionsOffset Size

	// Submsgs is the dense, deduplicated, name-sorted table of distinct
	// submessage layouts referenced by Fields (component B).
	Submsgs []*Message

	// FastTable is nil unless the fasttable parameter was requested and at
	// least one field qualified (component C).
	FastTable   []FastTableEntry
	FastMask    int32 // (len(FastTable)-1)<<3, or -1 if the table has fewer than two slots
}

// FastTableEntry is one hash-slot of the fast-dispatch table: a function
// symbol chosen by cardinality/type/tag-width/size-bucket, plus the packed
// 64-bit dispatch word described at tryBuildEntry.
type FastTableEntry struct {
	Func string
	Data uint64
}
