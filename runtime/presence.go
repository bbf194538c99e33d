package runtime

import "unsafe"

// Message is a raw, generated-layout message instance: a pointer to a
// zeroed memory blob whose fields live at the byte offsets the layout
// computer assigned. Generated accessors do the unsafe.Add arithmetic;
// this package only implements the operations that are identical for
// every message type (presence tests, hasbit sets, oneof case tests).
type Message unsafe.Pointer

// NewMessage allocates a zeroed blob of the given size, matching the
// size_32/size_64 pair the layout computer produced for the host's
// pointer width.
func NewMessage(size uintptr) Message {
	return Message(unsafe.Pointer(&make([]byte, size)[0]))
}

func fieldPtr(msg Message, offset uint32) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(msg), offset)
}

// HasHasbit reports whether the hasbit at idx is set. idx 0 is reserved
// and never allocated to a field; callers only reach here with idx > 0.
func HasHasbit(msg Message, idx int32) bool {
	byteOff := uint32(idx / 8)
	mask := byte(1 << uint(idx%8))
	return *(*byte)(fieldPtr(msg, byteOff)) & mask != 0
}

// SetHasbit sets the hasbit at idx.
func SetHasbit(msg Message, idx int32) {
	byteOff := uint32(idx / 8)
	mask := byte(1 << uint(idx%8))
	p := (*byte)(fieldPtr(msg, byteOff))
	*p |= mask
}

// ClearHasbit clears the hasbit at idx.
func ClearHasbit(msg Message, idx int32) {
	byteOff := uint32(idx / 8)
	mask := byte(1 << uint(idx%8))
	p := (*byte)(fieldPtr(msg, byteOff))
	*p &^= mask
}

// OneofCase reads the 4-byte case slot at caseOffset: 0 means no member
// set, otherwise the field number of the set member.
func OneofCase(msg Message, caseOffset int32) uint32 {
	return *(*uint32)(fieldPtr(msg, uint32(caseOffset)))
}

// SetOneofCase records fieldNumber as the set member of the oneof whose
// case slot lives at caseOffset.
func SetOneofCase(msg Message, caseOffset int32, fieldNumber uint32) {
	*(*uint32)(fieldPtr(msg, uint32(caseOffset))) = fieldNumber
}

// HasOneofField reports whether this oneof's currently-set member is
// fieldNumber.
func HasOneofField(msg Message, caseOffset int32, fieldNumber uint32) bool {
	return OneofCase(msg, caseOffset) == fieldNumber
}

// Presence packs a field's presence discipline the same way the layout
// computer's ir.Presence does: 0 = always present, positive = hasbit
// index, negative = bitwise NOT of the oneof case-slot offset. Decoding
// it here (rather than importing the ir package, which the runtime must
// not depend on) keeps the runtime a self-contained leaf package.
type Presence int32

// NoPresence is the zero value, exported for readability at call sites.
const NoPresence Presence = 0

func HasbitPresence(index int32) Presence { return Presence(index) }

func OneofPresence(caseOffset int32) Presence { return Presence(^caseOffset) }

func (p Presence) hasbitIndex() (int32, bool) {
	if p > 0 {
		return int32(p), true
	}
	return 0, false
}

func (p Presence) oneofCaseOffset() (int32, bool) {
	if p < 0 {
		return int32(^p), true
	}
	return 0, false
}

// HasField reports whether a field is present, for any presence
// discipline. fieldNumber is only consulted for oneof-presence fields.
// A field with no presence discipline (Presence == 0) always reads as
// present, matching every proto3 scalar and every repeated/map field.
func HasField(msg Message, p Presence, fieldNumber uint32) bool {
	if idx, ok := p.hasbitIndex(); ok {
		return HasHasbit(msg, idx)
	}
	if caseOff, ok := p.oneofCaseOffset(); ok {
		return HasOneofField(msg, caseOff, fieldNumber)
	}
	return true
}
