package ir

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// genericSentinel fills every fast-table slot a hotter field hasn't
// claimed yet. Only the table *producer* exists in this module; no
// interpreter here dispatches on these symbols at runtime.
const genericSentinel = "upb_fastencode_generic"

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireDelim   = 2
	wireFixed32 = 5
)

func wireTypeOf(k protoreflect.Kind) (wt uint32, ok bool) {
	switch k {
	case protoreflect.BoolKind, protoreflect.EnumKind,
		protoreflect.Int32Kind, protoreflect.Int64Kind,
		protoreflect.Uint32Kind, protoreflect.Uint64Kind,
		protoreflect.Sint32Kind, protoreflect.Sint64Kind:
		return wireVarint, true
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return wireFixed32, true
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return wireFixed64, true
	case protoreflect.StringKind, protoreflect.BytesKind, protoreflect.MessageKind:
		return wireDelim, true
	default:
		return 0, false
	}
}

// encodedTag returns the wire tag a field's encoder will prepend: for a
// packed repeated field that is always the length-delimited tag of the
// packed blob, regardless of the element's own wire type.
func encodedTag(f *Field) (uint32, bool) {
	if f.Mode.Kind() == KindArray && f.Mode.Packed() {
		return uint32(f.Number)<<3 | wireDelim, true
	}
	wt, ok := wireTypeOf(f.Desc.Desc.Kind())
	if !ok {
		return 0, false
	}
	return uint32(f.Number)<<3 | wt, true
}

// typeLetter is the fast-table function-symbol type code for one of the
// 15 descriptor types the fast path supports. Maps and groups are not in
// the supported set: group is wire-incompatible with the table's
// single-tag-match dispatch, map fields are excluded explicitly by the
// contract.
func typeLetter(f *Field) (string, bool) {
	if f.Mode.Kind() == KindMap {
		return "", false
	}
	switch f.Desc.Desc.Kind() {
	case protoreflect.BoolKind:
		return "b1", true
	case protoreflect.Int32Kind, protoreflect.Uint32Kind, protoreflect.EnumKind:
		return "v4", true
	case protoreflect.Int64Kind, protoreflect.Uint64Kind:
		return "v8", true
	case protoreflect.Sint32Kind:
		return "z4", true
	case protoreflect.Sint64Kind:
		return "z8", true
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return "f4", true
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return "f8", true
	case protoreflect.StringKind:
		return "s", true
	case protoreflect.BytesKind:
		return "b", true
	case protoreflect.MessageKind:
		return "m", true
	default:
		return "", false
	}
}

func cardinalityLetter(f *Field) string {
	switch {
	case f.Mode.Kind() == KindArray && f.Mode.Packed():
		return "p"
	case f.Mode.Kind() == KindArray:
		return "r"
	case f.Oneof != nil:
		return "o"
	default:
		return "s"
	}
}

// sizeBucket ceils a same-unit submessage's size_64+8 to the function
// symbol's bucket set, or "max" when the submessage is cross-file (its
// size isn't guaranteed known to this compilation unit).
func sizeBucket(f *Field, sameFile bool) string {
	if !sameFile {
		return "max"
	}
	n := f.Submsg.Size.Size64 + 8
	for _, brk := range [...]uint32{64, 128, 192, 256} {
		if n <= brk {
			return fmt.Sprintf("%d", brk)
		}
	}
	return "max"
}

// funcSymbol concatenates the §4.C scheme: fixed prefix, cardinality
// letter, type letter, tag-byte count, and (for submessages) a size
// bucket. The fixed prefix is "upb_" alone, so it never collides with
// the "p" (packed) cardinality letter that can follow it.
func funcSymbol(f *Field, tagBytes int, sameFile bool) string {
	card, typ := cardinalityLetter(f), mustType(f)
	if f.IsMessage() {
		return fmt.Sprintf("upb_%s%s_%dbt_max%sb", card, typ, tagBytes, sizeBucket(f, sameFile))
	}
	return fmt.Sprintf("upb_%s%s_%dbt", card, typ, tagBytes)
}

func mustType(f *Field) string {
	t, _ := typeLetter(f)
	return t
}

// tryBuildEntry applies the §4.C eligibility gate and, if the field
// qualifies, returns its packed dispatch word. The bit layout is:
//
//	bits 0-15  expected encoded tag
//	bits 16-23 submsg index
//	bits 24-31 presence (hasbit index, or field number when in a oneof)
//	bits 32-47 oneof case-slot offset
//	bits 48-63 field offset (size_64)
func tryBuildEntry(f *Field, sameFile bool) (FastTableEntry, bool) {
	if _, ok := typeLetter(f); !ok {
		return FastTableEntry{}, false
	}
	tag, ok := encodedTag(f)
	if !ok || tag > 0x3FFF {
		return FastTableEntry{}, false
	}
	tagBytes := 1
	if tag > 0x7F {
		tagBytes = 2
	}

	data := uint64(f.Offset.Size64)<<48 | uint64(tag)

	switch {
	case f.Mode.Kind() == KindArray:
		// No hasbit/oneof-related presence fields for repeated.
	case f.Oneof != nil:
		caseOff := f.Oneof.CaseOffset.Size64
		if caseOff > 0xFFFF || f.Number >= 256 {
			return FastTableEntry{}, false
		}
		data |= uint64(f.Number&0xFF) << 24
		data |= uint64(caseOff&0xFFFF) << 32
	default:
		if idx, has := f.Presence.HasbitIndex(); has {
			if idx > 31 {
				return FastTableEntry{}, false
			}
			data |= uint64(idx&0xFF) << 24
		}
	}

	if f.IsMessage() {
		if f.SubmsgIdx > 255 {
			return FastTableEntry{}, false
		}
		data |= uint64(f.SubmsgIdx&0xFF) << 16
	}

	return FastTableEntry{Func: funcSymbol(f, tagBytes, sameFile), Data: data}, true
}

// hotnessOrder is our chosen valid fallback per §4.C: field-number order.
func hotnessOrder(m *Message) []*Field {
	return m.Fields
}

// BuildFastTable runs component C: the hash-free, first-writer-wins
// perfect-slot dispatch table over a field's first tag byte. sameFile
// reports, for each field, whether its submessage type is defined in the
// file currently being emitted (needed for the size-bucket computation).
func BuildFastTable(m *Message, sameFile func(f *Field) bool) {
	var table []FastTableEntry
	for _, f := range hotnessOrder(m) {
		tag, ok := encodedTag(f)
		if !ok {
			continue
		}
		slot := int((tag & 0xF8) >> 3)

		entry, ok := tryBuildEntry(f, sameFile(f))
		if !ok {
			continue
		}

		for len(table) <= slot {
			size := 1
			if len(table) > 0 {
				size = len(table) * 2
			}
			grown := make([]FastTableEntry, size)
			for i := range grown {
				grown[i] = FastTableEntry{Func: genericSentinel}
			}
			copy(grown, table)
			table = grown
		}
		if table[slot].Func != genericSentinel {
			continue // a hotter field already claimed this slot
		}
		table[slot] = entry
	}

	m.FastTable = table
	if len(table) > 1 {
		m.FastMask = int32(len(table)-1) << 3
	} else {
		m.FastMask = -1
	}
}
