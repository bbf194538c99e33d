package runtime

import "unsafe"

// ExtensionDef is one message's per-extension record, the Go equivalent
// of what the reference generator stores in a upb_msglayout_ext: a field
// number plus its wire encoding, minus the offset/presence a regular
// field has (an extension lives in the owning instance's Extensions
// set, not a fixed blob slot).
type ExtensionDef struct {
	Number int32
	Codec  ScalarCodec
	Submsg *MessageTable // non-nil for message/group-kind extensions
}

// ExtensionValue is one set extension on a message instance. Exactly one
// of the payload fields is meaningful, chosen by Def.Submsg/Def.Codec:
// Msg for message-kind extensions, Str for string/bytes, Scalar (the raw
// bit pattern) for everything else.
type ExtensionValue struct {
	Def    *ExtensionDef
	Scalar uint64
	Str    string
	Msg    Message
}

// Extensions is a message instance's extension set: a list in the order
// extensions were first set on this instance, not sorted by number.
// EncodeMessage walks it in this order — matching the reference
// encoder, which also does not reorder a message's extension list.
type Extensions struct {
	Values []ExtensionValue
}

// Get returns the extension identified by number, if set.
func (x *Extensions) Get(number int32) (ExtensionValue, bool) {
	if x == nil {
		return ExtensionValue{}, false
	}
	for _, v := range x.Values {
		if v.Def.Number == number {
			return v, true
		}
	}
	return ExtensionValue{}, false
}

// Set records v, overwriting any existing value for the same extension
// number in place (preserving its original list position) or appending
// a new entry.
func (x *Extensions) Set(v ExtensionValue) {
	for i := range x.Values {
		if x.Values[i].Def.Number == v.Def.Number {
			x.Values[i] = v
			return
		}
	}
	x.Values = append(x.Values, v)
}

// GetExtensions returns msg's extension set, or nil if none has ever
// been set.
func GetExtensions(msg Message, offset uint32) *Extensions {
	p := *(*unsafe.Pointer)(fieldPtr(msg, offset))
	if p == nil {
		return nil
	}
	return (*Extensions)(p)
}

// MutableExtensions returns msg's extension set, allocating it on first
// use.
func MutableExtensions(msg Message, offset uint32) *Extensions {
	pp := (*unsafe.Pointer)(fieldPtr(msg, offset))
	if *pp == nil {
		*pp = unsafe.Pointer(&Extensions{})
	}
	return (*Extensions)(*pp)
}

// GetUnknownBytes returns msg's captured unknown-byte range, or nil.
func GetUnknownBytes(msg Message, offset uint32) []byte {
	p := *(*unsafe.Pointer)(fieldPtr(msg, offset))
	if p == nil {
		return nil
	}
	return *(*[]byte)(p)
}

// SetUnknownBytes records b as msg's unknown-byte range, written
// verbatim by EncodeMessage ahead of every declared field and
// extension.
func SetUnknownBytes(msg Message, offset uint32, b []byte) {
	*(*unsafe.Pointer)(fieldPtr(msg, offset)) = unsafe.Pointer(&b)
}
