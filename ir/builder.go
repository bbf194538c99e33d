package ir

import (
	"sort"

	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Builder computes and memoizes Message layouts across an entire plugin
// run. Layouts are pure functions of the descriptor, so a Message is
// computed once no matter how many fields reference it.
type Builder struct {
	byName map[protoreflect.FullName]*Message
}

func NewBuilder() *Builder {
	return &Builder{byName: make(map[protoreflect.FullName]*Message)}
}

// Layout returns the (memoized) layout for msg, computing it on first
// request. Safe against recursive message types: the Message record is
// registered before its fields are resolved, so a field referencing msg
// itself observes a stable (if not yet fully populated) pointer.
func (b *Builder) Layout(msg *protogen.Message) *Message {
	name := msg.Desc.FullName()
	if l, ok := b.byName[name]; ok {
		return l
	}
	l := &Message{Desc: msg}
	b.byName[name] = l
	b.compute(l)
	return l
}

// alignUp rounds off up to the next multiple of align (align must be a
// power of two).
func alignUp(off, align uint32) uint32 {
	if align <= 1 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

func ceilDiv(n, d int32) int32 { return (n + d - 1) / d }

// sizeAlign returns a field's data-slot size and alignment for both
// pointer widths, per the size/alignment classes in the layout contract:
// bool=1, enum/int32/uint32/float=4, int64/uint64/double=8,
// stringview={8,16}, pointer={4,8}. Repeated and map fields are always a
// single pointer to an out-of-line array/map.
func sizeAlign(f *protogen.Field) (sz Size, align32, align64 uint32) {
	if f.Desc.IsList() || f.Desc.IsMap() {
		return Size{4, 8}, 4, 8
	}
	switch f.Desc.Kind() {
	case protoreflect.BoolKind:
		return Size{1, 1}, 1, 1
	case protoreflect.EnumKind, protoreflect.Int32Kind, protoreflect.Uint32Kind,
		protoreflect.Sint32Kind, protoreflect.Sfixed32Kind, protoreflect.Fixed32Kind,
		protoreflect.FloatKind:
		return Size{4, 4}, 4, 4
	case protoreflect.Int64Kind, protoreflect.Uint64Kind, protoreflect.Sint64Kind,
		protoreflect.Sfixed64Kind, protoreflect.Fixed64Kind, protoreflect.DoubleKind:
		return Size{8, 8}, 8, 8
	case protoreflect.StringKind, protoreflect.BytesKind:
		return Size{8, 16}, 4, 8
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return Size{4, 8}, 4, 8
	default:
		return Size{4, 8}, 4, 8
	}
}

func reprOf(f *protogen.Field) Repr {
	if f.Desc.IsList() || f.Desc.IsMap() {
		return ReprPointer
	}
	switch f.Desc.Kind() {
	case protoreflect.BoolKind:
		return Repr1Byte
	case protoreflect.EnumKind, protoreflect.Int32Kind, protoreflect.Uint32Kind,
		protoreflect.Sint32Kind, protoreflect.Sfixed32Kind, protoreflect.Fixed32Kind,
		protoreflect.FloatKind:
		return Repr4Byte
	case protoreflect.Int64Kind, protoreflect.Uint64Kind, protoreflect.Sint64Kind,
		protoreflect.Sfixed64Kind, protoreflect.Fixed64Kind, protoreflect.DoubleKind:
		return Repr8Byte
	case protoreflect.StringKind, protoreflect.BytesKind:
		return ReprStrView
	default:
		return ReprPointer
	}
}

// needsHasbit implements the presence-discipline decision from the data
// model: hasbits go to proto2 scalar optional/required fields, proto3
// "optional" scalars, and proto2 message fields that have no other
// presence. Proto3 message fields rely on their pointer being non-nil
// instead (Presence == 0, Repr == ReprPointer): a cleared proto3
// submessage simply releases its pointer, no hasbit needed.
func needsHasbit(msg *protogen.Message, f *protogen.Field) bool {
	if (f.Oneof != nil && !f.Oneof.Desc.IsSynthetic()) || f.Desc.IsList() || f.Desc.IsMap() {
		return false
	}
	isMessage := f.Desc.Kind() == protoreflect.MessageKind || f.Desc.Kind() == protoreflect.GroupKind
	if isMessage {
		return msg.Desc.Syntax() == protoreflect.Proto2
	}
	return f.Desc.HasPresence()
}

func (b *Builder) compute(l *Message) {
	msg := l.Desc
	if msg.Desc.IsMapEntry() {
		b.computeMapEntry(l)
		return
	}

	if msg.Desc.ExtensionRanges().Len() > 0 {
		if isMessageSet(msg) {
			l.ExtMode = ExtMsgSet
		} else {
			l.ExtMode = ExtExtendable
		}
	}

	sorted := append([]*protogen.Field(nil), msg.Fields...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Desc.Number() < sorted[j].Desc.Number()
	})

	// Step 1: hasbit allocation, dense from 1, index 0 reserved.
	hasbitIdx := int32(0)
	hasbitOf := make(map[*protogen.Field]int32)
	for _, f := range sorted {
		if needsHasbit(msg, f) {
			hasbitIdx++
			hasbitOf[f] = hasbitIdx
		}
	}
	l.HasbitCount = hasbitIdx

	hasbitBytes := ceilDiv(hasbitIdx+1, 8)
	cursor32 := alignUp(uint32(hasbitBytes), 4)
	cursor64 := cursor32

	// Step 2: one 4-byte case slot per real (non-synthetic) oneof.
	oneofOf := make(map[*protogen.Oneof]*Oneof)
	for _, oo := range msg.Oneofs {
		if oo.Desc.IsSynthetic() {
			continue
		}
		cursor32 = alignUp(cursor32, 4)
		cursor64 = alignUp(cursor64, 4)
		ol := &Oneof{Desc: oo, CaseOffset: Size{cursor32, cursor64}}
		oneofOf[oo] = ol
		l.Oneofs = append(l.Oneofs, ol)
		cursor32 += 4
		cursor64 += 4
	}

	// Step 3: one shared data slot per oneof, sized to its widest member.
	for _, ol := range l.Oneofs {
		var maxSz Size
		var maxA32, maxA64 uint32 = 1, 1
		for _, f := range ol.Desc.Fields {
			sz, a32, a64 := sizeAlign(f)
			if sz.Size32 > maxSz.Size32 {
				maxSz.Size32 = sz.Size32
			}
			if sz.Size64 > maxSz.Size64 {
				maxSz.Size64 = sz.Size64
			}
			if a32 > maxA32 {
				maxA32 = a32
			}
			if a64 > maxA64 {
				maxA64 = a64
			}
		}
		cursor32 = alignUp(cursor32, maxA32)
		cursor64 = alignUp(cursor64, maxA64)
		ol.DataOffset = Size{cursor32, cursor64}
		cursor32 += maxSz.Size32
		cursor64 += maxSz.Size64
	}

	// Step 4: pack non-oneof fields, largest-alignment first to minimize
	// padding; field-number order only breaks ties. The field *array*
	// emitted by the source emitter stays in field-number order regardless
	// (assigned in the final loop below from these precomputed offsets).
	var plain []*protogen.Field
	for _, f := range sorted {
		if f.Oneof == nil || f.Oneof.Desc.IsSynthetic() {
			plain = append(plain, f)
		}
	}
	packOrder := append([]*protogen.Field(nil), plain...)
	sort.SliceStable(packOrder, func(i, j int) bool {
		_, ai, _ := sizeAlign(packOrder[i])
		_, aj, _ := sizeAlign(packOrder[j])
		if ai != aj {
			return ai > aj
		}
		return packOrder[i].Desc.Number() < packOrder[j].Desc.Number()
	})
	plainOffset := make(map[*protogen.Field]Size)
	for _, f := range packOrder {
		sz, a32, a64 := sizeAlign(f)
		cursor32 = alignUp(cursor32, a32)
		cursor64 = alignUp(cursor64, a64)
		plainOffset[f] = Size{cursor32, cursor64}
		cursor32 += sz.Size32
		cursor64 += sz.Size64
	}

	// Step 4b: every message gets a pointer-sized slot for its unknown-byte
	// range, independent of its declared fields.
	cursor32 = alignUp(cursor32, 4)
	cursor64 = alignUp(cursor64, 8)
	l.UnknownOffset = Size{cursor32, cursor64}
	cursor32 += 4
	cursor64 += 8

	// Step 4c: an extendable message (plain or MessageSet) gets one more
	// pointer-sized slot holding its extension set.
	if l.ExtMode != ExtNone {
		cursor32 = alignUp(cursor32, 4)
		cursor64 = alignUp(cursor64, 8)
		l.ExtensionsOffset = Size{cursor32, cursor64}
		cursor32 += 4
		cursor64 += 8
	}

	l.Size = Size{alignUp(cursor32, 4), alignUp(cursor64, 8)}

	// Step 5: assemble the field-number-ordered Field table (component E
	// consumes this order directly) and the submessage table (component B).
	// Submessage layouts are collected in a first pass and indexed only
	// after every field has registered, so the dense index reflects the
	// full, name-sorted set rather than first-reference order.
	dedup := newSubmsgDedup()
	dense := 0
	for i, f := range sorted {
		lf := &Field{Desc: f, Number: int32(f.Desc.Number())}
		if oo, ok := oneofOf[f.Oneof]; ok {
			lf.Oneof = oo
			lf.Offset = oo.DataOffset
			lf.Presence = OneofPresence(int32(oo.CaseOffset.Size64))
			oo.Fields = append(oo.Fields, lf)
		} else {
			lf.Offset = plainOffset[f]
			if idx, ok := hasbitOf[f]; ok {
				lf.Presence = HasbitPresence(idx)
			}
		}

		kind := KindScalar
		if f.Desc.IsList() {
			kind = KindArray
		} else if f.Desc.IsMap() {
			kind = KindMap
		}
		lf.Mode = NewMode(kind, f.Desc.IsPacked(), false)
		lf.Repr = reprOf(f)

		if f.Desc.Kind() == protoreflect.MessageKind || f.Desc.Kind() == protoreflect.GroupKind {
			lf.Submsg = b.Layout(f.Message)
			dedup.register(lf.Submsg)
		}

		l.Fields = append(l.Fields, lf)

		if i < 255 && int(f.Desc.Number()) == i+1 && (i == 0 || int(sorted[i-1].Desc.Number()) == i) {
			dense = i + 1
		}
	}
	dedup.finish()
	for _, lf := range l.Fields {
		if lf.Submsg != nil {
			lf.SubmsgIdx = dedup.indexOf(lf.Submsg)
		}
	}
	l.DenseBelow = dense
	l.Submsgs = dedup.ordered
}

// computeMapEntry lays out the two fixed fields (key=1, value=2) of a
// synthetic map-entry message; the key is logically immutable once the
// entry is constructed.
func (b *Builder) computeMapEntry(l *Message) {
	msg := l.Desc
	var key, val *protogen.Field
	for _, f := range msg.Fields {
		switch f.Desc.Number() {
		case 1:
			key = f
		case 2:
			val = f
		}
	}
	cursor32, cursor64 := uint32(0), uint32(0)
	dedup := newSubmsgDedup()
	add := func(f *protogen.Field) *Field {
		sz, a32, a64 := sizeAlign(f)
		cursor32 = alignUp(cursor32, a32)
		cursor64 = alignUp(cursor64, a64)
		lf := &Field{
			Desc:   f,
			Number: int32(f.Desc.Number()),
			Offset: Size{cursor32, cursor64},
			Mode:   NewMode(KindScalar, false, false),
			Repr:   reprOf(f),
		}
		cursor32 += sz.Size32
		cursor64 += sz.Size64
		if f.Desc.Kind() == protoreflect.MessageKind {
			lf.Submsg = b.Layout(f.Message)
			dedup.register(lf.Submsg)
		}
		return lf
	}
	if key != nil {
		l.Fields = append(l.Fields, add(key))
	}
	if val != nil {
		l.Fields = append(l.Fields, add(val))
	}
	dedup.finish()
	for _, lf := range l.Fields {
		if lf.Submsg != nil {
			lf.SubmsgIdx = dedup.indexOf(lf.Submsg)
		}
	}
	l.Size = Size{alignUp(cursor32, 4), alignUp(cursor64, 8)}
	l.DenseBelow = len(l.Fields)
	l.Submsgs = dedup.ordered
}

func isMessageSet(msg *protogen.Message) bool {
	type msgSetOpt interface{ GetMessageSetWireFormat() bool }
	if o, ok := msg.Desc.Options().(msgSetOpt); ok {
		return o.GetMessageSetWireFormat()
	}
	return false
}
