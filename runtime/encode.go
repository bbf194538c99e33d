package runtime

import (
	"fmt"
	"unsafe"
)

// ErrMaxDepthExceeded is raised (via panic, recovered by Encode) when a
// message nests deeper than the configured limit — protects against
// cyclic message graphs the way the reference encoder's depth counter
// does.
type ErrMaxDepthExceeded struct{ Limit int }

func (e *ErrMaxDepthExceeded) Error() string {
	return fmt.Sprintf("upb: exceeded maximum encoding depth of %d", e.Limit)
}

// Encode serializes msg per its layout table into wire bytes, backwards
// in a single pass: no length is ever pre-computed, a submessage's
// length is measured after it is encoded by comparing buffer cursors.
func Encode(msg Message, mt *MessageTable) (out []byte, err error) {
	return EncodeWithDepth(msg, mt, MaxDepth)
}

// EncodeWithDepth is Encode with an explicit recursion limit.
func EncodeWithDepth(msg Message, mt *MessageTable, maxDepth int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if de, ok := r.(*ErrMaxDepthExceeded); ok {
				de.Limit = maxDepth
				err = de
				return
			}
			panic(r)
		}
	}()
	buf := NewBuffer(128)
	EncodeMessage(msg, mt, buf, maxDepth)
	return buf.Bytes(), nil
}

// EncodeMessage appends msg's wire encoding to buf. Per the reference
// encoder's encode_message_impl, the unknown-byte range is written
// first (call order), then extensions in list order, then declared
// fields walked from the last to the first table entry — so that, once
// the backwards cursor is read forward, the wire bytes come out in
// ascending field number order, followed by extensions (in the reverse
// of their list order), followed by the unknown bytes verbatim last.
func EncodeMessage(msg Message, mt *MessageTable, buf *Buffer, depth int) {
	if depth <= 0 {
		panic(&ErrMaxDepthExceeded{Limit: MaxDepth})
	}
	// Offset 0 never houses a real UnknownOffset slot in generated code
	// (the reserved hasbit byte always occupies it first), so it doubles
	// as the "no unknown-byte slot configured" sentinel for hand-built
	// tables that skip this field of MessageTable.
	if off := mt.UnknownOffset.Of(); off != 0 {
		if unknown := GetUnknownBytes(msg, off); len(unknown) > 0 {
			buf.WriteRawBytes(unknown)
		}
	}
	if mt.ExtMode != ExtNone {
		encodeExtensions(msg, mt, buf, depth)
	}
	for i := len(mt.Fields) - 1; i >= 0; i-- {
		f := &mt.Fields[i]
		switch f.Mode.Kind() {
		case KindMap:
			if f.MapEncode != nil {
				f.MapEncode(msg, buf)
			}
		case KindArray:
			encodeArray(msg, f, buf, depth)
		default:
			if shouldEncodeScalar(msg, f) {
				encodeScalar(msg, f, buf, depth)
			}
		}
	}
}

// encodeExtensions encodes msg's extension set in list order, dispatching
// each value to the MessageSet-item sequence or to a regular-field
// encoding depending on the owning message's ExtMode.
func encodeExtensions(msg Message, mt *MessageTable, buf *Buffer, depth int) {
	x := GetExtensions(msg, mt.ExtensionsOffset.Of())
	if x == nil {
		return
	}
	for _, v := range x.Values {
		if mt.ExtMode == ExtMsgSet {
			encodeMsgSetItem(buf, v, depth)
		} else {
			encodeExtensionField(buf, v, depth)
		}
	}
}

// encodeMsgSetItem emits one MessageSet item: {start-group(1),
// type_id(2) as varint(number), message(3) as submessage, end-group(1)}.
// The call sequence below mirrors the reference encoder's
// encode_msgset_item call-for-call; under the backwards-buffer
// convention the resulting wire bytes come out in the order above.
func encodeMsgSetItem(buf *Buffer, v ExtensionValue, depth int) {
	buf.WriteTag(1, WireEndGroup)
	mark := buf.Mark()
	EncodeMessage(v.Msg, v.Def.Submsg, buf, depth-1)
	buf.WriteVarint(uint64(buf.LenSince(mark)))
	buf.WriteTag(3, WireDelimited)
	buf.WriteVarint(uint64(v.Def.Number))
	buf.WriteTag(2, WireVarint)
	buf.WriteTag(1, WireStartGroup)
}

// encodeExtensionField encodes v like a regular field, using its
// ExtensionDef's field number and codec in place of a FieldEntry's.
func encodeExtensionField(buf *Buffer, v ExtensionValue, depth int) {
	number := v.Def.Number
	switch v.Def.Codec {
	case CodecBool:
		w := uint64(0)
		if v.Scalar != 0 {
			w = 1
		}
		buf.WriteVarint(w)
		buf.WriteTag(number, WireVarint)
	case CodecInt32:
		buf.WriteVarint(uint64(int64(int32(v.Scalar))))
		buf.WriteTag(number, WireVarint)
	case CodecUint32:
		buf.WriteVarint(v.Scalar)
		buf.WriteTag(number, WireVarint)
	case CodecSint32:
		buf.WriteVarint(uint64(EncodeZigZag32(int32(v.Scalar))))
		buf.WriteTag(number, WireVarint)
	case CodecFixed32, CodecFloat:
		buf.WriteFixed32(uint32(v.Scalar))
		buf.WriteTag(number, WireFixed32)
	case CodecInt64, CodecUint64:
		buf.WriteVarint(v.Scalar)
		buf.WriteTag(number, WireVarint)
	case CodecSint64:
		buf.WriteVarint(EncodeZigZag64(int64(v.Scalar)))
		buf.WriteTag(number, WireVarint)
	case CodecFixed64, CodecDouble:
		buf.WriteFixed64(v.Scalar)
		buf.WriteTag(number, WireFixed64)
	case CodecString, CodecBytes:
		buf.WriteString(v.Str)
		buf.WriteVarint(uint64(len(v.Str)))
		buf.WriteTag(number, WireDelimited)
	case CodecMessage:
		if v.Msg == nil {
			return
		}
		mark := buf.Mark()
		EncodeMessage(v.Msg, v.Def.Submsg, buf, depth-1)
		buf.WriteVarint(uint64(buf.LenSince(mark)))
		buf.WriteTag(number, WireDelimited)
	case CodecGroup:
		if v.Msg == nil {
			return
		}
		buf.WriteTag(number, WireEndGroup)
		EncodeMessage(v.Msg, v.Def.Submsg, buf, depth-1)
		buf.WriteTag(number, WireStartGroup)
	}
}

func shouldEncodeScalar(msg Message, f *FieldEntry) bool {
	if idx, ok := f.Presence.hasbitIndex(); ok {
		return HasHasbit(msg, idx)
	}
	if caseOff, ok := f.Presence.oneofCaseOffset(); ok {
		return HasOneofField(msg, caseOff, uint32(f.Number))
	}
	off := f.Offset.Of()
	switch f.Repr {
	case Repr1Byte:
		return *(*byte)(fieldPtr(msg, off)) != 0
	case Repr4Byte:
		return *(*uint32)(fieldPtr(msg, off)) != 0
	case Repr8Byte:
		return *(*uint64)(fieldPtr(msg, off)) != 0
	case ReprStrView:
		return len(*(*string)(fieldPtr(msg, off))) != 0
	case ReprPointer:
		return *(*Message)(fieldPtr(msg, off)) != nil
	default:
		return false
	}
}

func wireTypeForCodec(codec ScalarCodec) uint8 {
	switch codec {
	case CodecFixed32, CodecFloat:
		return WireFixed32
	case CodecFixed64, CodecDouble:
		return WireFixed64
	default:
		return WireVarint
	}
}

func encodeScalar(msg Message, f *FieldEntry, buf *Buffer, depth int) {
	off := f.Offset.Of()
	switch f.Codec {
	case CodecBool:
		v := *(*byte)(fieldPtr(msg, off))
		writeVal := uint64(0)
		if v != 0 {
			writeVal = 1
		}
		buf.WriteVarint(writeVal)
		buf.WriteTag(f.Number, WireVarint)
	case CodecInt32:
		v := *(*uint32)(fieldPtr(msg, off))
		buf.WriteVarint(uint64(int64(int32(v))))
		buf.WriteTag(f.Number, WireVarint)
	case CodecUint32:
		v := *(*uint32)(fieldPtr(msg, off))
		buf.WriteVarint(uint64(v))
		buf.WriteTag(f.Number, WireVarint)
	case CodecSint32:
		v := *(*uint32)(fieldPtr(msg, off))
		buf.WriteVarint(uint64(EncodeZigZag32(int32(v))))
		buf.WriteTag(f.Number, WireVarint)
	case CodecFixed32, CodecFloat:
		v := *(*uint32)(fieldPtr(msg, off))
		buf.WriteFixed32(v)
		buf.WriteTag(f.Number, WireFixed32)
	case CodecInt64, CodecUint64:
		v := *(*uint64)(fieldPtr(msg, off))
		buf.WriteVarint(v)
		buf.WriteTag(f.Number, WireVarint)
	case CodecSint64:
		v := *(*uint64)(fieldPtr(msg, off))
		buf.WriteVarint(EncodeZigZag64(int64(v)))
		buf.WriteTag(f.Number, WireVarint)
	case CodecFixed64, CodecDouble:
		v := *(*uint64)(fieldPtr(msg, off))
		buf.WriteFixed64(v)
		buf.WriteTag(f.Number, WireFixed64)
	case CodecString, CodecBytes:
		v := *(*string)(fieldPtr(msg, off))
		buf.WriteString(v)
		buf.WriteVarint(uint64(len(v)))
		buf.WriteTag(f.Number, WireDelimited)
	case CodecMessage:
		sub := *(*Message)(fieldPtr(msg, off))
		if sub == nil {
			return
		}
		mark := buf.Mark()
		EncodeMessage(sub, f.Submsg, buf, depth-1)
		buf.WriteVarint(uint64(buf.LenSince(mark)))
		buf.WriteTag(f.Number, WireDelimited)
	case CodecGroup:
		sub := *(*Message)(fieldPtr(msg, off))
		if sub == nil {
			return
		}
		buf.WriteTag(f.Number, WireEndGroup)
		EncodeMessage(sub, f.Submsg, buf, depth-1)
		buf.WriteTag(f.Number, WireStartGroup)
	}
}

func encodeArray(msg Message, f *FieldEntry, buf *Buffer, depth int) {
	off := f.Offset.Of()
	slicePtr := *(*unsafe.Pointer)(fieldPtr(msg, off))
	if slicePtr == nil {
		return
	}
	switch f.Repr {
	case Repr1Byte:
		encodeArray1(buf, f, *(*[]byte)(slicePtr))
	case Repr4Byte:
		encodeArray4(buf, f, *(*[]uint32)(slicePtr))
	case Repr8Byte:
		encodeArray8(buf, f, *(*[]uint64)(slicePtr))
	case ReprStrView:
		elems := *(*[]string)(slicePtr)
		for i := len(elems) - 1; i >= 0; i-- {
			buf.WriteString(elems[i])
			buf.WriteVarint(uint64(len(elems[i])))
			buf.WriteTag(f.Number, WireDelimited)
		}
	case ReprPointer:
		elems := *(*[]Message)(slicePtr)
		for i := len(elems) - 1; i >= 0; i-- {
			if f.Codec == CodecGroup {
				buf.WriteTag(f.Number, WireEndGroup)
				EncodeMessage(elems[i], f.Submsg, buf, depth-1)
				buf.WriteTag(f.Number, WireStartGroup)
			} else {
				mark := buf.Mark()
				EncodeMessage(elems[i], f.Submsg, buf, depth-1)
				buf.WriteVarint(uint64(buf.LenSince(mark)))
				buf.WriteTag(f.Number, WireDelimited)
			}
		}
	}
}

func writeElem1(buf *Buffer, v byte) {
	w := uint64(0)
	if v != 0 {
		w = 1
	}
	buf.WriteVarint(w)
}

func encodeArray1(buf *Buffer, f *FieldEntry, elems []byte) {
	if f.Mode.Packed() {
		mark := buf.Mark()
		for i := len(elems) - 1; i >= 0; i-- {
			writeElem1(buf, elems[i])
		}
		buf.WriteVarint(uint64(buf.LenSince(mark)))
		buf.WriteTag(f.Number, WireDelimited)
		return
	}
	for i := len(elems) - 1; i >= 0; i-- {
		writeElem1(buf, elems[i])
		buf.WriteTag(f.Number, WireVarint)
	}
}

func writeElem4(buf *Buffer, codec ScalarCodec, v uint32) {
	switch codec {
	case CodecInt32:
		buf.WriteVarint(uint64(int64(int32(v))))
	case CodecUint32:
		buf.WriteVarint(uint64(v))
	case CodecSint32:
		buf.WriteVarint(uint64(EncodeZigZag32(int32(v))))
	case CodecFixed32, CodecFloat:
		buf.WriteFixed32(v)
	}
}

func encodeArray4(buf *Buffer, f *FieldEntry, elems []uint32) {
	if f.Mode.Packed() {
		mark := buf.Mark()
		for i := len(elems) - 1; i >= 0; i-- {
			writeElem4(buf, f.Codec, elems[i])
		}
		buf.WriteVarint(uint64(buf.LenSince(mark)))
		buf.WriteTag(f.Number, WireDelimited)
		return
	}
	wt := wireTypeForCodec(f.Codec)
	for i := len(elems) - 1; i >= 0; i-- {
		writeElem4(buf, f.Codec, elems[i])
		buf.WriteTag(f.Number, wt)
	}
}

func writeElem8(buf *Buffer, codec ScalarCodec, v uint64) {
	switch codec {
	case CodecInt64, CodecUint64:
		buf.WriteVarint(v)
	case CodecSint64:
		buf.WriteVarint(EncodeZigZag64(int64(v)))
	case CodecFixed64, CodecDouble:
		buf.WriteFixed64(v)
	}
}

func encodeArray8(buf *Buffer, f *FieldEntry, elems []uint64) {
	if f.Mode.Packed() {
		mark := buf.Mark()
		for i := len(elems) - 1; i >= 0; i-- {
			writeElem8(buf, f.Codec, elems[i])
		}
		buf.WriteVarint(uint64(buf.LenSince(mark)))
		buf.WriteTag(f.Number, WireDelimited)
		return
	}
	wt := wireTypeForCodec(f.Codec)
	for i := len(elems) - 1; i >= 0; i-- {
		writeElem8(buf, f.Codec, elems[i])
		buf.WriteTag(f.Number, wt)
	}
}
