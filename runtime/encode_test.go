package runtime

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBlob(size int) Message {
	return Message(unsafe.Pointer(&make([]byte, size)[0]))
}

func putU32(msg Message, off uint32, v uint32) {
	*(*uint32)(fieldPtr(msg, off)) = v
}

func putString(msg Message, off uint32, s string) {
	*(*string)(fieldPtr(msg, off)) = s
}

func putMessagePtr(msg Message, off uint32, sub Message) {
	*(*Message)(fieldPtr(msg, off)) = sub
}

func putSlicePtr32(msg Message, off uint32, elems []uint32) {
	*(*unsafe.Pointer)(fieldPtr(msg, off)) = unsafe.Pointer(&elems)
}

func sz(n uint32) Size { return Size{Size32: n, Size64: n} }

func TestEncodeEmptyMessage(t *testing.T) {
	msg := newBlob(8)
	mt := &MessageTable{}
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncodeSingleVarintField(t *testing.T) {
	msg := newBlob(8)
	putU32(msg, 0, 150)
	mt := &MessageTable{
		Fields: []FieldEntry{
			{Number: 1, Offset: sz(0), Presence: NoPresence, Repr: Repr4Byte, Codec: CodecInt32},
		},
	}
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x96, 0x01}, out)
}

func TestEncodeStringField(t *testing.T) {
	msg := newBlob(16)
	putString(msg, 0, "testing")
	mt := &MessageTable{
		Fields: []FieldEntry{
			{Number: 2, Offset: sz(0), Presence: NoPresence, Repr: ReprStrView, Codec: CodecString},
		},
	}
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x07, 't', 'e', 's', 't', 'i', 'n', 'g'}, out)
}

func TestEncodePackedRepeatedInt32(t *testing.T) {
	msg := newBlob(16)
	putSlicePtr32(msg, 0, []uint32{3, 270, 86942})
	mt := &MessageTable{
		Fields: []FieldEntry{
			{
				Number: 4, Offset: sz(0), Presence: NoPresence,
				Mode: NewMode(KindArray, true, false), Repr: Repr4Byte, Codec: CodecInt32,
			},
		},
	}
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x22, 0x06, 0x03, 0x8E, 0x02, 0x9E, 0xA7, 0x05}, out)
}

func TestEncodeNestedSubmessage(t *testing.T) {
	inner := newBlob(8)
	putU32(inner, 0, 150)
	innerTable := &MessageTable{
		Fields: []FieldEntry{
			{Number: 1, Offset: sz(0), Presence: NoPresence, Repr: Repr4Byte, Codec: CodecInt32},
		},
	}

	outer := newBlob(16)
	putMessagePtr(outer, 0, inner)
	outerTable := &MessageTable{
		Fields: []FieldEntry{
			{Number: 3, Offset: sz(0), Presence: NoPresence, Repr: ReprPointer, Codec: CodecMessage, Submsg: innerTable},
		},
	}
	out, err := Encode(outer, outerTable)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1A, 0x03, 0x08, 0x96, 0x01}, out)
}

func TestEncodeFieldOrderIsAscendingByNumber(t *testing.T) {
	msg := newBlob(64)
	putU32(msg, 0, 150)
	putString(msg, 8, "testing")

	inner := newBlob(8)
	putU32(inner, 0, 150)
	innerTable := &MessageTable{
		Fields: []FieldEntry{
			{Number: 1, Offset: sz(0), Presence: NoPresence, Repr: Repr4Byte, Codec: CodecInt32},
		},
	}
	putMessagePtr(msg, 24, inner)
	putSlicePtr32(msg, 32, []uint32{3, 270, 86942})

	mt := &MessageTable{
		Fields: []FieldEntry{
			{Number: 1, Offset: sz(0), Presence: NoPresence, Repr: Repr4Byte, Codec: CodecInt32},
			{Number: 2, Offset: sz(8), Presence: NoPresence, Repr: ReprStrView, Codec: CodecString},
			{Number: 3, Offset: sz(24), Presence: NoPresence, Repr: ReprPointer, Codec: CodecMessage, Submsg: innerTable},
			{
				Number: 4, Offset: sz(32), Presence: NoPresence,
				Mode: NewMode(KindArray, true, false), Repr: Repr4Byte, Codec: CodecInt32,
			},
		},
	}
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	want := []byte{
		0x08, 0x96, 0x01,
		0x12, 0x07, 't', 'e', 's', 't', 'i', 'n', 'g',
		0x1A, 0x03, 0x08, 0x96, 0x01,
		0x22, 0x06, 0x03, 0x8E, 0x02, 0x9E, 0xA7, 0x05,
	}
	assert.Equal(t, want, out)
}

func TestEncodeProto2HasbitUnsetSkipsField(t *testing.T) {
	msg := newBlob(8)
	putU32(msg, 4, 99) // value present in memory, but hasbit not set
	mt := &MessageTable{
		Fields: []FieldEntry{
			{Number: 5, Offset: sz(4), Presence: HasbitPresence(1), Repr: Repr4Byte, Codec: CodecInt32},
		},
	}
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncodeProto2HasbitSetEncodesField(t *testing.T) {
	msg := newBlob(8)
	SetHasbit(msg, 1)
	putU32(msg, 4, 99)
	mt := &MessageTable{
		Fields: []FieldEntry{
			{Number: 5, Offset: sz(4), Presence: HasbitPresence(1), Repr: Repr4Byte, Codec: CodecUint32},
		},
	}
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0x63}, out) // tag=(5<<3)|0=0x28, value=99=0x63
}

func TestEncodeMapFieldDeterministicOrder(t *testing.T) {
	msg := newBlob(16)
	m := map[string]int32{"b": 2, "a": 1, "c": 3}
	mt := &MessageTable{
		Fields: []FieldEntry{
			{
				Number: 6, Mode: NewMode(KindMap, false, false),
				MapEncode: func(msg Message, buf *Buffer) {
					EncodeMapField(buf, 6, m, func(buf *Buffer, k string, v int32) {
						buf.WriteVarint(uint64(int64(v)))
						buf.WriteTag(2, WireVarint)
						buf.WriteString(k)
						buf.WriteVarint(uint64(len(k)))
						buf.WriteTag(1, WireDelimited)
					})
				},
			},
		},
	}
	_ = msg
	out, err := Encode(msg, mt)
	require.NoError(t, err)
	// Entries must appear key-sorted ascending (a, b, c) regardless of
	// Go's randomized map iteration order.
	aPos := indexOfByte(out, 'a')
	bPos := indexOfByte(out, 'b')
	cPos := indexOfByte(out, 'c')
	require.True(t, aPos >= 0 && bPos >= 0 && cPos >= 0)
	assert.Less(t, aPos, bPos)
	assert.Less(t, bPos, cPos)
}

func indexOfByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
