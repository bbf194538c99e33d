package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"
)

func sameFileAlways(*Field) bool { return true }

func TestFastTableSingleFieldSlotAndMask(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("ft1.proto"),
		Package: strPtr("ft1"),
		Syntax:  strPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strPtr("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					fieldProto("a", 1, lblOpt, tInt32),
				},
			},
		},
	}
	p := buildPlugin(t, fd)
	msg := findMessage(p, "ft1.M")
	require.NotNil(t, msg)

	l := NewBuilder().Layout(msg)
	BuildFastTable(l, sameFileAlways)

	require.NotEmpty(t, l.FastTable)
	tag, ok := encodedTag(l.Fields[0])
	require.True(t, ok)
	slot := int((tag & 0xF8) >> 3)
	require.Less(t, slot, len(l.FastTable))
	assert.NotEqual(t, genericSentinel, l.FastTable[slot].Func)

	// table size must be a power of two, and the mask must match it.
	assert.True(t, isPowerOfTwo(len(l.FastTable)))
	if len(l.FastTable) > 1 {
		assert.EqualValues(t, (len(l.FastTable)-1)<<3, l.FastMask)
	} else {
		assert.EqualValues(t, -1, l.FastMask)
	}
}

func TestFastTableFirstWriterWins(t *testing.T) {
	// The dispatch slot is (tag&0xF8)>>3, i.e. (field_number & 0x1F) for a
	// varint-typed field; numbers 32 apart collide on the same slot.
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("ft2.proto"),
		Package: strPtr("ft2"),
		Syntax:  strPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strPtr("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					fieldProto("hot", 1, lblOpt, tInt32),
					fieldProto("cold", 33, lblOpt, tInt32),
				},
			},
		},
	}
	p := buildPlugin(t, fd)
	msg := findMessage(p, "ft2.M")
	require.NotNil(t, msg)
	l := NewBuilder().Layout(msg)

	tagHot, _ := encodedTag(l.Fields[0])
	tagCold, _ := encodedTag(l.Fields[1])
	require.Equal(t, (tagHot&0xF8)>>3, (tagCold&0xF8)>>3, "test fields must collide on the same slot")

	BuildFastTable(l, sameFileAlways)
	slot := int((tagHot & 0xF8) >> 3)
	require.Less(t, slot, len(l.FastTable))
	// hot (field 1, walked first in field-number/hotness order) keeps the slot.
	gotTag := uint32(l.FastTable[slot].Data & 0xFFFF)
	assert.Equal(t, tagHot, gotTag)
}

func TestFastTableMapFieldIneligible(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("ft3.proto"),
		Package: strPtr("ft3"),
		Syntax:  strPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strPtr("M"),
				Field: []*descriptorpb.FieldDescriptorProto{
					func() *descriptorpb.FieldDescriptorProto {
						f := fieldProto("m", 1, lblRep, tMsg)
						f.TypeName = strPtr(".ft3.M.MEntry")
						return f
					}(),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name:    strPtr("MEntry"),
						Options: msgEntryOpt(),
						Field: []*descriptorpb.FieldDescriptorProto{
							fieldProto("key", 1, lblOpt, tString),
							fieldProto("value", 2, lblOpt, tInt32),
						},
					},
				},
			},
		},
	}
	p := buildPlugin(t, fd)
	msg := findMessage(p, "ft3.M")
	require.NotNil(t, msg)
	l := NewBuilder().Layout(msg)
	BuildFastTable(l, sameFileAlways)

	// The only field is a map field; it never qualifies for a fast-table
	// entry, so no slot is ever allocated.
	assert.Empty(t, l.FastTable)
	assert.EqualValues(t, -1, l.FastMask)
}

func msgEntryOpt() *descriptorpb.MessageOptions {
	t := true
	return &descriptorpb.MessageOptions{MapEntry: &t}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
