package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func fieldProto(name string, n int32, lbl descriptorpb.FieldDescriptorProto_Label, ty descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     strPtr(name),
		Number:   num(n),
		Label:    label(lbl),
		Type:     typ(ty),
		JsonName: strPtr(name),
	}
}

const (
	lblOpt  = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	lblReq  = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED
	lblRep  = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	tInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64
	tBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tMsg    = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func TestLayoutProto2Hasbits(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("t1.proto"),
		Package: strPtr("t1"),
		Syntax:  strPtr("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strPtr("M1"),
				Field: []*descriptorpb.FieldDescriptorProto{
					fieldProto("a", 1, lblOpt, tInt32),
					fieldProto("b", 2, lblOpt, tInt64),
				},
			},
		},
	}
	p := buildPlugin(t, fd)
	msg := findMessage(p, "t1.M1")
	require.NotNil(t, msg)

	b := NewBuilder()
	l := b.Layout(msg)

	assert.EqualValues(t, 2, l.HasbitCount)
	require.Len(t, l.Fields, 2)
	a, bf := l.Fields[0], l.Fields[1]
	idxA, ok := a.Presence.HasbitIndex()
	require.True(t, ok)
	assert.EqualValues(t, 1, idxA)
	idxB, ok := bf.Presence.HasbitIndex()
	require.True(t, ok)
	assert.EqualValues(t, 2, idxB)

	// 20/24 for the hasbit byte + fields, plus one more pointer-sized slot
	// every message reserves for its unknown-byte range.
	assert.EqualValues(t, 32, l.Size.Size64)
	assert.EqualValues(t, 24, l.Size.Size32)
	assert.LessOrEqual(t, l.Size.Size32, l.Size.Size64)
	assertNoOverlap(t, l)
	assert.Equal(t, 2, l.DenseBelow)
}

func TestLayoutProto3NoPresenceScalar(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("t2.proto"),
		Package: strPtr("t2"),
		Syntax:  strPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strPtr("M2"),
				Field: []*descriptorpb.FieldDescriptorProto{
					fieldProto("x", 1, lblOpt, tBool),
				},
			},
		},
	}
	p := buildPlugin(t, fd)
	msg := findMessage(p, "t2.M2")
	require.NotNil(t, msg)

	l := NewBuilder().Layout(msg)
	assert.EqualValues(t, 0, l.HasbitCount)
	require.Len(t, l.Fields, 1)
	assert.Equal(t, NoPresence, l.Fields[0].Presence)
}

func TestLayoutOneofSharesSlot(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("t3.proto"),
		Package: strPtr("t3"),
		Syntax:  strPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strPtr("M3"),
				Field: []*descriptorpb.FieldDescriptorProto{
					func() *descriptorpb.FieldDescriptorProto {
						f := fieldProto("ia", 1, lblOpt, tInt32)
						f.OneofIndex = num(0)
						return f
					}(),
					func() *descriptorpb.FieldDescriptorProto {
						f := fieldProto("ib", 2, lblOpt, tInt64)
						f.OneofIndex = num(0)
						return f
					}(),
				},
				OneofDecl: []*descriptorpb.OneofDescriptorProto{
					{Name: strPtr("which")},
				},
			},
		},
	}
	p := buildPlugin(t, fd)
	msg := findMessage(p, "t3.M3")
	require.NotNil(t, msg)

	l := NewBuilder().Layout(msg)
	require.Len(t, l.Oneofs, 1)
	require.Len(t, l.Fields, 2)
	assert.Equal(t, l.Fields[0].Offset, l.Fields[1].Offset)
	for _, f := range l.Fields {
		off, ok := f.Presence.OneofCaseOffset()
		require.True(t, ok)
		assert.EqualValues(t, l.Oneofs[0].CaseOffset.Size64, off)
	}
}

func TestLayoutNestedSubmsgDedup(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("t4.proto"),
		Package: strPtr("t4"),
		Syntax:  strPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{Name: strPtr("Inner"), Field: []*descriptorpb.FieldDescriptorProto{
				fieldProto("v", 1, lblOpt, tInt32),
			}},
			{
				Name: strPtr("Outer"),
				Field: []*descriptorpb.FieldDescriptorProto{
					func() *descriptorpb.FieldDescriptorProto {
						f := fieldProto("a", 1, lblOpt, tMsg)
						f.TypeName = strPtr(".t4.Inner")
						return f
					}(),
					func() *descriptorpb.FieldDescriptorProto {
						f := fieldProto("b", 2, lblOpt, tMsg)
						f.TypeName = strPtr(".t4.Inner")
						return f
					}(),
				},
			},
		},
	}
	p := buildPlugin(t, fd)
	outer := findMessage(p, "t4.Outer")
	require.NotNil(t, outer)
	l := NewBuilder().Layout(outer)
	require.Len(t, l.Submsgs, 1)
	assert.Equal(t, 0, l.Fields[0].SubmsgIdx)
	assert.Equal(t, 0, l.Fields[1].SubmsgIdx)
	assert.Same(t, l.Fields[0].Submsg, l.Fields[1].Submsg)
}

func TestLayoutMapEntryFixed(t *testing.T) {
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strPtr("t5.proto"),
		Package: strPtr("t5"),
		Syntax:  strPtr("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strPtr("M5"),
				Field: []*descriptorpb.FieldDescriptorProto{
					func() *descriptorpb.FieldDescriptorProto {
						f := fieldProto("m", 1, lblRep, tMsg)
						f.TypeName = strPtr(".t5.M5.MEntry")
						return f
					}(),
				},
				NestedType: []*descriptorpb.DescriptorProto{
					{
						Name:    strPtr("MEntry"),
						Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
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
	m5 := findMessage(p, "t5.M5")
	require.NotNil(t, m5)
	entry := m5.Messages[0]
	require.NotNil(t, entry)
	l := NewBuilder().Layout(entry)
	require.Len(t, l.Fields, 2)
	assert.NotEqual(t, l.Fields[0].Offset, l.Fields[1].Offset)
}

// assertNoOverlap checks the layout invariant that no two non-oneof
// fields' [offset, offset+size) intervals overlap, for both pointer
// widths.
func assertNoOverlap(t *testing.T, l *Message) {
	t.Helper()
	type iv struct{ lo, hi uint32 }
	var ivs32, ivs64 []iv
	for _, f := range l.Fields {
		if f.Oneof != nil {
			continue
		}
		sz, _, _ := sizeAlign(f.Desc)
		ivs32 = append(ivs32, iv{f.Offset.Size32, f.Offset.Size32 + sz.Size32})
		ivs64 = append(ivs64, iv{f.Offset.Size64, f.Offset.Size64 + sz.Size64})
	}
	for _, ivs := range [][]iv{ivs32, ivs64} {
		for i := range ivs {
			for j := range ivs {
				if i == j {
					continue
				}
				assert.False(t, ivs[i].lo < ivs[j].hi && ivs[j].lo < ivs[i].hi,
					"fields overlap: %+v vs %+v", ivs[i], ivs[j])
			}
		}
	}
}
