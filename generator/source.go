package generator

import (
	"fmt"

	"github.com/gerben-stavenga/upb/ir"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// emitLayout is component E, the source emitter: for every message defined
// in the file it emits a package-level *runtime.MessageTable literal —
// field array in field-number order, size pair, extension mode and
// (if requested) the fast-dispatch table component C built. Submessage
// references are plain Go pointers to the referenced message's own
// layout variable; Go's package-level initialization order resolves the
// resulting forward/cyclic references without the separate dense index
// array component B's dedup table would otherwise require in a language
// without first-class forward var references.
func (g *Generator) emitLayout(out *protogen.GeneratedFile, file *protogen.File) {
	out.P("// Code generated by protoc-gen-upb-plain. DO NOT EDIT.")
	out.P("// source: ", file.Desc.Path())
	out.P()
	out.P("package ", file.GoPackageName)
	out.P()

	var walk func(msgs []*protogen.Message)
	walk = func(msgs []*protogen.Message) {
		for _, msg := range msgs {
			if !msg.Desc.IsMapEntry() {
				g.emitMessageLayout(out, msg)
			}
			walk(msg.Messages)
		}
	}
	walk(file.Messages)
}

func (g *Generator) emitMessageLayout(out *protogen.GeneratedFile, msg *protogen.Message) {
	l := g.builder.Layout(msg)
	if g.settings.FastTable {
		ir.BuildFastTable(l, func(f *ir.Field) bool {
			return f.Submsg == nil || f.Submsg.Desc.Desc.ParentFile().Path() == msg.Desc.ParentFile().Path()
		})
	}

	out.P("var ", layoutVarName(msg), " = &", rt(out, "MessageTable"), "{")
	out.P("Fields: []", rt(out, "FieldEntry"), "{")
	for _, field := range msg.Fields {
		lf := findField(l, int32(field.Desc.Number()))
		if lf == nil {
			continue
		}
		g.emitFieldEntry(out, msg, field, lf)
	}
	out.P("},")
	out.P("Size: ", sizeLiteral(out, l.Size), ",")
	out.P("ExtMode: ", extModeConst(out, l.ExtMode), ",")
	out.P("UnknownOffset: ", sizeLiteral(out, l.UnknownOffset), ",")
	if l.ExtMode != ir.ExtNone {
		out.P("ExtensionsOffset: ", sizeLiteral(out, l.ExtensionsOffset), ",")
	}
	if g.settings.FastTable && len(l.FastTable) > 0 {
		out.P("FastTable: []", rt(out, "FastEntry"), "{")
		for _, e := range l.FastTable {
			out.P(fmt.Sprintf("{Func: %q, Data: 0x%x},", e.Func, e.Data))
		}
		out.P("},")
		out.P("FastMask: ", l.FastMask, ",")
	}
	out.P("}")
	out.P()
}

func sizeLiteral(out *protogen.GeneratedFile, sz ir.Size) string {
	return fmt.Sprintf("%s{Size32: %d, Size64: %d}", rt(out, "Size"), sz.Size32, sz.Size64)
}

func extModeConst(out *protogen.GeneratedFile, m ir.ExtMode) string {
	switch m {
	case ir.ExtExtendable:
		return rt(out, "ExtExtendable")
	case ir.ExtMsgSet:
		return rt(out, "ExtMsgSet")
	default:
		return rt(out, "ExtNone")
	}
}

func reprConst(out *protogen.GeneratedFile, r ir.Repr) string {
	switch r {
	case ir.Repr1Byte:
		return rt(out, "Repr1Byte")
	case ir.Repr4Byte:
		return rt(out, "Repr4Byte")
	case ir.Repr8Byte:
		return rt(out, "Repr8Byte")
	case ir.ReprStrView:
		return rt(out, "ReprStrView")
	default:
		return rt(out, "ReprPointer")
	}
}

func codecConst(out *protogen.GeneratedFile, kind protoreflect.Kind) string {
	switch kind {
	case protoreflect.BoolKind:
		return rt(out, "CodecBool")
	case protoreflect.Int32Kind:
		return rt(out, "CodecInt32")
	case protoreflect.Uint32Kind:
		return rt(out, "CodecUint32")
	case protoreflect.Int64Kind:
		return rt(out, "CodecInt64")
	case protoreflect.Uint64Kind:
		return rt(out, "CodecUint64")
	case protoreflect.Sint32Kind:
		return rt(out, "CodecSint32")
	case protoreflect.Sint64Kind:
		return rt(out, "CodecSint64")
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind:
		return rt(out, "CodecFixed32")
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind:
		return rt(out, "CodecFixed64")
	case protoreflect.FloatKind:
		return rt(out, "CodecFloat")
	case protoreflect.DoubleKind:
		return rt(out, "CodecDouble")
	case protoreflect.StringKind:
		return rt(out, "CodecString")
	case protoreflect.BytesKind:
		return rt(out, "CodecBytes")
	case protoreflect.GroupKind:
		return rt(out, "CodecGroup")
	case protoreflect.EnumKind:
		return rt(out, "CodecInt32")
	default:
		return rt(out, "CodecMessage")
	}
}

func (g *Generator) emitFieldEntry(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	if field.Desc.IsMap() {
		g.emitMapFieldEntry(out, msg, field, lf)
		return
	}

	packed := lf.Mode.Packed()
	extension := lf.Mode.Extension()
	kind := rt(out, "KindScalar")
	if lf.Mode.Kind() == ir.KindArray {
		kind = rt(out, "KindArray")
	}

	out.P("{")
	out.P("Number: ", field.Desc.Number(), ",")
	out.P("Offset: ", sizeLiteral(out, lf.Offset), ",")
	out.P("Presence: ", rt(out, "Presence"), "(", int32(lf.Presence), "),")
	out.P("Mode: ", rt(out, "NewMode"), "(", kind, ", ", packed, ", ", extension, "),")
	out.P("Repr: ", reprConst(out, lf.Repr), ",")
	out.P("Codec: ", codecConst(out, field.Desc.Kind()), ",")
	if lf.Submsg != nil {
		out.P("Submsg: ", layoutVarName(field.Message), ",")
	}
	out.P("},")
}

// emitMapFieldEntry builds a map field's generated-closure encoder: maps
// pair arbitrary key/value types a layout-offset table can't describe
// generically, so the closure captures the field's concrete Go types and
// its byte offset directly.
func (g *Generator) emitMapFieldEntry(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	keyField := field.Message.Fields[0]
	valField := field.Message.Fields[1]
	keyType := scalarGoType(out, keyField)
	isMsgVal := valField.Desc.Kind() == protoreflect.MessageKind
	var valType string
	if isMsgVal {
		valType = "*" + valField.Message.GoIdent.GoName
	} else {
		valType = scalarGoType(out, valField)
	}
	addr := fmt.Sprintf("%s(%s(msg), %s)", unsafeIdent(out, "Add"), unsafeIdent(out, "Pointer"), sizeOfExpr(out, lf.Offset))

	out.P("{")
	out.P("Number: ", field.Desc.Number(), ",")
	out.P("Mode: ", rt(out, "NewMode"), "(", rt(out, "KindMap"), ", false, ", lf.Mode.Extension(), "),")
	out.P("MapEncode: func(msg ", rt(out, "Message"), ", buf *", rt(out, "Buffer"), ") {")
	out.P("p := *(*", unsafeIdent(out, "Pointer"), ")(", addr, ")")
	out.P("if p == nil { return }")
	out.P("rawMap := *(*map[", keyType, "]", valType, ")(p)")
	out.P("if rawMap == nil { return }")
	out.P(rt(out, "EncodeMapField"), "(buf, ", field.Desc.Number(), ", rawMap, func(buf *", rt(out, "Buffer"), ", k ", keyType, ", v ", valType, ") {")
	if isMsgVal {
		out.P("mark := buf.Mark()")
		out.P(rt(out, "EncodeMessage"), "(v.Message(), ", layoutVarName(valField.Message), ", buf, ", rt(out, "MaxDepth"), ")")
		out.P("buf.WriteVarint(uint64(buf.LenSince(mark)))")
		out.P("buf.WriteTag(2, ", wireTypeConstForKind(out, protoreflect.MessageKind), ")")
	} else {
		emitScalarWriteStatements(out, "v", valField.Desc.Kind(), 2)
	}
	emitScalarWriteStatements(out, "k", keyField.Desc.Kind(), 1)
	out.P("})")
	out.P("},")
	out.P("},")
}

func wireTypeConstForKind(out *protogen.GeneratedFile, kind protoreflect.Kind) string {
	switch kind {
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return rt(out, "WireFixed32")
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return rt(out, "WireFixed64")
	case protoreflect.StringKind, protoreflect.BytesKind, protoreflect.MessageKind:
		return rt(out, "WireDelimited")
	default:
		return rt(out, "WireVarint")
	}
}

// emitScalarWriteStatements emits the payload-then-tag write for one
// scalar value bound to Go identifier name, for use inside a map-entry
// encode closure (field numbers are always 1=key, 2=value).
func emitScalarWriteStatements(out *protogen.GeneratedFile, name string, kind protoreflect.Kind, fieldNumber int) {
	switch kind {
	case protoreflect.BoolKind:
		out.P("if ", name, " { buf.WriteVarint(1) } else { buf.WriteVarint(0) }")
	case protoreflect.Int32Kind:
		out.P("buf.WriteVarint(uint64(int64(int32(", name, "))))")
	case protoreflect.Uint32Kind:
		out.P("buf.WriteVarint(uint64(", name, "))")
	case protoreflect.Sint32Kind:
		out.P("buf.WriteVarint(uint64(", rt(out, "EncodeZigZag32"), "(", name, ")))")
	case protoreflect.Int64Kind, protoreflect.Uint64Kind:
		out.P("buf.WriteVarint(uint64(", name, "))")
	case protoreflect.Sint64Kind:
		out.P("buf.WriteVarint(", rt(out, "EncodeZigZag64"), "(", name, "))")
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind:
		out.P("buf.WriteFixed32(uint32(", name, "))")
	case protoreflect.FloatKind:
		out.P("buf.WriteFixed32(", rt(out, "Float32Bits"), "(", name, "))")
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind:
		out.P("buf.WriteFixed64(uint64(", name, "))")
	case protoreflect.DoubleKind:
		out.P("buf.WriteFixed64(", rt(out, "Float64Bits"), "(", name, "))")
	case protoreflect.StringKind:
		out.P("buf.WriteString(", name, ")")
		out.P("buf.WriteVarint(uint64(len(", name, ")))")
	case protoreflect.BytesKind:
		out.P("buf.WriteRawBytes(", name, ")")
		out.P("buf.WriteVarint(uint64(len(", name, ")))")
	default:
		out.P("buf.WriteVarint(uint64(int64(", name, ")))")
	}
	out.P("buf.WriteTag(", fieldNumber, ", ", wireTypeConstForKind(out, kind), ")")
}
