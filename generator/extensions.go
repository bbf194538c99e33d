package generator

import (
	"github.com/gerben-stavenga/upb/internal/help"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// emitExtensions is component E's per-extension record emission: for
// every extension declared in file (top-level or nested in a message),
// targeting a message this plugin run generated, emit its ExtensionDef
// literal plus Has/Get/Set accessors on the extended message type.
//
// help.GetMessageByFullName only resolves top-level messages (it walks
// file.Messages, not their nested Messages); an extension targeting a
// message nested inside another message is skipped here rather than
// worked around — its values still round-trip correctly through
// encodeExtensions if ever set some other way, only the generated
// accessor is missing.
func (g *Generator) emitExtensions(out *protogen.GeneratedFile, file *protogen.File) {
	var all []*protogen.Extension
	all = append(all, file.Extensions...)
	var walk func(msgs []*protogen.Message)
	walk = func(msgs []*protogen.Message) {
		for _, msg := range msgs {
			all = append(all, msg.Extensions...)
			walk(msg.Messages)
		}
	}
	walk(file.Messages)

	for _, ext := range all {
		if ext.Desc.IsList() {
			continue // repeated extensions are out of scope
		}
		if ext.Desc.Kind() == protoreflect.GroupKind {
			continue // legacy group-kind extensions are out of scope
		}
		extended := help.GetMessageByFullName(g.Plugin, string(ext.Desc.ContainingMessage().FullName()))
		if extended == nil {
			continue
		}
		g.emitExtensionDef(out, extended, ext)
	}
}

func (g *Generator) emitExtensionDef(out *protogen.GeneratedFile, extended *protogen.Message, ext *protogen.Extension) {
	l := g.builder.Layout(extended)
	defName := help.StringOrDefault(ext.GoIdent.GoName, string(ext.Desc.Name())) + "_extdef"
	isMsg := ext.Desc.Kind() == protoreflect.MessageKind
	extOffset := sizeOfExpr(out, l.ExtensionsOffset)

	out.P("var ", defName, " = &", rt(out, "ExtensionDef"), "{")
	out.P("Number: ", ext.Desc.Number(), ",")
	if isMsg {
		out.P("Submsg: ", layoutVarName(ext.Message), ",")
		out.P("Codec: ", rt(out, "CodecMessage"), ",")
	} else {
		out.P("Codec: ", codecConst(out, ext.Desc.Kind()), ",")
	}
	out.P("}")
	out.P()

	name := extended.GoIdent.GoName
	goName := ext.GoName

	out.P("func (m *", name, ") Has", goName, "() bool {")
	out.P("_, ok := ", rt(out, "GetExtensions"), "(m.msg, ", extOffset, ").Get(", ext.Desc.Number(), ")")
	out.P("return ok")
	out.P("}")
	out.P()

	if isMsg {
		subType := ext.Message.GoIdent.GoName
		out.P("func (m *", name, ") Get", goName, "() *", subType, " {")
		out.P("v, ok := ", rt(out, "GetExtensions"), "(m.msg, ", extOffset, ").Get(", ext.Desc.Number(), ")")
		out.P("if !ok { return nil }")
		out.P("return ", subType, "FromMessage(v.Msg)")
		out.P("}")
		out.P()
		out.P("func (m *", name, ") Set", goName, "(v *", subType, ") {")
		out.P("x := ", rt(out, "MutableExtensions"), "(m.msg, ", extOffset, ")")
		out.P("x.Set(", rt(out, "ExtensionValue"), "{Def: ", defName, ", Msg: v.Message()})")
		out.P("}")
		out.P()
		return
	}

	goType := scalarGoType(out, ext)
	out.P("func (m *", name, ") Get", goName, "() ", goType, " {")
	out.P("v, ok := ", rt(out, "GetExtensions"), "(m.msg, ", extOffset, ").Get(", ext.Desc.Number(), ")")
	out.P("if !ok { return ", zeroValue(goType), " }")
	switch ext.Desc.Kind() {
	case protoreflect.StringKind:
		out.P("return v.Str")
	case protoreflect.BytesKind:
		out.P("return []byte(v.Str)")
	case protoreflect.BoolKind:
		out.P("return v.Scalar != 0")
	case protoreflect.FloatKind:
		out.P("return ", rt(out, "Float32FromBits"), "(uint32(v.Scalar))")
	case protoreflect.DoubleKind:
		out.P("return ", rt(out, "Float64FromBits"), "(v.Scalar)")
	default:
		out.P("return ", goType, "(v.Scalar)")
	}
	out.P("}")
	out.P()

	out.P("func (m *", name, ") Set", goName, "(v ", goType, ") {")
	out.P("x := ", rt(out, "MutableExtensions"), "(m.msg, ", extOffset, ")")
	switch ext.Desc.Kind() {
	case protoreflect.StringKind:
		out.P("x.Set(", rt(out, "ExtensionValue"), "{Def: ", defName, ", Str: v})")
	case protoreflect.BytesKind:
		out.P("x.Set(", rt(out, "ExtensionValue"), "{Def: ", defName, ", Str: string(v)})")
	case protoreflect.BoolKind:
		out.P("w := uint64(0)")
		out.P("if v { w = 1 }")
		out.P("x.Set(", rt(out, "ExtensionValue"), "{Def: ", defName, ", Scalar: w})")
	case protoreflect.FloatKind:
		out.P("x.Set(", rt(out, "ExtensionValue"), "{Def: ", defName, ", Scalar: uint64(", rt(out, "Float32Bits"), "(v))})")
	case protoreflect.DoubleKind:
		out.P("x.Set(", rt(out, "ExtensionValue"), "{Def: ", defName, ", Scalar: ", rt(out, "Float64Bits"), "(v)})")
	default:
		out.P("x.Set(", rt(out, "ExtensionValue"), "{Def: ", defName, ", Scalar: uint64(v)})")
	}
	out.P("}")
	out.P()
}
