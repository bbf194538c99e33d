package generator

import (
	"fmt"
	"sort"

	"github.com/gerben-stavenga/upb/ir"
	"github.com/iancoleman/strcase"
	"google.golang.org/protobuf/compiler/protogen"
)

// runtimeImportPath is where every generated file's accessors reach for
// Message, NewMessage, hasbit/oneof-case helpers and the MessageTable type.
const runtimeImportPath protogen.GoImportPath = "github.com/gerben-stavenga/upb/runtime"

func rt(out *protogen.GeneratedFile, name string) string {
	return out.QualifiedGoIdent(protogen.GoIdent{GoImportPath: runtimeImportPath, GoName: name})
}

// unsafeIdent forces protogen to register an "unsafe" import and returns
// the (always unaliased) qualified name, so field accessors can do their
// own unsafe.Add/unsafe.Pointer arithmetic over the blob.
func unsafeIdent(out *protogen.GeneratedFile, name string) string {
	return out.QualifiedGoIdent(protogen.GoIdent{GoImportPath: "unsafe", GoName: name})
}

// emitTypes is component D, the header emitter: for every message defined
// in the file it emits the opaque message type, its constructor, and the
// full get/set/has/mutable/oneof-case accessor surface. Map-entry synthetic
// messages never reach here; a map field's accessor is emitted directly on
// the containing message instead.
func (g *Generator) emitTypes(out *protogen.GeneratedFile, file *protogen.File) {
	out.P("// Code generated by protoc-gen-upb-plain. DO NOT EDIT.")
	out.P("// source: ", file.Desc.Path())
	out.P()
	out.P("package ", file.GoPackageName)
	out.P()

	var walk func(msgs []*protogen.Message)
	walk = func(msgs []*protogen.Message) {
		for _, msg := range msgs {
			if !msg.Desc.IsMapEntry() {
				g.emitMessageType(out, msg)
			}
			walk(msg.Messages)
		}
	}
	walk(file.Messages)

	for _, enum := range allEnums(file) {
		emitEnum(out, enum)
	}

	g.emitExtensions(out, file)
}

func allEnums(file *protogen.File) []*protogen.Enum {
	var result []*protogen.Enum
	var walk func(msgs []*protogen.Message)
	walk = func(msgs []*protogen.Message) {
		for _, msg := range msgs {
			result = append(result, msg.Enums...)
			walk(msg.Messages)
		}
	}
	result = append(result, file.Enums...)
	walk(file.Messages)
	return result
}

// emitEnum emits a dense Go int32 enum, values in descriptor (number) order.
func emitEnum(out *protogen.GeneratedFile, enum *protogen.Enum) {
	out.P("type ", enum.GoIdent.GoName, " int32")
	out.P()
	out.P("const (")
	values := append([]*protogen.EnumValue(nil), enum.Values...)
	sort.SliceStable(values, func(i, j int) bool { return values[i].Desc.Number() < values[j].Desc.Number() })
	for _, v := range values {
		out.P(v.GoIdent.GoName, " ", enum.GoIdent.GoName, " = ", v.Desc.Number())
	}
	out.P(")")
	out.P()
}

func (g *Generator) emitMessageType(out *protogen.GeneratedFile, msg *protogen.Message) {
	l := g.builder.Layout(msg)
	name := msg.GoIdent.GoName
	msgType := rt(out, "Message")

	out.P("// ", name, " is an opaque handle over a runtime-laid-out memory")
	out.P("// blob; its fields are only reachable through the accessors below.")
	out.P("type ", name, " struct {")
	out.P("msg ", msgType)
	out.P("}")
	out.P()
	out.P("func New", name, "() *", name, " {")
	out.P("return &", name, "{msg: ", rt(out, "NewMessage"), "(uintptr(", layoutVarName(msg), ".Size.Of()))}")
	out.P("}")
	out.P()
	out.P("// ", name, "FromMessage wraps an existing message handle, e.g. one")
	out.P("// returned by a parent message's submessage accessor.")
	out.P("func ", name, "FromMessage(m ", msgType, ") *", name, " { return &", name, "{msg: m} }")
	out.P()
	out.P("func (m *", name, ") Message() ", msgType, " { return m.msg }")
	out.P()

	for _, oneof := range msg.Oneofs {
		if oneof.Desc.IsSynthetic() {
			continue
		}
		g.emitOneofCase(out, msg, oneof, findOneof(l, oneof))
	}

	for _, field := range msg.Fields {
		lf := findField(l, int32(field.Desc.Number()))
		if lf == nil {
			continue
		}
		switch {
		case field.Desc.IsMap():
			g.emitMapAccessors(out, msg, field, lf)
		case field.Desc.IsList():
			g.emitRepeatedAccessors(out, msg, field, lf)
		case field.Oneof != nil && !field.Oneof.Desc.IsSynthetic():
			g.emitOneofFieldAccessors(out, msg, field, lf)
		default:
			g.emitSingularAccessors(out, msg, field, lf)
		}
	}

	g.emitUnknownBytesAccessors(out, msg, l)
	out.P()
}

// emitUnknownBytesAccessors emits the unknown-field passthrough surface
// every message carries: the byte range a decoder elsewhere in the
// pipeline captured for fields this schema doesn't declare, written
// verbatim by EncodeMessage ahead of declared fields and extensions.
func (g *Generator) emitUnknownBytesAccessors(out *protogen.GeneratedFile, msg *protogen.Message, l *ir.Message) {
	name := msg.GoIdent.GoName
	off := sizeOfExpr(out, l.UnknownOffset)

	out.P("func (m *", name, ") UnknownBytes() []byte {")
	out.P("return ", rt(out, "GetUnknownBytes"), "(m.msg, ", off, ")")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") SetUnknownBytes(b []byte) {")
	out.P(rt(out, "SetUnknownBytes"), "(m.msg, ", off, ", b)")
	out.P("}")
	out.P()
}

func findField(l *ir.Message, number int32) *ir.Field {
	for _, f := range l.Fields {
		if f.Number == number {
			return f
		}
	}
	return nil
}

func findOneof(l *ir.Message, oneof *protogen.Oneof) *ir.Oneof {
	for _, o := range l.Oneofs {
		if o.Desc.Desc.FullName() == oneof.Desc.FullName() {
			return o
		}
	}
	return nil
}

func (g *Generator) emitOneofCase(out *protogen.GeneratedFile, msg *protogen.Message, oneof *protogen.Oneof, lo *ir.Oneof) {
	caseType := oneofCaseTypeName(msg, oneof)
	out.P("type ", caseType, " uint32")
	out.P()
	out.P("const (")
	out.P(oneofCaseNotSetName(msg, oneof), " ", caseType, " = 0")
	for _, f := range oneof.Fields {
		out.P(oneofCaseConstName(msg, oneof, f), " ", caseType, " = ", f.Desc.Number())
	}
	out.P(")")
	out.P()

	out.P("func (m *", msg.GoIdent.GoName, ") ", strcase.ToCamel(string(oneof.Desc.Name())), "Case() ", caseType, " {")
	out.P("return ", caseType, "(", rt(out, "OneofCase"), "(m.msg, int32(", sizeOfExpr(out, lo.CaseOffset), ")))")
	out.P("}")
	out.P()
}

// sizeOfExpr renders an ir.Size as a Go expression evaluating to the
// pointer-width-correct offset at runtime.
func sizeOfExpr(out *protogen.GeneratedFile, sz ir.Size) string {
	return fmt.Sprintf("(%s{Size32: %d, Size64: %d}).Of()", rt(out, "Size"), sz.Size32, sz.Size64)
}

func addrExpr(out *protogen.GeneratedFile, sz ir.Size) string {
	return fmt.Sprintf("%s(%s(m.msg), %s)", unsafeIdent(out, "Add"), unsafeIdent(out, "Pointer"), sizeOfExpr(out, sz))
}
