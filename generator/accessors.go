package generator

import (
	"fmt"

	"github.com/gerben-stavenga/upb/ir"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// scalarGoType names the idiomatic Go type for a scalar/enum field, the
// type an accessor reads and writes. It is independent of the field's
// in-memory representation tag (ir.Repr), which only governs the raw byte
// width the blob reserves.
func scalarGoType(out *protogen.GeneratedFile, field *protogen.Field) string {
	switch field.Desc.Kind() {
	case protoreflect.BoolKind:
		return "bool"
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return "int32"
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return "uint32"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return "int64"
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "uint64"
	case protoreflect.FloatKind:
		return "float32"
	case protoreflect.DoubleKind:
		return "float64"
	case protoreflect.StringKind:
		return "string"
	case protoreflect.BytesKind:
		return "[]byte"
	case protoreflect.EnumKind:
		return out.QualifiedGoIdent(field.Enum.GoIdent)
	default:
		return "any"
	}
}

func (g *Generator) emitSingularAccessors(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	name := msg.GoIdent.GoName
	goName := field.GoName
	addr := addrExpr(out, lf.Offset)

	if field.Desc.Kind() == protoreflect.MessageKind || field.Desc.Kind() == protoreflect.GroupKind {
		g.emitSingularMessageAccessors(out, msg, field, lf)
		return
	}

	goType := scalarGoType(out, field)
	out.P("func (m *", name, ") Has", goName, "() bool {")
	out.P("return ", rt(out, "HasField"), "(m.msg, ", rt(out, "Presence"), "(", int32(lf.Presence), "), ", field.Desc.Number(), ")")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Get", goName, "() ", goType, " {")
	out.P("if !m.Has", goName, "() { return ", zeroValue(goType), " }")
	if field.Desc.Kind() == protoreflect.BytesKind {
		// The slot is string-header sized; bytes live there as a string.
		out.P("return []byte(*(*string)(", addr, "))")
	} else {
		out.P("return *(*", goType, ")(", addr, ")")
	}
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Set", goName, "(v ", goType, ") {")
	if field.Desc.Kind() == protoreflect.BytesKind {
		out.P("*(*string)(", addr, ") = string(v)")
	} else {
		out.P("*(*", goType, ")(", addr, ") = v")
	}
	if idx, ok := lf.Presence.HasbitIndex(); ok {
		out.P(rt(out, "SetHasbit"), "(m.msg, ", idx, ")")
	}
	out.P("}")
	out.P()
}

func (g *Generator) emitSingularMessageAccessors(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	name := msg.GoIdent.GoName
	goName := field.GoName
	addr := addrExpr(out, lf.Offset)
	subType := field.Message.GoIdent.GoName
	msgType := rt(out, "Message")

	out.P("func (m *", name, ") Has", goName, "() bool {")
	out.P("return *(*", msgType, ")(", addr, ") != nil")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Get", goName, "() *", subType, " {")
	out.P("p := *(*", msgType, ")(", addr, ")")
	out.P("if p == nil { return nil }")
	out.P("return ", subType, "FromMessage(p)")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Mutable", goName, "() *", subType, " {")
	out.P("pp := (*", msgType, ")(", addr, ")")
	out.P("if *pp == nil {")
	out.P("*pp = ", rt(out, "NewMessage"), "(uintptr(", layoutVarName(field.Message), ".Size.Of()))")
	out.P("}")
	idx, hasbit := lf.Presence.HasbitIndex()
	if hasbit {
		out.P(rt(out, "SetHasbit"), "(m.msg, ", idx, ")")
	}
	out.P("return ", subType, "FromMessage(*pp)")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Set", goName, "(v *", subType, ") {")
	if hasbit {
		out.P("if v == nil { *(*", msgType, ")(", addr, ") = nil; ", rt(out, "ClearHasbit"), "(m.msg, ", idx, "); return }")
	} else {
		out.P("if v == nil { *(*", msgType, ")(", addr, ") = nil; return }")
	}
	out.P("*(*", msgType, ")(", addr, ") = v.Message()")
	if hasbit {
		out.P(rt(out, "SetHasbit"), "(m.msg, ", idx, ")")
	}
	out.P("}")
	out.P()
}

func (g *Generator) emitOneofFieldAccessors(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	name := msg.GoIdent.GoName
	goName := field.GoName
	addr := addrExpr(out, lf.Offset)
	caseOffset := findOneof(g.builder.Layout(msg), field.Oneof).CaseOffset

	out.P("func (m *", name, ") Has", goName, "() bool {")
	out.P("return ", rt(out, "HasOneofField"), "(m.msg, int32(", sizeOfExpr(out, caseOffset), "), ", field.Desc.Number(), ")")
	out.P("}")
	out.P()

	if field.Desc.Kind() == protoreflect.MessageKind {
		subType := field.Message.GoIdent.GoName
		msgType := rt(out, "Message")
		out.P("func (m *", name, ") Get", goName, "() *", subType, " {")
		out.P("if !m.Has", goName, "() { return nil }")
		out.P("return ", subType, "FromMessage(*(*", msgType, ")(", addr, "))")
		out.P("}")
		out.P()
		out.P("func (m *", name, ") Set", goName, "(v *", subType, ") {")
		out.P("if v == nil { return }")
		out.P("*(*", msgType, ")(", addr, ") = v.Message()")
		out.P(rt(out, "SetOneofCase"), "(m.msg, int32(", sizeOfExpr(out, caseOffset), "), ", field.Desc.Number(), ")")
		out.P("}")
		out.P()
		return
	}

	goType := scalarGoType(out, field)
	out.P("func (m *", name, ") Get", goName, "() ", goType, " {")
	out.P("if !m.Has", goName, "() { return ", zeroValue(goType), " }")
	if field.Desc.Kind() == protoreflect.BytesKind {
		out.P("return []byte(*(*string)(", addr, "))")
	} else {
		out.P("return *(*", goType, ")(", addr, ")")
	}
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Set", goName, "(v ", goType, ") {")
	if field.Desc.Kind() == protoreflect.BytesKind {
		out.P("*(*string)(", addr, ") = string(v)")
	} else {
		out.P("*(*", goType, ")(", addr, ") = v")
	}
	out.P(rt(out, "SetOneofCase"), "(m.msg, int32(", sizeOfExpr(out, caseOffset), "), ", field.Desc.Number(), ")")
	out.P("}")
	out.P()
}

func (g *Generator) emitRepeatedAccessors(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	name := msg.GoIdent.GoName
	goName := field.GoName
	addr := addrExpr(out, lf.Offset)

	if field.Desc.Kind() == protoreflect.MessageKind || field.Desc.Kind() == protoreflect.GroupKind {
		g.emitRepeatedMessageAccessors(out, msg, field, lf)
		return
	}

	goType := scalarGoType(out, field)
	out.P("func (m *", name, ") Get", goName, "() []", goType, " {")
	out.P("p := *(*"+unsafeIdent(out, "Pointer")+")(", addr, ")")
	out.P("if p == nil { return nil }")
	out.P("return *(*[]", goType, ")(p)")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Set", goName, "(v []", goType, ") {")
	out.P("*(*"+unsafeIdent(out, "Pointer")+")(", addr, ") = "+unsafeIdent(out, "Pointer")+"(&v)")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Append", goName, "(v ", goType, ") {")
	out.P("s := m.Get", goName, "()")
	out.P("s = append(s, v)")
	out.P("m.Set", goName, "(s)")
	out.P("}")
	out.P()
}

func (g *Generator) emitRepeatedMessageAccessors(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	name := msg.GoIdent.GoName
	goName := field.GoName
	addr := addrExpr(out, lf.Offset)
	subType := field.Message.GoIdent.GoName
	msgType := rt(out, "Message")

	out.P("func (m *", name, ") Get", goName, "() []*", subType, " {")
	out.P("p := *(*"+unsafeIdent(out, "Pointer")+")(", addr, ")")
	out.P("if p == nil { return nil }")
	out.P("raw := *(*[]", msgType, ")(p)")
	out.P("out := make([]*", subType, ", len(raw))")
	out.P("for i, rm := range raw { out[i] = ", subType, "FromMessage(rm) }")
	out.P("return out")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Append", goName, "() *", subType, " {")
	out.P("pp := (*"+unsafeIdent(out, "Pointer")+")(", addr, ")")
	out.P("if *pp == nil {")
	out.P("s := []", msgType, "{}")
	out.P("*pp = "+unsafeIdent(out, "Pointer")+"(&s)")
	out.P("}")
	out.P("raw := (*[]", msgType, ")(*pp)")
	out.P("nm := ", rt(out, "NewMessage"), "(uintptr(", layoutVarName(field.Message), ".Size.Of()))")
	out.P("*raw = append(*raw, nm)")
	out.P("return ", subType, "FromMessage(nm)")
	out.P("}")
	out.P()
}

func (g *Generator) emitMapAccessors(out *protogen.GeneratedFile, msg *protogen.Message, field *protogen.Field, lf *ir.Field) {
	name := msg.GoIdent.GoName
	goName := field.GoName
	addr := addrExpr(out, lf.Offset)
	keyType := scalarGoType(out, field.Message.Fields[0])
	var valType string
	if field.Message.Fields[1].Desc.Kind() == protoreflect.MessageKind {
		valType = "*" + field.Message.Fields[1].Message.GoIdent.GoName
	} else {
		valType = scalarGoType(out, field.Message.Fields[1])
	}
	mapType := fmt.Sprintf("map[%s]%s", keyType, valType)

	out.P("func (m *", name, ") Get", goName, "() ", mapType, " {")
	out.P("p := *(*"+unsafeIdent(out, "Pointer")+")(", addr, ")")
	out.P("if p == nil { return nil }")
	out.P("return *(*", mapType, ")(p)")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Set", goName, "(v ", mapType, ") {")
	out.P("*(*"+unsafeIdent(out, "Pointer")+")(", addr, ") = "+unsafeIdent(out, "Pointer")+"(&v)")
	out.P("}")
	out.P()
	out.P("func (m *", name, ") Mutable", goName, "() ", mapType, " {")
	out.P("cur := m.Get", goName, "()")
	out.P("if cur == nil {")
	out.P("cur = make(", mapType, ")")
	out.P("m.Set", goName, "(cur)")
	out.P("}")
	out.P("return cur")
	out.P("}")
	out.P()
}

func zeroValue(goType string) string {
	switch goType {
	case "bool":
		return "false"
	case "string":
		return `""`
	case "[]byte":
		return "nil"
	default:
		return goType + "(0)"
	}
}
