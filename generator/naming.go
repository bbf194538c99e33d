package generator

import (
	"strings"

	"github.com/iancoleman/strcase"
	"google.golang.org/protobuf/compiler/protogen"
)

// layoutVarName is the package-level variable holding a message's
// *runtime.MessageTable, e.g. "Person_layout".
func layoutVarName(msg *protogen.Message) string {
	return string(msg.Desc.Name()) + "_layout"
}

// oneofCaseTypeName names the dense enum type for a oneof's case tag, e.g.
// "PersonContactCase".
func oneofCaseTypeName(msg *protogen.Message, oneof *protogen.Oneof) string {
	return msg.GoIdent.GoName + strcase.ToCamel(string(oneof.Desc.Name())) + "Case"
}

func oneofCaseConstName(msg *protogen.Message, oneof *protogen.Oneof, field *protogen.Field) string {
	return oneofCaseTypeName(msg, oneof) + "_" + field.GoName
}

func oneofCaseNotSetName(msg *protogen.Message, oneof *protogen.Oneof) string {
	return oneofCaseTypeName(msg, oneof) + "_NOT_SET"
}

// goSanitized mirrors the package-dots-to-underscores identifier transform:
// used when a name must become a valid, collision-resistant Go identifier
// fragment (fast-table function symbols, include-guard-style constants).
func goSanitized(s string) string {
	return strings.NewReplacer(".", "_", "/", "_").Replace(s)
}
