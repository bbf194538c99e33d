package generator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// buildPlugin turns a hand-built FileDescriptorProto into a *protogen.Plugin,
// the same immutable object model a real protoc invocation hands the
// generator, mirroring package ir's own test helper.
func buildPlugin(t *testing.T, files ...*descriptorpb.FileDescriptorProto) *protogen.Plugin {
	t.Helper()
	toGenerate := make([]string, 0, len(files))
	for _, f := range files {
		if f.Options == nil {
			f.Options = &descriptorpb.FileOptions{}
		}
		if f.Options.GoPackage == nil {
			f.Options.GoPackage = proto.String("github.com/example/gen")
		}
		toGenerate = append(toGenerate, f.GetName())
	}
	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: toGenerate,
		ProtoFile:      files,
		CompilerVersion: &pluginpb.Version{
			Major: proto.Int32(4), Minor: proto.Int32(25), Patch: proto.Int32(0),
		},
	}
	p, err := protogen.Options{}.New(req)
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string { return &s }

func label(l descriptorpb.FieldDescriptorProto_Label) *descriptorpb.FieldDescriptorProto_Label {
	return &l
}

func typ(t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto_Type {
	return &t
}

func num(n int32) *int32 { return &n }

func fieldProto(name string, n int32, lbl descriptorpb.FieldDescriptorProto_Label, ty descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     strPtr(name),
		Number:   num(n),
		Label:    label(lbl),
		Type:     typ(ty),
		JsonName: strPtr(name),
	}
}

func findMessageByName(file *protogen.File, name string) *protogen.Message {
	for _, m := range file.Messages {
		if string(m.Desc.Name()) == name {
			return m
		}
	}
	return nil
}

func newTestGenerator(t *testing.T, p *protogen.Plugin) *Generator {
	t.Helper()
	g, err := NewGenerator(p, &PluginSettings{})
	require.NoError(t, err)
	return g
}
