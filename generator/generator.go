package generator

import (
	"strings"

	"github.com/gerben-stavenga/upb/ir"
	"github.com/gerben-stavenga/upb/logger"
	"go.uber.org/zap"
	"google.golang.org/protobuf/compiler/protogen"
)

// Generator drives the two emitters (components D and E) across every
// file the plugin was asked to generate for, sharing one layout builder
// so a submessage referenced from multiple files is laid out exactly
// once.
type Generator struct {
	Settings *PluginSettings
	Plugin   *protogen.Plugin

	settings *PluginSettings
	builder  *ir.Builder
}

func NewGenerator(p *protogen.Plugin, settings *PluginSettings) (*Generator, error) {
	return &Generator{
		Settings: settings,
		Plugin:   p,
		settings: settings,
		builder:  ir.NewBuilder(),
	}, nil
}

// Generate emits, for every non-well-known file the plugin was asked to
// generate for, a types file (component D) and a layout file (component
// E): paths derived by stripping ".proto" and appending "_upb.go" /
// "_upb_layout.go", mirroring the reference generator's .upb.h/.upb.c
// split as two Go source files in the same package.
func (g *Generator) Generate() error {
	l := logger.Logger.Named("Generate")
	for _, file := range g.Plugin.Files {
		if !file.Generate {
			continue
		}
		if strings.HasPrefix(string(file.Desc.Package()), "google.protobuf") {
			continue
		}
		l.Debug("generating", zap.String("file", string(file.Desc.Path())))

		typesFile := g.Plugin.NewGeneratedFile(file.GeneratedFilenamePrefix+"_upb.go", file.GoImportPath)
		g.emitTypes(typesFile, file)

		layoutFile := g.Plugin.NewGeneratedFile(file.GeneratedFilenamePrefix+"_upb_layout.go", file.GoImportPath)
		g.emitLayout(layoutFile, file)
	}
	return nil
}
