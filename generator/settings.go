package generator

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/protobuf/compiler/protogen"
)

// PluginSettings holds the generator's comma-separated key[=value] plugin
// parameter.
type PluginSettings struct {
	// FastTable enables the fast-dispatch table output alongside the
	// generic field array.
	FastTable bool
}

func mapGetOrDefault(paramsMap map[string]string, key string, defaultValue string) string {
	if val, ok := paramsMap[key]; ok {
		return val
	}
	return defaultValue
}

// NewPluginSettingsFromPlugin parses p.Request.Parameter. Any key other than
// the ones recognized below is a fatal error, returned through the plugin's
// error channel.
func NewPluginSettingsFromPlugin(p *protogen.Plugin) (*PluginSettings, error) {
	paramsMap := make(map[string]string)
	zap.L().Debug(p.Request.GetParameter())
	params := strings.Split(p.Request.GetParameter(), ",")
	zap.L().Debug("len(params)", zap.Int("len", len(params)))
	for _, param := range params {
		if param == "" {
			continue
		}
		key, val, hasVal := strings.Cut(param, "=")
		if !hasVal {
			val = "true"
		}
		switch key {
		case "fasttable":
			paramsMap[key] = val
		default:
			return nil, fmt.Errorf("Unknown parameter: %s", key)
		}
	}

	settings := &PluginSettings{
		FastTable: mapGetOrDefault(paramsMap, "fasttable", "false") == "true",
	}
	return settings, nil
}
