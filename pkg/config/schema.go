package config

import (
	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

// Plugin identity as registered with the host.
const (
	PluginID          = "signalk-n2k-server"
	PluginName        = "SignalK N2K Server"
	PluginDescription = "Signal K Plugin For N2K Server"
)

// Schema returns the JSON schema of the plugin properties the host renders
// in its configuration UI.
func Schema() map[string]any {
	formats := n2k.Formats()
	enum := make([]string, len(formats))
	for i, f := range formats {
		enum[i] = string(f)
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"port": map[string]any{
				"type":        "number",
				"title":       "Port",
				"description": "The port on which the N2K server listens",
				"default":     DefaultPort,
			},
			"format": map[string]any{
				"type":        "string",
				"title":       "Format",
				"description": "The format of the N2K data",
				"enum":        enum,
				"default":     string(n2k.DefaultFormat),
			},
			"suppressEcho": map[string]any{
				"type":        "boolean",
				"title":       "Suppress echo",
				"description": "Do not send a client the frames it sent itself",
				"default":     false,
			},
			"maxLineLength": map[string]any{
				"type":        "number",
				"title":       "Maximum line length",
				"description": "Disconnect clients sending longer lines (0 for no limit)",
				"default":     0,
			},
		},
	}
}

// UISchema returns the plugin UI schema. The host's defaults suffice.
func UISchema() map[string]any {
	return map[string]any{}
}
