package plugin

import "github.com/glyph-labs/glyphflow/core"

// nopScriptRegistry is handed to OnRegister when no scripting engine is
// configured. Bindings registered against it go nowhere.
type nopScriptRegistry struct{}

func (nopScriptRegistry) PluginState(string) any { return nil }

func (nopScriptRegistry) RegisterGlobal(any, string, func(any) int) {}

func (nopScriptRegistry) RegisterLibrary(any, string, map[string]func(any) int) {}

var _ core.ScriptRegistry = nopScriptRegistry{}
