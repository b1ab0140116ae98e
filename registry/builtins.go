package registry

import "github.com/glyph-labs/glyphflow/core"

// registerBuiltinPinTypes installs the fixed built-in pin type table.
// Called once by New; built-in IDs never change.
func registerBuiltinPinTypes(r *Registry) {
	r.pinTypes["string"] = core.PinTypeString
	r.pinTypes["int"] = core.PinTypeInt
	r.pinTypes["float"] = core.PinTypeFloat
	r.pinTypes["bool"] = core.PinTypeBool
	r.pinTypes["json"] = core.PinTypeJSON
	r.pinTypes["blob"] = core.PinTypeBlob
	r.pinTypes["path"] = core.PinTypePath
	r.pinTypes["execution"] = core.PinTypeExecution
}
