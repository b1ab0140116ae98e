package plugin

// MenuItem is one editor menu entry contributed by a plugin. A non-empty
// Children slice makes it a submenu; ActionID identifies a leaf action the
// host routes back to the plugin via InvokeMenuAction. The zero value is a
// separator.
type MenuItem struct {
	Label    string
	ActionID string
	Children []MenuItem
}

// Separator returns a divider item.
func Separator() MenuItem { return MenuItem{} }

// IsSeparator reports whether the item renders as a divider.
func (i MenuItem) IsSeparator() bool {
	return i.Label == "" && i.ActionID == "" && len(i.Children) == 0
}

// MenuRegistration is one menu a plugin contributes: a slash-separated
// placement path in the editor menubar (e.g. "Tools" or "Plugins/Config")
// and the items mounted there.
type MenuRegistration struct {
	Path  string
	Items []MenuItem
}

// Menu is a registration stamped with its owning plugin so the host can
// route item activations.
type Menu struct {
	PluginID string
	Path     string
	Items    []MenuItem
}
