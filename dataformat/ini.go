package dataformat

import (
	"bytes"
	"fmt"

	"gopkg.in/ini.v1"
)

// INI implements core.INIService on gopkg.in/ini.v1. An empty section name
// addresses top-level keys.
type INI struct{}

// Get returns the value of key in section, or ("", false) when the document
// fails to parse or the key is absent.
func (INI) Get(doc, section, key string) (string, bool) {
	cfg, err := ini.Load([]byte(doc))
	if err != nil {
		return "", false
	}
	s, err := cfg.GetSection(section)
	if err != nil || !s.HasKey(key) {
		return "", false
	}
	return s.Key(key).String(), true
}

// Set writes key=value into section and returns the resulting document.
// The input document is unchanged.
func (INI) Set(doc, section, key, value string) (string, error) {
	cfg, err := ini.Load([]byte(doc))
	if err != nil {
		return "", fmt.Errorf("parse ini: %w", err)
	}
	cfg.Section(section).Key(key).SetValue(value)
	var b bytes.Buffer
	if _, err := cfg.WriteTo(&b); err != nil {
		return "", fmt.Errorf("write ini: %w", err)
	}
	return b.String(), nil
}

// Sections lists the named sections of doc. The unnamed top-level section is
// included only when it carries keys.
func (INI) Sections(doc string) []string {
	cfg, err := ini.Load([]byte(doc))
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range cfg.Sections() {
		if s.Name() == ini.DefaultSection && len(s.Keys()) == 0 {
			continue
		}
		out = append(out, s.Name())
	}
	return out
}

// Keys lists the key names of one section.
func (INI) Keys(doc, section string) []string {
	cfg, err := ini.Load([]byte(doc))
	if err != nil {
		return nil
	}
	s, err := cfg.GetSection(section)
	if err != nil {
		return nil
	}
	return s.KeyStrings()
}
