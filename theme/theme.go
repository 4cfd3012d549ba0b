// Package theme owns the schema of the UI theme document the command
// dispatcher hands back from get_theme/update_theme, plus the fixed catalog
// of built-in presets apply_preset selects from. The document itself is
// opaque to store.Theme, which only persists and retrieves the JSON text.
package theme

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Config is the UI-visible theme document. Fields are deliberately few and
// flat: the UI owns rendering, this package only owns the shape the fields
// take so get_theme/update_theme round-trip without losing or inventing data.
type Config struct {
	Preset    string            `json:"preset"`
	Colors    map[string]string `json:"colors"`
	FontScale float64           `json:"font_scale"`
}

// Preset is one built-in, named theme a client can apply wholesale via
// apply_preset instead of constructing a Config field by field.
type Preset struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      Config `json:"-"`
}

var builtinPresets = []Preset{
	{
		Key:         "system",
		Name:        "System",
		Description: "Follows the OS light/dark setting",
		Config: Config{
			Preset:    "system",
			Colors:    map[string]string{"background": "#ffffff", "foreground": "#111111", "accent": "#3b82f6"},
			FontScale: 1.0,
		},
	},
	{
		Key:         "light",
		Name:        "Light",
		Description: "High-contrast light theme",
		Config: Config{
			Preset:    "light",
			Colors:    map[string]string{"background": "#ffffff", "foreground": "#111111", "accent": "#2563eb"},
			FontScale: 1.0,
		},
	},
	{
		Key:         "dark",
		Name:        "Dark",
		Description: "High-contrast dark theme",
		Config: Config{
			Preset:    "dark",
			Colors:    map[string]string{"background": "#111111", "foreground": "#f5f5f5", "accent": "#60a5fa"},
			FontScale: 1.0,
		},
	},
	{
		Key:         "solarized",
		Name:        "Solarized",
		Description: "Low-contrast warm palette",
		Config: Config{
			Preset:    "solarized",
			Colors:    map[string]string{"background": "#fdf6e3", "foreground": "#073642", "accent": "#b58900"},
			FontScale: 1.0,
		},
	},
}

// Default is the theme document a fresh install starts with.
func Default() Config {
	return builtinPresets[0].Config
}

// Presets lists the built-in catalog, omitting each preset's Config (the
// list_theme_presets command surface is {key, name, description} only).
func Presets() []Preset {
	out := make([]Preset, len(builtinPresets))
	copy(out, builtinPresets)
	return out
}

// ByKey returns the built-in preset for key, if any.
func ByKey(key string) (Preset, bool) {
	for _, p := range builtinPresets {
		if p.Key == key {
			return p, true
		}
	}
	return Preset{}, false
}

// Decode parses raw (as persisted by store.Theme) into a Config, rejecting
// unknown fields per the "fix the schema, reject unknown fields" interface
// note. Empty or all-default raw text ("", "{}") decodes to Default().
func Decode(raw string) (Config, error) {
	if raw == "" || raw == "{}" {
		return Default(), nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("theme: decode: %w", err)
	}
	return cfg, nil
}

// Encode serializes cfg for persistence via store.Theme.
func Encode(cfg Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("theme: encode: %w", err)
	}
	return string(data), nil
}
