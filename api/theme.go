package api

import (
	"context"

	"github.com/rchat-io/rchat-node/theme"
)

// GetTheme returns the node's current theme document, decoding the stored
// JSON via theme.Decode (empty storage resolves to theme.Default()).
func (d *Dispatcher) GetTheme(ctx context.Context) (theme.Config, *Error) {
	raw, err := d.deps.Store.Theme().Get(ctx)
	if err != nil {
		return theme.Config{}, classify(err, KindInternal)
	}
	cfg, err := theme.Decode(raw)
	if err != nil {
		return theme.Config{}, newError(KindInternal, "decode stored theme", err)
	}
	return cfg, nil
}

// UpdateTheme persists cfg as the node's theme document wholesale.
func (d *Dispatcher) UpdateTheme(ctx context.Context, cfg theme.Config) *Error {
	raw, err := theme.Encode(cfg)
	if err != nil {
		return newError(KindInvalidArgument, "encode theme", err)
	}
	if err := d.deps.Store.Theme().Set(ctx, raw); err != nil {
		return classify(err, KindInternal)
	}
	return nil
}

// ListThemePresets lists the built-in catalog apply_preset can select from.
func (d *Dispatcher) ListThemePresets() []theme.Preset {
	return theme.Presets()
}

// ApplyPreset overwrites the node's theme document with a built-in preset.
func (d *Dispatcher) ApplyPreset(ctx context.Context, key string) *Error {
	preset, ok := theme.ByKey(key)
	if !ok {
		return newError(KindInvalidArgument, "unknown preset", nil)
	}
	return d.UpdateTheme(ctx, preset.Config)
}

// GetSelectedPreset returns the key of the built-in preset matching the
// node's current theme document, or "" if it has been customized away from
// every built-in.
func (d *Dispatcher) GetSelectedPreset(ctx context.Context) (string, *Error) {
	cfg, apiErr := d.GetTheme(ctx)
	if apiErr != nil {
		return "", apiErr
	}
	if _, ok := theme.ByKey(cfg.Preset); ok {
		return cfg.Preset, nil
	}
	return "", nil
}
