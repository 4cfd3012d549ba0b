package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyReturnsDefault(t *testing.T) {
	cfg, err := Decode("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Decode("{}")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := Config{Preset: "dark", Colors: map[string]string{"background": "#000"}, FontScale: 1.2}
	raw, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(`{"preset":"dark","wallpaper":"nope"}`)
	assert.Error(t, err)
}

func TestByKeyFindsBuiltins(t *testing.T) {
	p, ok := ByKey("dark")
	require.True(t, ok)
	assert.Equal(t, "Dark", p.Name)

	_, ok = ByKey("does-not-exist")
	assert.False(t, ok)
}

func TestPresetsListCoversEveryBuiltin(t *testing.T) {
	presets := Presets()
	assert.Len(t, presets, len(builtinPresets))
	for _, p := range presets {
		assert.NotEmpty(t, p.Key)
		assert.NotEmpty(t, p.Name)
	}
}
