package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opctriage/corpus/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	d := Default()
	assert.Equal(t, 1, d.Jobs)
	assert.Equal(t, "public", d.PrivacyMode)
	assert.Equal(t, 50, d.DiffLimit)
	assert.Equal(t, "critical", d.RoundTripFailOn)
	assert.Equal(t, 90, d.TrendMaxEntries)
	assert.Equal(t, "CORPUS_ENCRYPTION_KEY", d.FernetKeyEnv)
	assert.False(t, d.IncludeXLSB)
	assert.False(t, d.StrictCalcChain)
	assert.Nil(t, d.GateLoadP90Ms)
}

func TestLoadTOMLOverridesOnlyDeclaredKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
jobs = 8
gate_load_p90_ms = 1200.5
ignore_presets = ["strict-rel-order"]
`), 0o644))

	merged, err := LoadTOML(path, Default())
	require.NoError(t, err)

	assert.Equal(t, 8, merged.Jobs)
	require.NotNil(t, merged.GateLoadP90Ms)
	assert.Equal(t, 1200.5, *merged.GateLoadP90Ms)
	assert.Equal(t, []string{"strict-rel-order"}, merged.IgnorePresets)

	// Undeclared fields retain the base defaults.
	assert.Equal(t, "public", merged.PrivacyMode)
	assert.Equal(t, 50, merged.DiffLimit)
	assert.Equal(t, "critical", merged.RoundTripFailOn)
	assert.Nil(t, merged.GateRoundTripP90Ms)
}

func TestLoadTOMLMissingFileErrors(t *testing.T) {
	_, err := LoadTOML(filepath.Join(t.TempDir(), "nope.toml"), Default())
	assert.Error(t, err)
}

func TestLoadTOMLMalformedErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid toml"), 0o644))

	_, err := LoadTOML(path, Default())
	assert.Error(t, err)
}

func TestEngineModeParsesPrivacyMode(t *testing.T) {
	e := Default()
	assert.Equal(t, privacy.Public, e.Mode())

	e.PrivacyMode = "private"
	assert.Equal(t, privacy.Private, e.Mode())
}
