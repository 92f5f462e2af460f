// Package config builds the engine's runtime Config from flags/env, with an
// optional TOML overlay file for ignore-rule presets, gate thresholds, and
// privacy mode — the one place in this module a config-file format is
// needed, following standardbeagle/lci's layered flags>env>file convention.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/opctriage/corpus/internal/privacy"
)

// Engine is the full set of knobs the corpus driver assembles before running
// the TriageRunner over every workbook.
type Engine struct {
	Jobs                int            `toml:"jobs"`
	PrivacyMode         string         `toml:"privacy_mode"`
	IncludeXLSB         bool           `toml:"include_xlsb"`
	DiffLimit           int            `toml:"diff_limit"`
	RoundTripFailOn     string         `toml:"round_trip_fail_on"`
	StrictCalcChain     bool           `toml:"strict_calc_chain"`
	IgnorePresets       []string       `toml:"ignore_presets"`
	IgnoreGlob          []string       `toml:"ignore_glob"`
	IgnorePart          []string       `toml:"ignore_part"`
	GateLoadP90Ms       *float64       `toml:"gate_load_p90_ms"`
	GateRoundTripP90Ms  *float64       `toml:"gate_round_trip_p90_ms"`
	GateOpenRateMin     *float64       `toml:"gate_open_rate_min"`
	GateRoundTripRateMin *float64      `toml:"gate_round_trip_rate_min"`
	TrendMaxEntries     int            `toml:"trend_max_entries"`
	FernetKeyEnv        string         `toml:"fernet_key_env"`
}

// Default returns the documented defaults before any overlay is applied.
func Default() Engine {
	return Engine{
		Jobs:            1,
		PrivacyMode:     "public",
		DiffLimit:       50,
		RoundTripFailOn: "critical",
		TrendMaxEntries: 90,
		FernetKeyEnv:    "CORPUS_ENCRYPTION_KEY",
	}
}

// LoadTOML reads path and overlays its fields onto base, returning the
// merged Engine. A zero-valued field in the TOML file never overwrites a
// non-zero base field for pointer-typed gate thresholds (nil means "not
// set in the file"); scalar fields always take the file's value when the
// file declares the key at all, matching go-toml/v2's unmarshal semantics.
func LoadTOML(path string, base Engine) (Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: read %s: %w", path, err)
	}
	merged := base
	if err := toml.Unmarshal(data, &merged); err != nil {
		return base, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return merged, nil
}

// Mode parses the engine's privacy_mode string into privacy.Mode.
func (e Engine) Mode() privacy.Mode {
	return privacy.ParseMode(e.PrivacyMode)
}
