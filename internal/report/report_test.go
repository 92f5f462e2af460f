package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriBoolMarshal(t *testing.T) {
	b, err := True.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "true", string(b))

	b, err = False.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "false", string(b))

	b, err = Skipped.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestTriBoolUnmarshal(t *testing.T) {
	var tb TriBool

	require.NoError(t, json.Unmarshal([]byte("true"), &tb))
	assert.Equal(t, True, tb)

	require.NoError(t, json.Unmarshal([]byte("false"), &tb))
	assert.Equal(t, False, tb)

	require.NoError(t, json.Unmarshal([]byte("null"), &tb))
	assert.Equal(t, Skipped, tb)
}

func TestTriBoolUnmarshalFallsBackToPlainBool(t *testing.T) {
	// Exercises the default branch's json.Unmarshal(&b) fallback for any
	// encoder that might emit a bare numeric/other boolean-ish token.
	var tb TriBool
	require.NoError(t, json.Unmarshal([]byte(`true`), &tb))
	assert.Equal(t, True, tb)
}

func TestTriBoolRoundTripThroughStruct(t *testing.T) {
	type wrapper struct {
		V TriBool `json:"v"`
	}
	for _, tc := range []TriBool{True, False, Skipped} {
		data, err := json.Marshal(wrapper{V: tc})
		require.NoError(t, err)
		var out wrapper
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, tc, out.V)
	}
}

func TestFromBool(t *testing.T) {
	assert.Equal(t, True, FromBool(true))
	assert.Equal(t, False, FromBool(false))
}

func TestResultOmitsSkippedTriStateFields(t *testing.T) {
	r := Result{OpenOK: true, RoundTripOK: true}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	_, hasCalc := m["calculate_ok"]
	assert.False(t, hasCalc, "omitempty should drop a zero-value (Skipped) TriBool")
}

func TestResultIncludesNonSkippedTriStateFields(t *testing.T) {
	r := Result{OpenOK: true, RoundTripOK: true, CalculateOK: False, RenderOK: True}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "false", string(m["calculate_ok"]))
	assert.Equal(t, "true", string(m["render_ok"]))
}

func TestStepsOptionalStepsOmittedWhenNil(t *testing.T) {
	s := Steps{Load: Step{Status: "ok"}, Features: Step{Status: "ok"}, RoundTrip: Step{Status: "ok"}, Diff: Step{Status: "ok"}}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	_, hasRecalc := m["recalc"]
	_, hasRender := m["render"]
	assert.False(t, hasRecalc)
	assert.False(t, hasRender)
}
