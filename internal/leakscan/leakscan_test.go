package leakscan

import (
	"testing"

	"github.com/opctriage/corpus/internal/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFindsPIIPatterns(t *testing.T) {
	data, err := fixture.WithPII()
	require.NoError(t, err)

	ok, findings, err := Scan(data, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotEmpty(t, findings)

	kinds := map[string]bool{}
	for _, f := range findings {
		kinds[f.Kind] = true
		// Findings never carry raw matched text.
		assert.Len(t, f.MatchSHA256, 64)
	}
	assert.True(t, kinds["email"])
	assert.True(t, kinds["unc_path"])
	assert.True(t, kinds["aws_key"])
}

func TestScanCleanWorkbookHasNoFindings(t *testing.T) {
	data, err := fixture.Minimal()
	require.NoError(t, err)

	ok, findings, err := Scan(data, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, findings)
}

func TestScanExpectedAbsentLiteral(t *testing.T) {
	data, err := fixture.Minimal()
	require.NoError(t, err)

	ok, findings, err := Scan(data, []string{"hello"})
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, findings, 1)
	assert.Equal(t, "pii-surfaces", findings[0].Kind)
}

func TestScanIsDeterministicOrderingAcrossRuns(t *testing.T) {
	data, err := fixture.WithPII()
	require.NoError(t, err)

	_, first, err := Scan(data, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, again, err := Scan(data, nil)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScanRejectsMalformedArchive(t *testing.T) {
	_, _, err := Scan([]byte("not a zip"), nil)
	assert.Error(t, err)
}
