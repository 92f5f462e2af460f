package diffengine

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/opctriage/corpus/internal/fixture"
	"github.com/opctriage/corpus/internal/opc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBytes(t *testing.T, data []byte) *opc.Package {
	t.Helper()
	pkg, err := opc.Open(data)
	require.NoError(t, err)
	return pkg
}

// mutatePart rebuilds a zip archive from src, replacing part name's content.
func mutatePart(t *testing.T, src []byte, name string, newContent []byte) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	found := false
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var out bytes.Buffer
		_, _ = out.ReadFrom(rc)
		rc.Close()

		content := out.Bytes()
		if f.Name == name {
			content = newContent
			found = true
		}
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.True(t, found, "part %s not found in source archive", name)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func removePart(t *testing.T, src []byte, name string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if f.Name == name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		var out bytes.Buffer
		_, _ = out.ReadFrom(rc)
		rc.Close()
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = w.Write(out.Bytes())
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestCompareIdenticalPackagesIsEqual(t *testing.T) {
	data, err := fixture.Minimal()
	require.NoError(t, err)
	a := openBytes(t, data)
	b := openBytes(t, data)

	res := Compare(a, b, DefaultConfig())
	assert.True(t, res.Equal)
	assert.True(t, res.RoundTripOK)
	assert.Zero(t, res.Counts.Total)
}

func TestCompareDetectsRemovedPartAsCritical(t *testing.T) {
	data, err := fixture.WithFunctions("SUM")
	require.NoError(t, err)
	a := openBytes(t, data)
	mutated := removePart(t, data, "xl/worksheets/sheet1.xml")
	b := openBytes(t, mutated)

	res := Compare(a, b, DefaultConfig())
	assert.False(t, res.Equal)
	assert.Greater(t, res.Counts.Critical, 0)
	assert.False(t, res.RoundTripOK)
}

func TestCompareIgnoresDocPropsByDefault(t *testing.T) {
	data, err := fixture.Minimal()
	require.NoError(t, err)
	a := openBytes(t, data)
	mutated := mutatePart(t, data, "docProps/core.xml", []byte(`<cp:coreProperties xmlns:cp="x"><dc:title>changed</dc:title></cp:coreProperties>`))
	b := openBytes(t, mutated)

	res := Compare(a, b, DefaultConfig())
	assert.True(t, res.Equal, "docProps/core.xml changes should be ignored by default config")
}

func TestCompareDowngradesCalcChainByDefault(t *testing.T) {
	data, err := fixture.WithFunctions("SUM")
	require.NoError(t, err)
	a := openBytes(t, data)
	b := openBytes(t, data)

	cfg := DefaultConfig()
	res := Compare(a, b, cfg)
	assert.True(t, res.Equal)
	assert.False(t, cfg.StrictCalcChain)
}

func TestFingerprintIsStructurallyInvariantToIndices(t *testing.T) {
	f1 := fingerprint("xl/worksheets/sheet1.xml", KindTextChanged, "/worksheet[1]/sheetData[1]/row[3]", "worksheet_xml")
	f2 := fingerprint("xl/worksheets/sheet1.xml", KindTextChanged, "/worksheet[1]/sheetData[1]/row[7]", "worksheet_xml")
	assert.Equal(t, f1, f2, "differing only by row index should fingerprint identically")
}

func TestFingerprintDiffersByKind(t *testing.T) {
	f1 := fingerprint("xl/worksheets/sheet1.xml", KindTextChanged, "/a[1]", "worksheet_xml")
	f2 := fingerprint("xl/worksheets/sheet1.xml", KindAttributeChanged, "/a[1]", "worksheet_xml")
	assert.NotEqual(t, f1, f2)
}

func TestApplyIgnoreRulesGlob(t *testing.T) {
	entries := []DiffEntry{
		{Part: "xl/worksheets/sheet1.xml", Path: "/a[1]", Kind: KindTextChanged, Severity: Critical},
		{Part: "xl/styles.xml", Path: "/b[1]", Kind: KindTextChanged, Severity: Critical},
	}
	cfg := Config{IgnoreGlob: []string{"xl/worksheets/**"}}
	survivors := applyIgnoreRules(entries, cfg)
	require.Len(t, survivors, 1)
	assert.Equal(t, "xl/styles.xml", survivors[0].Part)
}

func TestApplyIgnoreRulesIgnorePart(t *testing.T) {
	entries := []DiffEntry{
		{Part: "docProps/app.xml", Path: "/a[1]", Kind: KindTextChanged, Severity: Warn},
	}
	cfg := Config{IgnorePart: map[string]bool{"docProps/app.xml": true}}
	assert.Empty(t, applyIgnoreRules(entries, cfg))
}

func TestDiffLimitTruncatesTopDifferences(t *testing.T) {
	data, err := fixture.WithFunctions("SUM")
	require.NoError(t, err)
	a := openBytes(t, data)

	mutated := mutatePart(t, data, "xl/worksheets/sheet1.xml", []byte(`<worksheet xmlns="urn:ns"><sheetData><row r="1"><c r="A1"><v>9</v></c></row></sheetData></worksheet>`))
	b := openBytes(t, mutated)

	cfg := DefaultConfig()
	cfg.DiffLimit = 1
	res := Compare(a, b, cfg)
	assert.LessOrEqual(t, len(res.TopDifferences), 1)
}

func TestRoundTripFailOnThresholds(t *testing.T) {
	data, err := fixture.Minimal()
	require.NoError(t, err)
	a := openBytes(t, data)
	// A comments part change classifies as warn-group (not critical), so the
	// outcome under each RoundTripFailOn threshold should differ.
	mutated := mutatePart(t, data, "docProps/app.xml", []byte(`<Properties xmlns="x"><Company>changed</Company></Properties>`))
	b := openBytes(t, mutated)

	cfgCritical := Config{IgnorePart: map[string]bool{}, RoundTripFailOn: "critical", DiffLimit: 50}
	res := Compare(a, b, cfgCritical)
	assert.True(t, res.RoundTripOK, "docProps change is warn severity, should pass under critical threshold")

	cfgWarning := Config{IgnorePart: map[string]bool{}, RoundTripFailOn: "warning", DiffLimit: 50}
	res = Compare(a, b, cfgWarning)
	assert.False(t, res.RoundTripOK, "docProps change should fail under warning threshold")
}
