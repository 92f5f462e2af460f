package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, Private, ParseMode("private"))
	assert.Equal(t, Private, ParseMode("PRIVATE"))
	assert.Equal(t, Public, ParseMode("public"))
	assert.Equal(t, Public, ParseMode("whatever"))
}

func TestRedactNoOpUnderPublic(t *testing.T) {
	assert.Equal(t, "jane@example.com", Redact(Public, "jane@example.com"))
}

func TestRedactHashesUnderPrivate(t *testing.T) {
	got := Redact(Private, "jane@example.com")
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, got)
}

func TestRedactIsIdempotent(t *testing.T) {
	once := Redact(Private, "jane@example.com")
	twice := Redact(Private, once)
	assert.Equal(t, once, twice)
}

func TestDisplayNameForPublicPassesThrough(t *testing.T) {
	assert.Equal(t, "report.xlsx", DisplayNameFor(Public, "report.xlsx", "deadbeef"))
}

func TestDisplayNameForPrivateIsContentAddressed(t *testing.T) {
	sha := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	got1 := DisplayNameFor(Private, "report.xlsx", sha)
	got2 := DisplayNameFor(Private, "different-name-same-hash.xlsx", sha)
	assert.Equal(t, got1, got2, "private display name depends only on content hash, not original name")
	assert.Equal(t, "workbook-0123456789abcdef.xlsx", got1)
}

func TestDisplayNameForPreservesExtension(t *testing.T) {
	sha := "abcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcdefabcd"
	got := DisplayNameFor(Private, "report.xlsm", sha)
	assert.Equal(t, ".xlsm", got[len(got)-5:])
}

func TestRedactRunURLAllowlistsGitHub(t *testing.T) {
	u := "https://github.com/org/repo/actions/runs/123"
	assert.Equal(t, u, RedactRunURL(Private, u))
}

func TestRedactRunURLHashesUnknownHost(t *testing.T) {
	u := "https://internal.example.com/ci/456"
	got := RedactRunURL(Private, u)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, got)
}

func TestRedactRunURLPublicPassesThrough(t *testing.T) {
	u := "https://internal.example.com/ci/456"
	assert.Equal(t, u, RedactRunURL(Public, u))
}

func TestRedactSchemeAllowlistsKnownNamespaces(t *testing.T) {
	ns := "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	assert.Equal(t, ns, RedactScheme(Private, ns))
}

func TestRedactSchemeHashesUnknown(t *testing.T) {
	got := RedactScheme(Private, "http://acme.internal/custom-schema")
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, got)
}

func TestRedactFunctionNameCatalogAndLowercaseSurvive(t *testing.T) {
	catalog := NewMapCatalog("SUM", "VLOOKUP")
	assert.Equal(t, "SUM", RedactFunctionName(Private, "SUM", catalog))
	assert.Equal(t, "my.custom.fn", RedactFunctionName(Private, "my.custom.fn", catalog))
}

func TestRedactFunctionNameHashesUnknownMixedCase(t *testing.T) {
	catalog := NewMapCatalog("SUM")
	got := RedactFunctionName(Private, "CORP.ADDIN.FOO", catalog)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, got)
}

func TestRedactFunctionNamePublicPassesThrough(t *testing.T) {
	assert.Equal(t, "CORP.ADDIN.FOO", RedactFunctionName(Public, "CORP.ADDIN.FOO", nil))
}
