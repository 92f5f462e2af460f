// Package privacy implements a pure, idempotent transform over strings that
// could link a triage report back to a source workbook, active only under
// Mode Private. It is deliberately dependency-light (crypto/sha256 + stdlib
// strings/regexp): the exact hash format (`sha256=<64-hex>`) callers must
// match byte for byte leaves no room for a generic "redaction library" to
// add value here — see DESIGN.md.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

// Mode selects whether redaction is active.
type Mode int

const (
	Public Mode = iota
	Private
)

// ParseMode parses the "public"/"private" CLI/config spelling.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, "private") {
		return Private
	}
	return Public
}

var sha256Prefixed = regexp.MustCompile(`^sha256=[0-9a-f]{64}$`)

// hashString returns "sha256=<64-hex>" for s, unless s is already in that
// exact form, in which case it is returned unchanged. This is what makes
// every redaction helper below idempotent.
func hashString(s string) string {
	if sha256Prefixed.MatchString(s) {
		return s
	}
	sum := sha256.Sum256([]byte(s))
	return "sha256=" + hex.EncodeToString(sum[:])
}

// Redact is the generic string redactor: a no-op under Public, and
// hash-unless-already-hashed under Private. Use the more specific helpers
// below wherever bespoke allowlist behavior is needed.
func Redact(mode Mode, s string) string {
	if mode == Public || s == "" {
		return s
	}
	return hashString(s)
}

// RedactLogName redacts a display name destined for a progress log line.
// Under private mode, the raw name must never be printed.
func RedactLogName(mode Mode, displayName string) string {
	return Redact(mode, displayName)
}

// DisplayNameFor returns the report's display_name field: the original name
// under Public, or "workbook-<16-hex>.<ext>" (content-addressed, so it's
// stable across runs and never compounds) under Private.
func DisplayNameFor(mode Mode, originalName string, sha256Hex string) string {
	if mode == Public {
		return originalName
	}
	ext := extensionOf(originalName)
	prefix := sha256Hex
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	return "workbook-" + prefix + ext
}

func extensionOf(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".xlsx", ".xlsm", ".xlsb"} {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ".xlsx"
}

// allowedRunURLHosts: exact "github.com" or any ".github.com" suffix host.
func allowedRunURLHost(host string) bool {
	host = strings.ToLower(host)
	return host == "github.com" || strings.HasSuffix(host, ".github.com")
}

// RedactRunURL implements the run_url allowlist rule: hosts not on the
// allowlist are replaced by a hash of the *full* URL string.
func RedactRunURL(mode Mode, rawURL string) string {
	if mode == Public || rawURL == "" {
		return rawURL
	}
	if sha256Prefixed.MatchString(rawURL) {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err == nil && allowedRunURLHost(u.Hostname()) {
		return rawURL
	}
	return hashString(rawURL)
}

// knownSchemePrefixes allowlists well-known OOXML/Office relationship type
// URIs and XML namespaces: these are preserved verbatim, everything else is
// hashed.
var knownSchemePrefixes = []string{
	"http://schemas.openxmlformats.org/",
	"http://schemas.microsoft.com/office/",
	"http://purl.org/dc/",
	"http://www.w3.org/",
	"application/vnd.openxmlformats-",
	"application/vnd.ms-excel",
	"application/xml",
	"application/vnd.openxmlformats-package.relationships+xml",
}

// RedactScheme preserves well-known relationship types / XML namespaces and
// hashes everything else.
func RedactScheme(mode Mode, uri string) string {
	if mode == Public || uri == "" {
		return uri
	}
	for _, p := range knownSchemePrefixes {
		if strings.HasPrefix(uri, p) {
			return uri
		}
	}
	return hashString(uri)
}

// FunctionCatalog is an allowlist of known spreadsheet function names
// consulted by RedactFunctionName.
type FunctionCatalog interface {
	Known(name string) bool
}

// MapCatalog is the simplest FunctionCatalog implementation: a static set.
type MapCatalog map[string]struct{}

func (m MapCatalog) Known(name string) bool {
	_, ok := m[strings.ToUpper(name)]
	return ok
}

// NewMapCatalog builds a MapCatalog from a list of function names.
func NewMapCatalog(names ...string) MapCatalog {
	m := make(MapCatalog, len(names))
	for _, n := range names {
		m[strings.ToUpper(n)] = struct{}{}
	}
	return m
}

var allLowercase = regexp.MustCompile(`^[a-z][a-z0-9_.]*$`)

// RedactFunctionName implements the function-name token rule: names in the
// catalog, or all-lowercase "category-like" tokens, survive unchanged;
// everything else (e.g. "CORP.ADDIN.FOO") is hashed.
func RedactFunctionName(mode Mode, name string, catalog FunctionCatalog) string {
	if mode == Public || name == "" {
		return name
	}
	if catalog != nil && catalog.Known(name) {
		return name
	}
	if allLowercase.MatchString(name) {
		return name
	}
	return hashString(name)
}
