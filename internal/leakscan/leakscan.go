// Package leakscan implements the post-sanitization LeakScanner: a
// regex-based validator that scans every part of a package for patterns
// that should never survive sanitization, plus any caller-supplied
// plaintext literals that are expected to be absent.
package leakscan

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/opctriage/corpus/internal/opc"
	"github.com/opctriage/corpus/internal/xsort"
)

// Finding is a single match: values are hashed, the raw match is never
// returned.
type Finding struct {
	Kind       string
	PartName   string
	MatchSHA256 string
}

var builtinPatterns = map[string]*regexp.Regexp{
	"email":      regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	"url":        regexp.MustCompile(`(?i)\b(?:https?|ftp|file|smb)://[^\s"'<>]+`),
	"aws_key":    regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	"jwt":        regexp.MustCompile(`\b[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\b`),
	"unc_path":   regexp.MustCompile(`\\\\[A-Za-z0-9_.\-]+\\[A-Za-z0-9_.$\-]+(?:\\[^\s"'<>]*)?`),
	"private_ip": regexp.MustCompile(`\b(?:10(?:\.\d{1,3}){3}|192\.168(?:\.\d{1,3}){2}|172\.(?:1[6-9]|2\d|3[0-1])(?:\.\d{1,3}){2})\b`),
}

// Scan runs the built-in patterns plus any caller-supplied expected-absent
// literals over every part in data, returning ok=false if any finding is
// non-empty. Non-well-formed XML never causes a scan failure; patterns are
// applied over raw bytes decoded as UTF-8.
func Scan(data []byte, expectedAbsent []string) (bool, []Finding, error) {
	pkg, err := opc.Open(data)
	if err != nil {
		return false, nil, err
	}

	var findings []Finding
	pkg.Parts(func(name string, blob []byte) {
		text := string(blob)
		for _, kind := range xsort.Keys(builtinPatterns) {
			re := builtinPatterns[kind]
			for _, m := range re.FindAllString(text, -1) {
				findings = append(findings, Finding{Kind: kind, PartName: name, MatchSHA256: hashMatch(m)})
			}
		}
		for _, literal := range expectedAbsent {
			if literal == "" {
				continue
			}
			if containsLiteral(text, literal) {
				findings = append(findings, Finding{Kind: "pii-surfaces", PartName: name, MatchSHA256: hashMatch(literal)})
			}
		}
	})

	return len(findings) == 0, findings, nil
}

func containsLiteral(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, needle)
}

func hashMatch(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
