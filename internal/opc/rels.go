package opc

import "strings"

// Relationship is a single entry from a *.rels part.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string // "Internal" (default) or "External"
}

// IsExternal reports whether the relationship points outside the package.
func (r Relationship) IsExternal() bool { return r.TargetMode == "External" }

// RelsBaseDir returns the directory used to resolve a Relationship@Target
// found in relsPartName: for "X/_rels/Y.rels" the base is "X/"; for the root
// "_rels/.rels" the base is "".
func RelsBaseDir(relsPartName string) string {
	trimmed := strings.TrimSuffix(relsPartName, ".rels")

	segments := strings.Split(trimmed, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "_rels" || seg == "" {
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return ""
	}
	// Drop the source part's own filename, keeping only its directory.
	dir := strings.Join(out[:len(out)-1], "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}

// ResolveRelTarget resolves a Relationship@Target against the owning rels
// part, tolerating non-standard forms (backslashes, embedded "..", leading
// slash, fragment).
func ResolveRelTarget(relsPartName, target string) (string, error) {
	target = strings.ReplaceAll(target, "\\", "/")
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}
	if strings.HasPrefix(target, "/") {
		return CanonicalName(target)
	}
	base := RelsBaseDir(relsPartName)
	return CanonicalName(base + target)
}
