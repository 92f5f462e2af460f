// Package corpusio loads workbook fixtures from a corpus directory,
// transparently decoding base64-text fixtures and decrypting authenticated
// fixtures before any OPC parsing sees them.
package corpusio

import (
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opctriage/corpus/internal/collab"
)

// WorkbookInput is a workbook's bytes plus a stable display name that never
// carries local filesystem path information beyond the file's own name.
type WorkbookInput struct {
	DisplayName string
	Data        []byte
}

// ReadOptions configures Read's decoding/decryption behavior.
type ReadOptions struct {
	Encryptor collab.AuthenticatedEncryptor
	Key       []byte // required only when the input ends in .enc
}

// Read loads one workbook fixture from path, stripping a trailing ".b64"
// (base64-decoding the contents) or ".enc" (decrypting via opts.Encryptor)
// suffix as needed. Raw .xlsx/.xlsm/.xlsb files pass through unchanged.
func Read(path string, opts ReadOptions) (WorkbookInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return WorkbookInput{}, fmt.Errorf("corpusio: read %s: %w", path, err)
	}

	data := raw
	displayName := filepath.Base(path)

	if strings.HasSuffix(strings.ToLower(displayName), ".b64") {
		decoded, err := decodeBase64(data)
		if err != nil {
			return WorkbookInput{}, fmt.Errorf("corpusio: decode base64 %s: %w", path, err)
		}
		data = decoded
		displayName = displayName[:len(displayName)-len(".b64")]
	}

	if strings.HasSuffix(strings.ToLower(displayName), ".enc") {
		if opts.Encryptor == nil || opts.Key == nil {
			return WorkbookInput{}, fmt.Errorf("corpusio: %s looks encrypted but no encryptor/key was provided", path)
		}
		plain, err := opts.Encryptor.Decrypt(data, opts.Key)
		if err != nil {
			return WorkbookInput{}, fmt.Errorf("corpusio: decrypt %s: %w", path, err)
		}
		data = plain
		displayName = displayName[:len(displayName)-len(".enc")]
	}

	return WorkbookInput{DisplayName: displayName, Data: data}, nil
}

// decodeBase64 tolerates fixtures that were base64-encoded with embedded
// newlines (e.g. via `base64` with default line wrapping) by stripping all
// whitespace before the strict decode.
func decodeBase64(text []byte) ([]byte, error) {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range string(text) {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return base64.StdEncoding.DecodeString(b.String())
}

// IterPaths walks corpusDir and returns candidate workbook paths in sorted
// order: .xlsx/.xlsm (plus their .b64/.enc variants) by default, with .xlsb
// variants included when includeXLSB is set.
func IterPaths(corpusDir string, includeXLSB bool) ([]string, error) {
	endings := []string{".xlsx", ".xlsm", ".xlsx.b64", ".xlsm.b64", ".xlsx.enc", ".xlsm.enc"}
	if includeXLSB {
		endings = append(endings, ".xlsb", ".xlsb.b64", ".xlsb.enc")
	}

	var out []string
	err := filepath.WalkDir(corpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		lower := strings.ToLower(d.Name())
		for _, e := range endings {
			if strings.HasSuffix(lower, e) {
				out = append(out, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpusio: walk %s: %w", corpusDir, err)
	}
	sort.Strings(out)
	return out, nil
}
