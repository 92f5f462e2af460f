package fixture

import (
	"archive/zip"
	"io"
	"strings"
)

// Storage is where a built workbook's parts land. The engine only ever
// builds in-memory fixtures for its own test suite, so the only
// implementation needed is the ZIP one — no on-disk debug dump, unlike a
// library meant for external callers to inspect failures with.
type Storage interface {
	WriteBlob(path string, blob []byte) error
}

// ZipStorage accumulates parts into a standard OPC/.xlsx archive.
type ZipStorage struct {
	z *zip.Writer
}

// NewZipStorage wraps out as a Storage that writes a ZIP archive.
func NewZipStorage(out io.Writer) *ZipStorage {
	return &ZipStorage{z: zip.NewWriter(out)}
}

// WriteBlob adds blob as a ZIP entry named path (leading slash stripped).
func (zs *ZipStorage) WriteBlob(path string, blob []byte) error {
	f, err := zs.z.Create(strings.TrimPrefix(path, "/"))
	if err != nil {
		return err
	}
	_, err = f.Write(blob)
	return err
}

// Close finalizes the archive; the returned bytes are invalid until this
// has been called.
func (zs *ZipStorage) Close() {
	zs.z.Close()
}
