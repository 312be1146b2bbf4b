// Package readers provides entry sources over the supported archive
// container formats (zip, tar, tar.gz, tar.lz4). A Source is a lazy,
// single-pass iterator over the entries of one archive; re-iterating
// requires reopening.
package readers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Supported archive types (file extensions)
const (
	ExtZip    = ".zip"
	ExtTar    = ".tar"
	ExtTgz    = ".tgz"
	ExtTarGz  = ".tar.gz"
	ExtTarLz4 = ".tar.lz4"
)

// FileExtensions lists every container extension Open understands
var FileExtensions = []string{ExtZip, ExtTar, ExtTgz, ExtTarGz, ExtTarLz4}

// ErrUnknownFormat is returned when a path carries none of the supported
// archive extensions
var ErrUnknownFormat = errors.New("unknown archive format")

// Entry is one named item inside an archive. Open must be called (and the
// returned reader fully consumed) before the source advances to the next
// entry; tar-family sources share the underlying stream between entries.
type Entry interface {
	Name() string
	IsDir() bool
	Size() int64
	Open() (io.ReadCloser, error)
}

// Source iterates over the entries of one archive in the archive's native
// order. Next returns io.EOF after the last entry.
type Source interface {
	Next() (Entry, error)
	Close() error
}

// OpenError reports an archive container that could not be opened or whose
// header could not be decoded.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("error opening archive %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// EntryError reports an entry whose metadata could not be decoded while
// iterating the archive.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("error reading archive %s: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Open opens the archive at path, selecting the container format by
// extension.
func Open(path string) (Source, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	var src Source
	switch {
	case strings.HasSuffix(path, ExtZip):
		src, err = newZipSource(path, fh)
	case strings.HasSuffix(path, ExtTgz), strings.HasSuffix(path, ExtTarGz):
		src, err = newTgzSource(path, fh)
	case strings.HasSuffix(path, ExtTarLz4):
		src, err = newTarLz4Source(path, fh)
	case strings.HasSuffix(path, ExtTar):
		src, err = newTarSource(path, fh)
	default:
		err = ErrUnknownFormat
	}
	if err != nil {
		fh.Close()
		return nil, &OpenError{Path: path, Err: err}
	}
	return src, nil
}
