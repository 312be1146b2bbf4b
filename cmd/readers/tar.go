package readers

import (
	"archive/tar"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

type tarSource struct {
	path   string
	fh     *os.File
	tr     *tar.Reader
	closer io.Closer // decompressor, when present
}

type tarEntry struct {
	hdr *tar.Header
	tr  *tar.Reader
}

func newTarSource(path string, fh *os.File) (*tarSource, error) {
	return &tarSource{path: path, fh: fh, tr: tar.NewReader(fh)}, nil
}

func newTgzSource(path string, fh *os.File) (*tarSource, error) {
	gzr, err := gzip.NewReader(fh)
	if err != nil {
		return nil, err
	}
	return &tarSource{path: path, fh: fh, tr: tar.NewReader(gzr), closer: gzr}, nil
}

func newTarLz4Source(path string, fh *os.File) (*tarSource, error) {
	lzr := lz4.NewReader(fh)
	return &tarSource{path: path, fh: fh, tr: tar.NewReader(lzr)}, nil
}

func (s *tarSource) Next() (Entry, error) {
	hdr, err := s.tr.Next()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &EntryError{Path: s.path, Err: err}
	}
	return &tarEntry{hdr: hdr, tr: s.tr}, nil
}

func (s *tarSource) Close() error {
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			s.fh.Close()
			return err
		}
	}
	return s.fh.Close()
}

func (e *tarEntry) Name() string { return e.hdr.Name }

func (e *tarEntry) IsDir() bool { return e.hdr.Typeflag == tar.TypeDir }

func (e *tarEntry) Size() int64 { return e.hdr.Size }

// Open returns a reader over the current entry's bytes. The reader is only
// valid until the source advances to the next entry.
func (e *tarEntry) Open() (io.ReadCloser, error) {
	return io.NopCloser(io.LimitReader(e.tr, e.hdr.Size)), nil
}
