package readers

import (
	"archive/zip"
	"io"
	"os"
)

type zipSource struct {
	path string
	fh   *os.File
	zr   *zip.Reader
	next int
}

type zipEntry struct {
	f *zip.File
}

func newZipSource(path string, fh *os.File) (*zipSource, error) {
	fi, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	// zip requires random access; the central directory sits at the end
	zr, err := zip.NewReader(fh, fi.Size())
	if err != nil {
		return nil, err
	}
	return &zipSource{path: path, fh: fh, zr: zr}, nil
}

func (s *zipSource) Next() (Entry, error) {
	if s.next >= len(s.zr.File) {
		return nil, io.EOF
	}
	f := s.zr.File[s.next]
	s.next++
	return &zipEntry{f: f}, nil
}

func (s *zipSource) Close() error {
	return s.fh.Close()
}

func (e *zipEntry) Name() string { return e.f.Name }

func (e *zipEntry) IsDir() bool { return e.f.FileInfo().IsDir() }

func (e *zipEntry) Size() int64 { return int64(e.f.UncompressedSize64) }

func (e *zipEntry) Open() (io.ReadCloser, error) { return e.f.Open() }
