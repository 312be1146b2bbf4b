package sinks

import (
	"bufio"
	"io"
	"os"
)

// Destination is where the finished artifact lands. Finalize makes the
// artifact durable; Discard is the abort path and removes whatever partial
// artifact exists.
type Destination interface {
	io.Writer
	Finalize() error
	Discard()
}

// FileDestination writes the artifact to a local file. Discard closes and
// deletes the file, so an aborted run leaves no output path at all.
type FileDestination struct {
	path string
	fh   *os.File
	buf  *bufio.Writer
}

func NewFileDestination(path string) (*FileDestination, error) {
	fh, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FileDestination{path: path, fh: fh, buf: bufio.NewWriter(fh)}, nil
}

func (d *FileDestination) Write(p []byte) (int, error) { return d.buf.Write(p) }

func (d *FileDestination) Finalize() error {
	if err := d.buf.Flush(); err != nil {
		d.fh.Close()
		return err
	}
	if err := d.fh.Sync(); err != nil {
		d.fh.Close()
		return err
	}
	return d.fh.Close()
}

func (d *FileDestination) Discard() {
	_ = d.fh.Close()
	_ = os.Remove(d.path)
}

// Path returns the output path the destination writes to
func (d *FileDestination) Path() string { return d.path }

// StreamDestination writes the artifact to a non-seekable stream such as
// stdout. There is nothing to delete on abort; the truncated stream is not
// a recoverable parquet file.
type StreamDestination struct {
	buf *bufio.Writer
}

func NewStreamDestination(w io.Writer) *StreamDestination {
	return &StreamDestination{buf: bufio.NewWriter(w)}
}

func (d *StreamDestination) Write(p []byte) (int, error) { return d.buf.Write(p) }

func (d *StreamDestination) Finalize() error { return d.buf.Flush() }

func (d *StreamDestination) Discard() {}
