package sinks

import (
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// entryRow defines the output schema. Field order is the column order:
// name, source, body, hash.
type entryRow struct {
	Name   string  `parquet:"name"`
	Source *string `parquet:"source,optional"`
	Body   []byte  `parquet:"body,optional"`
	Hash   *string `parquet:"hash,optional"`
}

// ParquetSink writes batches as parquet row groups to a Destination. It is
// not safe for concurrent use; the batcher is its only caller.
type ParquetSink struct {
	dest    Destination
	writer  *parquet.GenericWriter[entryRow]
	rows    []entryRow // scratch, reused between Append calls
	closed  bool
	aborted bool
}

// NewParquet creates a parquet sink over dest using the named compression
// codec (snappy, zstd, gzip, lz4, none).
func NewParquet(dest Destination, compression string) *ParquetSink {
	var writer *parquet.GenericWriter[entryRow]
	switch compression {
	case "zstd":
		writer = parquet.NewGenericWriter[entryRow](dest, parquet.Compression(&parquet.Zstd))
	case "gzip":
		writer = parquet.NewGenericWriter[entryRow](dest, parquet.Compression(&parquet.Gzip))
	case "lz4":
		writer = parquet.NewGenericWriter[entryRow](dest, parquet.Compression(&parquet.Lz4Raw))
	case "none":
		writer = parquet.NewGenericWriter[entryRow](dest, parquet.Compression(&parquet.Uncompressed))
	default:
		// Snappy is the parquet standard default
		writer = parquet.NewGenericWriter[entryRow](dest, parquet.Compression(&parquet.Snappy))
	}
	return &ParquetSink{dest: dest, writer: writer}
}

// Append writes one batch and closes the row group so each batch maps to
// exactly one parquet row group.
func (s *ParquetSink) Append(batch *Batch) error {
	if err := batch.validate(); err != nil {
		return err
	}

	s.rows = s.rows[:0]
	for i := range batch.Names {
		s.rows = append(s.rows, entryRow{
			Name:   batch.Names[i],
			Source: batch.Sources[i],
			Body:   batch.Bodies[i],
			Hash:   batch.Hashes[i],
		})
	}

	if _, err := s.writer.Write(s.rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush parquet row group: %w", err)
	}
	return nil
}

// Close writes the parquet footer and finalizes the destination.
func (s *ParquetSink) Close() error {
	if s.closed || s.aborted {
		return nil
	}
	s.closed = true
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return s.dest.Finalize()
}

// Abort discards the partially written artifact. Idempotent; a no-op after
// a successful Close.
func (s *ParquetSink) Abort() {
	if s.closed || s.aborted {
		return
	}
	s.aborted = true
	s.dest.Discard()
}
