// Package sinks provides the columnar output writers. A Sink appends
// immutable row-group batches to a single output artifact; Abort discards
// whatever was partially written so an interrupted run never leaves a
// half-built file behind.
package sinks

import (
	"errors"
	"fmt"
)

// ErrRaggedBatch is returned when a batch's columns have unequal lengths
var ErrRaggedBatch = errors.New("batch columns have unequal lengths")

// Batch is one row group's worth of records as parallel columns. Nil
// pointers and nil byte slices are nulls in the output, not empty values.
type Batch struct {
	Names   []string
	Sources []*string
	Bodies  [][]byte
	Hashes  []*string
}

// Len returns the number of rows in the batch
func (b *Batch) Len() int { return len(b.Names) }

func (b *Batch) validate() error {
	n := len(b.Names)
	if len(b.Sources) != n || len(b.Bodies) != n || len(b.Hashes) != n {
		return fmt.Errorf("%w: name=%d source=%d body=%d hash=%d",
			ErrRaggedBatch, n, len(b.Sources), len(b.Bodies), len(b.Hashes))
	}
	return nil
}

// Sink is the columnar output writer. Append and Close may fail; Abort is
// best-effort, never fails, and is safe to call more than once (including
// after a failed Close).
type Sink interface {
	// Append writes one batch as a row group. The batch must not be
	// mutated afterwards.
	Append(batch *Batch) error

	// Close finalizes and flushes the artifact.
	Close() error

	// Abort discards any partially written artifact.
	Abort()
}
