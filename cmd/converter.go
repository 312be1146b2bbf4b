package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/airframesio/archive-columnar/cmd/readers"
	"github.com/airframesio/archive-columnar/cmd/sinks"
	"golang.org/x/sync/errgroup"
)

// Converter runs the extraction pipeline: a fixed pool of archive readers
// feeding a single batcher goroutine through a bounded channel. The batcher
// owns the sink for its entire lifetime; nothing else ever touches the
// output stream.
type Converter struct {
	config   *Config
	logger   *slog.Logger
	reporter Reporter
}

func NewConverter(config *Config, logger *slog.Logger) *Converter {
	return &Converter{
		config:   config,
		logger:   logger,
		reporter: nopReporter{},
	}
}

// SetReporter installs a progress reporter. Reporters receive events from
// multiple goroutines and must be safe for concurrent use.
func (c *Converter) SetReporter(r Reporter) {
	if r == nil {
		r = nopReporter{}
	}
	c.reporter = r
}

// Run expands the input patterns, opens the sink, and drives the pipeline
// to completion. On any failure or cancellation the sink is aborted, which
// for a file destination deletes the partial output.
func (c *Converter) Run(ctx context.Context) error {
	paths, err := expandInputs(c.config.Inputs)
	if err != nil {
		return err
	}
	c.logger.Debug(fmt.Sprintf("Expanded %d input pattern(s) to %d archive(s)", len(c.config.Inputs), len(paths)))
	c.reporter.InputsExpanded(len(paths))

	sink, err := c.openSink()
	if err != nil {
		return err
	}

	if err := c.pipeline(ctx, paths, sink); err != nil {
		sink.Abort()
		return err
	}
	if err := sink.Close(); err != nil {
		sink.Abort()
		return err
	}
	return nil
}

func (c *Converter) openSink() (sinks.Sink, error) {
	switch {
	case c.config.Stdout:
		return sinks.NewParquet(sinks.NewStreamDestination(os.Stdout), c.config.Compression), nil
	case c.config.IsS3Output():
		bucket, key, err := c.config.S3Location()
		if err != nil {
			return nil, err
		}
		dest, err := sinks.NewS3Destination(sinks.S3Options{
			Endpoint:  c.config.S3.Endpoint,
			AccessKey: c.config.S3.AccessKey,
			SecretKey: c.config.S3.SecretKey,
			Region:    c.config.S3.Region,
			Bucket:    bucket,
			Key:       key,
		})
		if err != nil {
			return nil, err
		}
		return sinks.NewParquet(dest, c.config.Compression), nil
	default:
		dest, err := sinks.NewFileDestination(c.config.Output)
		if err != nil {
			return nil, fmt.Errorf("error writing to destination %s: %w", c.config.Output, err)
		}
		return sinks.NewParquet(dest, c.config.Compression), nil
	}
}

// pipeline fans archive tasks out over the worker pool and consumes the
// resulting records on the calling goroutine. Workers share only the record
// channel and the cancellation context.
func (c *Converter) pipeline(ctx context.Context, paths []string, sink sinks.Sink) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Relay capacity equals the row group size, bounding peak memory to
	// roughly one batch regardless of archive count.
	records := make(chan Record, c.config.RowGroupSize)

	var workers errgroup.Group
	workers.SetLimit(c.config.Workers)

	producersDone := make(chan struct{})
	go func() {
		defer close(producersDone)
		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			archivePath := path
			workers.Go(func() error {
				if err := c.readArchive(ctx, archivePath, records); err != nil {
					// Any worker failure winds the whole pipeline down
					cancel(err)
					return err
				}
				return nil
			})
		}
		_ = workers.Wait()
		close(records)
	}()

	err := c.consume(ctx, records, sink)
	if err != nil {
		cancel(err)
	}
	<-producersDone

	if err != nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return nil
}

// readArchive is one archive task: it owns its entry source exclusively and
// processes entries in the archive's native order. Cancellation is checked
// between entries only; an in-flight entry read completes first.
func (c *Converter) readArchive(ctx context.Context, archivePath string, out chan<- Record) error {
	src, err := readers.Open(archivePath)
	if err != nil {
		return err
	}
	defer src.Close()

	c.reporter.ArchiveStarted(archivePath)
	c.logger.Debug(fmt.Sprintf("Reading %s", archivePath))

	for {
		if ctx.Err() != nil {
			// Stop enumerating without draining
			return nil
		}

		entry, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if entry.IsDir() {
			continue
		}
		if !c.matchesFilter(entry.Name()) {
			continue
		}

		rec, err := c.extractEntry(archivePath, entry)
		if err != nil {
			return err
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return nil
		}
	}

	c.reporter.ArchiveFinished(archivePath)
	c.logger.Debug(fmt.Sprintf("Finished reading %s", archivePath))
	return nil
}

// consume is the single-threaded batcher: it accumulates records into
// fresh columnar batches and hands each full batch to the sink. A flush
// that completed before cancellation was observed is never rolled back;
// the abort in Run discards the file handle, not appended row groups.
func (c *Converter) consume(ctx context.Context, records <-chan Record, sink sinks.Sink) error {
	size := c.config.RowGroupSize
	batch := newBatch(size)
	total := 0

	flush := func() error {
		if err := sink.Append(batch); err != nil {
			return fmt.Errorf("error writing to parquet: %w", err)
		}
		c.reporter.GroupFlushed(batch.Len())
		// Fresh arrays per batch; handed-off batches are immutable
		batch = newBatch(size)
		return nil
	}

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				// Channel exhausted: flush the final partial batch
				if batch.Len() > 0 {
					if err := flush(); err != nil {
						return err
					}
				}
				return nil
			}
			appendRecord(batch, rec)
			total++
			c.reporter.RecordExtracted(total)

			if batch.Len() >= size {
				if err := flush(); err != nil {
					return err
				}
				if ctx.Err() != nil {
					return context.Cause(ctx)
				}
			}
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

func newBatch(capacity int) *sinks.Batch {
	return &sinks.Batch{
		Names:   make([]string, 0, capacity),
		Sources: make([]*string, 0, capacity),
		Bodies:  make([][]byte, 0, capacity),
		Hashes:  make([]*string, 0, capacity),
	}
}

func appendRecord(b *sinks.Batch, rec Record) {
	b.Names = append(b.Names, rec.Name)
	b.Sources = append(b.Sources, rec.Source)
	b.Bodies = append(b.Bodies, rec.Body)
	b.Hashes = append(b.Hashes, rec.Hash)
}
