package sinks

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func strPtr(s string) *string { return &s }

func sampleBatch() *Batch {
	return &Batch{
		Names:   []string{"a.txt", "b.bin", "c.log"},
		Sources: []*string{strPtr("one.zip"), strPtr("one.zip"), nil},
		Bodies:  [][]byte{[]byte("hello"), []byte{0x00, 0x01}, nil},
		Hashes:  []*string{strPtr("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"), nil, nil},
	}
}

func TestParquetSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.parquet")

	dest, err := NewFileDestination(path)
	if err != nil {
		t.Fatal(err)
	}
	sink := NewParquet(dest, "snappy")

	if err := sink.Append(sampleBatch()); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(&Batch{
		Names:   []string{"d.txt", "e.txt"},
		Sources: []*string{strPtr("two.zip"), strPtr("two.zip")},
		Bodies:  [][]byte{[]byte("x"), []byte("y")},
		Hashes:  []*string{nil, nil},
	}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := parquet.ReadFile[entryRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}

	// First batch round-trips values and nulls exactly
	if rows[0].Name != "a.txt" {
		t.Fatalf("expected name a.txt, got %s", rows[0].Name)
	}
	if rows[0].Source == nil || *rows[0].Source != "one.zip" {
		t.Fatal("expected source one.zip")
	}
	if string(rows[0].Body) != "hello" {
		t.Fatalf("expected body 'hello', got %q", rows[0].Body)
	}
	if rows[0].Hash == nil || len(*rows[0].Hash) != 64 {
		t.Fatal("expected a 64-char hash")
	}
	if rows[1].Hash != nil {
		t.Fatal("expected null hash for row 1")
	}
	if rows[2].Source != nil || rows[2].Body != nil || rows[2].Hash != nil {
		t.Fatal("expected all optional columns null for row 2")
	}
}

func TestParquetSinkRowGroups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.parquet")

	dest, err := NewFileDestination(path)
	if err != nil {
		t.Fatal(err)
	}
	sink := NewParquet(dest, "snappy")

	for i := 0; i < 3; i++ {
		if err := sink.Append(sampleBatch()); err != nil {
			t.Fatal(err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	fh, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fh.Close()
	fi, err := fh.Stat()
	if err != nil {
		t.Fatal(err)
	}
	pf, err := parquet.OpenFile(fh, fi.Size())
	if err != nil {
		t.Fatal(err)
	}

	// One row group per appended batch
	if groups := len(pf.RowGroups()); groups != 3 {
		t.Fatalf("expected 3 row groups, got %d", groups)
	}

	// Column order is part of the format contract
	fields := pf.Schema().Fields()
	expected := []string{"name", "source", "body", "hash"}
	if len(fields) != len(expected) {
		t.Fatalf("expected %d columns, got %d", len(expected), len(fields))
	}
	for i, name := range expected {
		if fields[i].Name() != name {
			t.Fatalf("expected column %d to be %s, got %s", i, name, fields[i].Name())
		}
	}
}

func TestParquetSinkCompressionCodecs(t *testing.T) {
	for _, codec := range []string{"snappy", "zstd", "gzip", "lz4", "none"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.parquet")
			dest, err := NewFileDestination(path)
			if err != nil {
				t.Fatal(err)
			}
			sink := NewParquet(dest, codec)

			if err := sink.Append(sampleBatch()); err != nil {
				t.Fatal(err)
			}
			if err := sink.Close(); err != nil {
				t.Fatal(err)
			}

			rows, err := parquet.ReadFile[entryRow](path)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != 3 {
				t.Fatalf("expected 3 rows, got %d", len(rows))
			}
		})
	}
}

func TestParquetSinkAbort(t *testing.T) {
	t.Run("DeletesPartialFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.parquet")
		dest, err := NewFileDestination(path)
		if err != nil {
			t.Fatal(err)
		}
		sink := NewParquet(dest, "snappy")

		if err := sink.Append(sampleBatch()); err != nil {
			t.Fatal(err)
		}
		sink.Abort()

		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatal("aborted output file should not exist")
		}

		// Idempotent
		sink.Abort()
	})

	t.Run("NoOpAfterClose", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.parquet")
		dest, err := NewFileDestination(path)
		if err != nil {
			t.Fatal(err)
		}
		sink := NewParquet(dest, "snappy")

		if err := sink.Append(sampleBatch()); err != nil {
			t.Fatal(err)
		}
		if err := sink.Close(); err != nil {
			t.Fatal(err)
		}
		sink.Abort()

		if _, err := os.Stat(path); err != nil {
			t.Fatal("finalized output must survive a late Abort")
		}
	})
}

func TestParquetSinkRaggedBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	dest, err := NewFileDestination(path)
	if err != nil {
		t.Fatal(err)
	}
	sink := NewParquet(dest, "snappy")
	defer sink.Abort()

	err = sink.Append(&Batch{
		Names:   []string{"a", "b"},
		Sources: []*string{nil},
		Bodies:  [][]byte{nil, nil},
		Hashes:  []*string{nil, nil},
	})
	if !errors.Is(err, ErrRaggedBatch) {
		t.Fatalf("expected ErrRaggedBatch, got %v", err)
	}
}

func TestStreamDestination(t *testing.T) {
	var buf bytes.Buffer
	sink := NewParquet(NewStreamDestination(&buf), "snappy")

	if err := sink.Append(sampleBatch()); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := parquet.Read[entryRow](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows on the stream, got %d", len(rows))
	}
}
