package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"

	"github.com/airframesio/archive-columnar/cmd/readers"
)

// Record is the extracted representation of one archive entry, destined
// for one output row. Nil Source/Body/Hash become nulls in the output,
// never empty values.
type Record struct {
	Name   string
	Source *string
	Body   []byte
	Hash   *string
}

// EntryReadError reports an entry whose content could not be read. It is
// fatal to the whole run: a truncated or corrupt entry makes the entire
// archive suspect, so the entry is neither retried nor skipped.
type EntryReadError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *EntryReadError) Error() string {
	return fmt.Sprintf("error reading entry %s from archive %s: %v", e.Entry, e.Archive, e.Err)
}

func (e *EntryReadError) Unwrap() error { return e.Err }

// matchesFilter applies the optional entry filter. An empty filter matches
// everything. The pattern was validated in Config.Validate, so a match
// error cannot occur here.
func (c *Converter) matchesFilter(name string) bool {
	if c.config.Filter == "" {
		return true
	}
	matched, _ := path.Match(c.config.Filter, name)
	return matched
}

// extractEntry materializes one entry into a Record according to the
// column toggles. When both body and hash are disabled the entry content
// is never read at all.
func (c *Converter) extractEntry(archivePath string, entry readers.Entry) (Record, error) {
	rec := Record{Name: entry.Name()}

	if !c.config.NoSource {
		// The archive path exactly as expanded, not canonicalized
		source := archivePath
		rec.Source = &source
	}

	if c.config.NoBody && c.config.NoHash {
		return rec, nil
	}

	rc, err := entry.Open()
	if err != nil {
		return Record{}, &EntryReadError{Archive: archivePath, Entry: entry.Name(), Err: err}
	}
	body, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return Record{}, &EntryReadError{Archive: archivePath, Entry: entry.Name(), Err: err}
	}

	if !c.config.NoHash {
		sum := sha256.Sum256(body)
		hash := hex.EncodeToString(sum[:])
		rec.Hash = &hash
	}
	if !c.config.NoBody {
		rec.Body = body
	}
	return rec, nil
}
