package ledger

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/facegate/codec"
	"github.com/hupe1980/facegate/internal/fs"
)

// ErrNotEmpty is returned by Restore when the target file already
// holds data. Restoring over an existing ledger would rewrite history.
var ErrNotEmpty = errors.New("ledger file is not empty")

// Restore writes records verbatim to a fresh ledger file at path,
// preserving their original sequence numbers. It is the inverse of a
// backup: records must be strictly increasing in sequence, and the
// target must be empty.
func Restore(path string, records []Record, optFns ...func(o *Options)) error {
	opts := Options{
		Codec: codec.Default,
		FS:    fs.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var prev uint64
	for _, rec := range records {
		if rec.Sequence <= prev {
			return fmt.Errorf("records out of order: sequence %d after %d", rec.Sequence, prev)
		}
		prev = rec.Sequence
	}

	f, err := opts.FS.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer f.Close()

	if st, err := f.Stat(); err != nil {
		return err
	} else if st.Size() > 0 {
		return ErrNotEmpty
	}

	for _, rec := range records {
		data, err := opts.Codec.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %d: %w", rec.Sequence, err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write record %d: %w", rec.Sequence, err)
		}
	}

	return f.Sync()
}
