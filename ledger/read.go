package ledger

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// ReadAll returns a restartable traversal over all records, ordered by
// sequence. Each call opens a fresh read handle and starts from the
// beginning, so traversals are independent of each other and of
// concurrent appends.
//
// A corrupt line yields nothing and is logged as a data-integrity
// warning; an I/O failure is yielded as the final error.
func (l *Ledger) ReadAll() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, err := l.fsys.OpenFile(l.path, os.O_RDONLY, 0)
		if err != nil {
			yield(Record{}, fmt.Errorf("failed to open ledger for reading: %w", err))
			return
		}
		defer f.Close()

		reader := bufio.NewReader(f)
		for {
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				yield(Record{}, fmt.Errorf("failed to read ledger: %w", err))
				return
			}

			if strings.HasSuffix(line, "\n") {
				var rec Record
				if uerr := l.codec.Unmarshal([]byte(strings.TrimSuffix(line, "\n")), &rec); uerr != nil {
					l.logger.Warn("skipping corrupt ledger line", "error", uerr)
				} else if !yield(rec, nil) {
					return
				}
			}
			// An unterminated tail is a torn record; never surface it.

			if err == io.EOF {
				return
			}
		}
	}
}

// Tail returns the last n records in sequence order. Useful for
// rendering recent attendance without traversing the whole log.
func (l *Ledger) Tail(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}

	ring := make([]Record, 0, n)
	for rec, err := range l.ReadAll() {
		if err != nil {
			return nil, err
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, rec)
	}

	return ring, nil
}
