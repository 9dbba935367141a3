package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/facegate/codec"
	"github.com/hupe1980/facegate/internal/fs"
)

var (
	// ErrEmptyIdentity is returned when an identity is empty or whitespace.
	ErrEmptyIdentity = errors.New("identity must not be empty")

	// ErrDuplicateWithinWindow is returned when the identity already has
	// a record within the duplicate-suppression window. It is a defined
	// policy outcome, not a failure: the ledger is unchanged.
	ErrDuplicateWithinWindow = errors.New("duplicate attendance within suppression window")

	// ErrClosed is returned when operating on a closed ledger.
	ErrClosed = errors.New("ledger is closed")
)

// Record is one immutable attendance event.
//
// Records are totally ordered by Sequence, and that order is the
// append order: strictly increasing, no gaps.
type Record struct {
	Sequence  uint64    `json:"sequence"`
	Identity  string    `json:"identity"`
	Timestamp time.Time `json:"timestamp"`
}

// DurabilityMode defines the fsync behavior for ledger appends.
type DurabilityMode int

const (
	// DurabilitySync fsyncs after every append. Slowest but an
	// acknowledged record survives a crash. Default: attendance volume
	// is low and the ledger is the audit trail.
	DurabilitySync DurabilityMode = iota

	// DurabilityAsync skips fsync. An acknowledged record may be lost
	// on power failure, but a torn record is still never visible after
	// reopen.
	DurabilityAsync
)

// DefaultDuplicateWindow is the default minimum interval between two
// records for the same identity. It absorbs retried capture attempts
// from a single physical presence.
const DefaultDuplicateWindow = 60 * time.Second

// Options contains configuration for the Ledger.
type Options struct {
	// DuplicateWindow is the minimum interval between two records for
	// the same identity. Zero disables duplicate suppression.
	DuplicateWindow time.Duration

	// Durability controls fsync behavior (Sync default).
	Durability DurabilityMode

	// Codec encodes records, one per line. Defaults to codec.Default;
	// the default JSON keeps the log greppable.
	Codec codec.Codec

	// Logger receives data-integrity warnings.
	Logger *slog.Logger

	// FS is the file system used for the log file.
	FS fs.FileSystem
}

// Ledger is an append-only, durable attendance log.
//
// The file holds one encoded record per line. Appends are
// all-or-nothing: a record is written in a single write call, and a
// torn tail left by a crash is discarded on the next open before any
// reader can observe it.
type Ledger struct {
	mu       sync.Mutex
	file     fs.File
	closed   bool
	size     int64
	seq      uint64
	count    int
	lastSeen map[string]time.Time

	path       string
	window     time.Duration
	durability DurabilityMode
	codec      codec.Codec
	logger     *slog.Logger
	fsys       fs.FileSystem
}

// Open opens (or creates) the attendance ledger at path.
//
// Existing records are scanned to restore the sequence counter and
// the per-identity duplicate-suppression state. A partially written
// trailing record is truncated away with a warning; a corrupt
// interior line is skipped with a warning but left in the file, since
// the ledger never rewrites prior entries.
func Open(path string, optFns ...func(o *Options)) (*Ledger, error) {
	opts := Options{
		DuplicateWindow: DefaultDuplicateWindow,
		Durability:      DurabilitySync,
		Codec:           codec.Default,
		Logger:          slog.New(slog.DiscardHandler),
		FS:              fs.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := opts.FS.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	file, err := opts.FS.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}

	l := &Ledger{
		file:       file,
		lastSeen:   make(map[string]time.Time),
		path:       path,
		window:     opts.DuplicateWindow,
		durability: opts.Durability,
		codec:      opts.Codec,
		logger:     opts.Logger,
		fsys:       opts.FS,
	}

	if err := l.recover(); err != nil {
		_ = file.Close()
		return nil, err
	}

	return l, nil
}

// recover scans the log, restores seq/lastSeen, and discards a torn
// trailing record so it is never visible to readers.
func (l *Ledger) recover() error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek ledger: %w", err)
	}

	var (
		reader   = bufio.NewReader(l.file)
		validEnd int64
		offset   int64
	)

	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to scan ledger: %w", err)
		}

		complete := strings.HasSuffix(line, "\n")
		offset += int64(len(line))

		if !complete {
			if len(line) > 0 {
				l.logger.Warn("discarding torn ledger record", "bytes", len(line))
			}
			break
		}

		// A complete line always came back with a nil read error.
		var rec Record
		if uerr := l.codec.Unmarshal([]byte(strings.TrimSuffix(line, "\n")), &rec); uerr != nil {
			l.logger.Warn("skipping corrupt ledger line", "offset", validEnd, "error", uerr)
			validEnd = offset
			continue
		}

		if rec.Sequence > l.seq {
			l.seq = rec.Sequence
		}
		if last, ok := l.lastSeen[rec.Identity]; !ok || rec.Timestamp.After(last) {
			l.lastSeen[rec.Identity] = rec.Timestamp
		}
		l.count++
		validEnd = offset
	}

	if offset > validEnd {
		if err := l.fsys.Truncate(l.path, validEnd); err != nil {
			return fmt.Errorf("failed to discard torn ledger record: %w", err)
		}
	}
	l.size = validEnd

	if _, err := l.file.Seek(validEnd, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek ledger end: %w", err)
	}

	return nil
}

// Append records an attendance event for identity at ts and assigns
// the next sequence number.
//
// The duplicate check and the physical write happen under one lock,
// so two concurrent logins for the same identity cannot both pass the
// check. The record is written with a single write call followed by
// an fsync (in DurabilitySync mode); on write failure the file is
// truncated back so no record with a sequence number but torn content
// remains, and the sequence counter is not consumed.
func (l *Ledger) Append(identity string, ts time.Time) (Record, error) {
	if strings.TrimSpace(identity) == "" {
		return Record{}, ErrEmptyIdentity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Record{}, ErrClosed
	}

	if l.window > 0 {
		if last, ok := l.lastSeen[identity]; ok {
			delta := ts.Sub(last)
			if delta < 0 {
				delta = -delta
			}
			if delta < l.window {
				return Record{}, fmt.Errorf("%w: identity %q recorded %s ago", ErrDuplicateWithinWindow, identity, delta)
			}
		}
	}

	rec := Record{
		Sequence:  l.seq + 1,
		Identity:  identity,
		Timestamp: ts,
	}

	data, err := l.codec.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode attendance record: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		// Roll back any partial write so the sequence stays gapless.
		_ = l.fsys.Truncate(l.path, l.size)
		_, _ = l.file.Seek(l.size, io.SeekStart)
		return Record{}, fmt.Errorf("failed to append attendance record: %w", err)
	}

	if l.durability == DurabilitySync {
		if err := l.file.Sync(); err != nil {
			// Roll back the unacknowledged record; its durability is unknown.
			_ = l.fsys.Truncate(l.path, l.size)
			_, _ = l.file.Seek(l.size, io.SeekStart)
			return Record{}, fmt.Errorf("failed to sync attendance record: %w", err)
		}
	}

	l.size += int64(len(data))
	l.seq = rec.Sequence
	l.count++
	l.lastSeen[identity] = ts

	return rec, nil
}

// Len returns the number of records visible to readers.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// LastSequence returns the highest assigned sequence number, zero when
// the ledger is empty.
func (l *Ledger) LastSequence() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// DuplicateWindow returns the configured suppression window.
func (l *Ledger) DuplicateWindow() time.Duration { return l.window }

// Close syncs and closes the log file.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}
