package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func openTestLedger(t *testing.T, dir string, optFns ...func(o *Options)) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(dir, "attendance.log"), optFns...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppendAssignsSequence(t *testing.T) {
	l := openTestLedger(t, t.TempDir())

	r1, err := l.Append("A123", t0)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	r2, err := l.Append("B456", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if r1.Sequence != 1 || r2.Sequence != 2 {
		t.Errorf("expected sequences 1,2; got %d,%d", r1.Sequence, r2.Sequence)
	}
	if l.Len() != 2 {
		t.Errorf("expected 2 records, got %d", l.Len())
	}
	if l.LastSequence() != 2 {
		t.Errorf("expected last sequence 2, got %d", l.LastSequence())
	}
}

func TestAppendEmptyIdentity(t *testing.T) {
	l := openTestLedger(t, t.TempDir())

	if _, err := l.Append("  ", t0); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("failed append must not add records, got %d", l.Len())
	}
}

func TestDuplicateWindow(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), func(o *Options) {
		o.DuplicateWindow = time.Minute
	})

	if _, err := l.Append("A123", t0); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	// Within the window: suppressed, ledger unchanged.
	_, err := l.Append("A123", t0.Add(30*time.Second))
	if !errors.Is(err, ErrDuplicateWithinWindow) {
		t.Fatalf("expected ErrDuplicateWithinWindow, got %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 record, got %d", l.Len())
	}

	// A different identity is unaffected.
	if _, err := l.Append("B456", t0.Add(time.Second)); err != nil {
		t.Fatalf("unrelated append failed: %v", err)
	}

	// After the window: a new record with a strictly greater sequence.
	rec, err := l.Append("A123", t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("append after window failed: %v", err)
	}
	if rec.Sequence != 3 {
		t.Errorf("expected sequence 3, got %d", rec.Sequence)
	}
}

func TestDuplicateWindowDisabled(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), func(o *Options) {
		o.DuplicateWindow = 0
	})

	for i := range 3 {
		if _, err := l.Append("A123", t0.Add(time.Duration(i))); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}
	if l.Len() != 3 {
		t.Errorf("expected 3 records, got %d", l.Len())
	}
}

func TestSequencesGaplessAcrossIdentities(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), func(o *Options) {
		o.DuplicateWindow = 0
	})

	identities := []string{"a", "b", "a", "c", "b", "a"}
	for i, id := range identities {
		rec, err := l.Append(id, t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if rec.Sequence != uint64(i+1) {
			t.Errorf("expected sequence %d, got %d", i+1, rec.Sequence)
		}
	}
}

func TestReadAllOrderedAndRestartable(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), func(o *Options) {
		o.DuplicateWindow = 0
	})

	for i := range 5 {
		if _, err := l.Append("A123", t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	// Two traversals, each starting from the beginning.
	for pass := range 2 {
		var seqs []uint64
		for rec, err := range l.ReadAll() {
			if err != nil {
				t.Fatalf("pass %d: read failed: %v", pass, err)
			}
			seqs = append(seqs, rec.Sequence)
		}
		if len(seqs) != 5 {
			t.Fatalf("pass %d: expected 5 records, got %d", pass, len(seqs))
		}
		for i, seq := range seqs {
			if seq != uint64(i+1) {
				t.Errorf("pass %d: expected sequence %d, got %d", pass, i+1, seq)
			}
		}
	}
}

func TestReadAllEarlyStop(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), func(o *Options) {
		o.DuplicateWindow = 0
	})
	for i := range 5 {
		if _, err := l.Append("A123", t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	var count int
	for _, err := range l.ReadAll() {
		if err != nil {
			t.Fatal(err)
		}
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("expected early stop after 2, got %d", count)
	}
}

func TestReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()

	l := openTestLedger(t, dir, func(o *Options) { o.DuplicateWindow = 0 })
	if _, err := l.Append("A123", t0); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Append("A123", t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openTestLedger(t, dir, func(o *Options) { o.DuplicateWindow = 0 })
	rec, err := reopened.Append("B456", t0.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Sequence != 3 {
		t.Errorf("expected sequence 3 after reopen, got %d", rec.Sequence)
	}
	if reopened.Len() != 3 {
		t.Errorf("expected 3 records, got %d", reopened.Len())
	}
}

func TestReopenRestoresDuplicateWindow(t *testing.T) {
	dir := t.TempDir()

	l := openTestLedger(t, dir)
	if _, err := l.Append("A123", t0); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	// The suppression state survives a restart.
	reopened := openTestLedger(t, dir)
	if reopened.DuplicateWindow() != DefaultDuplicateWindow {
		t.Fatalf("expected default window, got %v", reopened.DuplicateWindow())
	}
	if _, err := reopened.Append("A123", t0.Add(10*time.Second)); !errors.Is(err, ErrDuplicateWithinWindow) {
		t.Fatalf("expected ErrDuplicateWithinWindow after reopen, got %v", err)
	}
}

func TestTornTrailingRecordDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attendance.log")

	l := openTestLedger(t, dir, func(o *Options) { o.DuplicateWindow = 0 })
	if _, err := l.Append("A123", t0); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash mid-append: a partial record without newline.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"sequence":2,"identity":"B4`); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openTestLedger(t, dir, func(o *Options) { o.DuplicateWindow = 0 })
	if reopened.Len() != 1 {
		t.Fatalf("torn record must not be visible, got %d records", reopened.Len())
	}

	// The next append reuses the space and stays gapless.
	rec, err := reopened.Append("B456", t0.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Sequence != 2 {
		t.Errorf("expected sequence 2, got %d", rec.Sequence)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "B4\"") || strings.Count(string(data), "\n") != 2 {
		t.Errorf("unexpected file content:\n%s", data)
	}
}

func TestCorruptInteriorLineSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attendance.log")

	l := openTestLedger(t, dir, func(o *Options) { o.DuplicateWindow = 0 })
	if _, err := l.Append("A123", t0); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	// Corrupt complete line in the middle of the log.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("garbage line\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openTestLedger(t, dir, func(o *Options) { o.DuplicateWindow = 0 })
	if _, err := reopened.Append("B456", t0.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	var seqs []uint64
	for rec, err := range reopened.ReadAll() {
		if err != nil {
			t.Fatal(err)
		}
		seqs = append(seqs, rec.Sequence)
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Errorf("expected records 1,2 around corrupt line, got %v", seqs)
	}
}

func TestConcurrentAppendsKeepSequencesUnique(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), func(o *Options) {
		o.DuplicateWindow = 0
		o.Durability = DurabilityAsync
	})

	var wg sync.WaitGroup
	const workers, perWorker = 4, 25
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				ts := t0.Add(time.Duration(w*perWorker+i) * time.Second)
				if _, err := l.Append("A123", ts); err != nil {
					t.Errorf("append failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for rec, err := range l.ReadAll() {
		if err != nil {
			t.Fatal(err)
		}
		if seen[rec.Sequence] {
			t.Fatalf("duplicate sequence %d", rec.Sequence)
		}
		seen[rec.Sequence] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d records, got %d", workers*perWorker, len(seen))
	}
	if l.LastSequence() != uint64(workers*perWorker) {
		t.Fatalf("expected gapless top sequence %d, got %d", workers*perWorker, l.LastSequence())
	}
}

func TestTailReturnsLastRecords(t *testing.T) {
	l := openTestLedger(t, t.TempDir(), func(o *Options) { o.DuplicateWindow = 0 })
	for i := range 5 {
		if _, err := l.Append("A123", t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatal(err)
		}
	}

	tail, err := l.Tail(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 2 || tail[0].Sequence != 4 || tail[1].Sequence != 5 {
		t.Errorf("unexpected tail: %+v", tail)
	}
}

func TestAppendAfterClose(t *testing.T) {
	l := openTestLedger(t, t.TempDir())
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Append("A123", t0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attendance.log")

	records := []Record{
		{Sequence: 1, Identity: "A123", Timestamp: t0},
		{Sequence: 2, Identity: "B456", Timestamp: t0.Add(time.Minute)},
	}
	if err := Restore(path, records); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	l := openTestLedger(t, dir)
	if l.Len() != 2 || l.LastSequence() != 2 {
		t.Fatalf("unexpected restored state: len=%d last=%d", l.Len(), l.LastSequence())
	}

	// Restoring again over the populated file must fail.
	if err := Restore(path, records); !errors.Is(err, ErrNotEmpty) {
		t.Fatalf("expected ErrNotEmpty, got %v", err)
	}
}

func TestRestoreRejectsOutOfOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.log")
	records := []Record{
		{Sequence: 2, Identity: "A123", Timestamp: t0},
		{Sequence: 1, Identity: "B456", Timestamp: t0},
	}
	if err := Restore(path, records); err == nil {
		t.Fatal("expected error for out-of-order sequences")
	}
}
