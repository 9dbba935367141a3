package facegate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hupe1980/facegate/backup"
	"github.com/hupe1980/facegate/ledger"
	"github.com/hupe1980/facegate/template"
)

// Backup writes a compressed bundle of all templates and the full
// attendance log to w.
//
// The template set is a point-in-time snapshot and the ledger
// traversal is a fresh read; concurrent registrations or logins may
// or may not be included, but the bundle is always internally
// consistent.
func (f *Facegate) Backup(ctx context.Context, w io.Writer) error {
	if f.closed.Load() {
		return ErrClosed
	}

	b := &backup.Bundle{
		CreatedAt: f.now().UTC(),
		Dimension: f.store.Dimension(),
		Templates: f.store.Snapshot(),
	}

	for rec, err := range f.ledger.ReadAll() {
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		b.Records = append(b.Records, rec)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return backup.Write(w, b)
}

// BackupTo writes a bundle to the given archive store under name.
func (f *Facegate) BackupTo(ctx context.Context, store backup.Store, name string) error {
	var buf bytes.Buffer
	if err := f.Backup(ctx, &buf); err != nil {
		return err
	}
	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to store backup %q: %w", name, err)
	}

	f.logger.Info("backup stored", "name", name, "bytes", buf.Len())

	return nil
}

// Restore materializes a bundle into dir, which must not hold
// existing facegate state. Open the directory normally afterwards.
func Restore(ctx context.Context, dir string, r io.Reader) error {
	b, err := backup.Read(r)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := template.Restore(filepath.Join(dir, templatesDirName), b.Dimension, b.Templates); err != nil {
		return fmt.Errorf("failed to restore templates: %w", err)
	}
	if err := ledger.Restore(filepath.Join(dir, ledgerFileName), b.Records); err != nil {
		return fmt.Errorf("failed to restore ledger: %w", err)
	}

	return nil
}
