package facegate

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facegate/backup"
	"github.com/hupe1980/facegate/embedding"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	f := openTestGate(t, t.TempDir())
	_, err := f.Register(ctx, "A123", embedding.Embedding{1, 0})
	require.NoError(t, err)
	_, err = f.Register(ctx, "B456", embedding.Embedding{0, 1})
	require.NoError(t, err)
	out, err := f.Login(ctx, detect(1, 0))
	require.NoError(t, err)
	require.NotNil(t, out.Record)

	var buf bytes.Buffer
	require.NoError(t, f.Backup(ctx, &buf))

	// Materialize the bundle into a fresh directory and open it.
	restoredDir := t.TempDir()
	require.NoError(t, Restore(ctx, restoredDir, &buf))

	restored := openTestGate(t, restoredDir)
	assert.True(t, restored.Contains("A123"))
	assert.True(t, restored.Contains("B456"))
	assert.Equal(t, 1, restored.Ledger().Len())
	assert.Equal(t, uint64(1), restored.Ledger().LastSequence())

	// The restored instance keeps appending where the backup left off.
	rec, err := restored.Ledger().Append("B456", restored.now())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.Sequence)
}

func TestBackupToStore(t *testing.T) {
	ctx := context.Background()

	f := openTestGate(t, t.TempDir())
	_, err := f.Register(ctx, "A123", embedding.Embedding{1, 0})
	require.NoError(t, err)

	store := backup.NewMemoryStore()
	require.NoError(t, f.BackupTo(ctx, store, "nightly.zst"))

	names, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"nightly.zst"}, names)

	data, err := store.Get(ctx, "nightly.zst")
	require.NoError(t, err)

	bundle, err := backup.Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, bundle.Dimension)
	require.Len(t, bundle.Templates, 1)
	assert.Equal(t, "A123", bundle.Templates[0].Identity)
}

func TestRestoreRefusesExistingState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f := openTestGate(t, dir)
	_, err := f.Register(ctx, "A123", embedding.Embedding{1, 0})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Backup(ctx, &buf))

	assert.Error(t, Restore(ctx, dir, &buf))
}

func TestBackupAfterClose(t *testing.T) {
	f := openTestGate(t, t.TempDir())
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	assert.ErrorIs(t, f.Backup(context.Background(), &buf), ErrClosed)
}
