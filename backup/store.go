package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/facegate/internal/fs"
)

// ErrNotFound is returned when a named archive does not exist.
var ErrNotFound = os.ErrNotExist

// Store is where archive bundles are kept.
type Store interface {
	// Put stores an archive under name, atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Get retrieves the archive stored under name.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns stored archive names in lexicographic order.
	List(ctx context.Context) ([]string, error)
}

// LocalStore implements Store on a local directory. Archives are
// written with the same write-then-rename discipline as the rest of
// the durable state.
type LocalStore struct {
	dir  string
	fsys fs.FileSystem
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir, fsys: fs.Default}
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	if err := s.fsys.MkdirAll(s.dir, 0o750); err != nil {
		return err
	}

	path := filepath.Join(s.dir, name)
	tmpPath := path + ".tmp"

	f, err := s.fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fsys.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.fsys.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = s.fsys.Remove(tmpPath)
		return err
	}
	if err := s.fsys.Rename(tmpPath, path); err != nil {
		_ = s.fsys.Remove(tmpPath)
		return err
	}
	return fs.SyncDir(s.fsys, s.dir)
}

func (s *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	f, err := s.fsys.OpenFile(filepath.Join(s.dir, name), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *LocalStore) List(_ context.Context) ([]string, error) {
	entries, err := s.fsys.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// MemoryStore implements Store in memory. Useful for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[name] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
