package template

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/facegate/codec"
	"github.com/hupe1980/facegate/embedding"
	"github.com/hupe1980/facegate/internal/fs"
)

var (
	// ErrEmptyIdentity is returned when an identity is empty or whitespace.
	ErrEmptyIdentity = errors.New("identity must not be empty")

	// ErrInvalidEmbedding is returned when an embedding fails validation.
	// The underlying cause can be accessed via errors.Unwrap.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// Template is one enrolled identity's face embedding.
type Template struct {
	Identity  string              `json:"identity"`
	Embedding embedding.Embedding `json:"embedding"`
	CreatedAt time.Time           `json:"created_at"`
}

// Options contains configuration for the Store.
type Options struct {
	// FS is the file system used for durable template files.
	FS fs.FileSystem

	// Codec encodes template files. Defaults to codec.Default.
	Codec codec.Codec

	// Logger receives data-integrity warnings for unreadable entries.
	Logger *slog.Logger

	// LoadConcurrency bounds parallel file decoding during Open.
	LoadConcurrency int
}

// Store holds one durable template per enrolled identity.
//
// Enrollment replaces any prior template for the same identity
// atomically: the durable file is swapped with write-then-rename, and
// the in-memory entry under a single lock, so no reader ever observes
// a half-written template or both versions at once.
type Store struct {
	// wmu serializes the durable write path. Writers for the same
	// identity share one tmp file name, so write-then-rename sequences
	// must never interleave; mu alone only guards the map.
	wmu sync.Mutex

	mu        sync.RWMutex
	templates map[string]Template

	dim    int
	dir    string
	fsys   fs.FileSystem
	codec  codec.Codec
	logger *slog.Logger

	now func() time.Time
}

// Open opens (or creates) a template store rooted at dir, holding
// embeddings of the given dimensionality.
//
// Existing template files are loaded eagerly. An entry that cannot be
// read or fails validation is skipped with a data-integrity warning;
// one corrupt file never aborts the whole load.
func Open(dir string, dim int, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		FS:              fs.Default,
		Codec:           codec.Default,
		Logger:          slog.New(slog.DiscardHandler),
		LoadConcurrency: 8,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}

	if err := opts.FS.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}

	s := &Store{
		templates: make(map[string]Template),
		dim:       dim,
		dir:       dir,
		fsys:      opts.FS,
		codec:     opts.Codec,
		logger:    opts.Logger,
		now:       time.Now,
	}

	if err := s.load(opts.LoadConcurrency); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) load(concurrency int) error {
	entries, err := s.fsys.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read template directory: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))

	var mu sync.Mutex
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := entry.Name()
		g.Go(func() error {
			tmpl, ok := s.readTemplate(name)
			if !ok {
				return nil
			}
			mu.Lock()
			s.templates[tmpl.Identity] = tmpl
			mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// readTemplate decodes a single template file. Failures are logged as
// data-integrity warnings and reported via ok=false, never as errors.
func (s *Store) readTemplate(name string) (Template, bool) {
	path := filepath.Join(s.dir, name)

	f, err := s.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		s.logger.Warn("skipping unreadable template file", "file", name, "error", err)
		return Template{}, false
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		s.logger.Warn("skipping unreadable template file", "file", name, "error", err)
		return Template{}, false
	}

	var tmpl Template
	if err := s.codec.Unmarshal(data, &tmpl); err != nil {
		s.logger.Warn("skipping corrupt template file", "file", name, "error", err)
		return Template{}, false
	}
	if strings.TrimSpace(tmpl.Identity) == "" {
		s.logger.Warn("skipping template file with empty identity", "file", name)
		return Template{}, false
	}
	if err := embedding.Validate(tmpl.Embedding, s.dim); err != nil {
		s.logger.Warn("skipping template with invalid embedding", "file", name, "identity", tmpl.Identity, "error", err)
		return Template{}, false
	}

	return tmpl, true
}

// Enroll inserts or replaces the template for the given identity.
//
// The durable file is written first (write-then-rename plus directory
// sync); the in-memory entry is swapped only after the write is
// durable. Writes are serialized: one enrollment at a time reaches
// the file system, so the durable file always holds exactly one
// writer's template and matches the in-memory entry. Validation
// failures mutate nothing.
func (s *Store) Enroll(identity string, emb embedding.Embedding) error {
	if strings.TrimSpace(identity) == "" {
		return ErrEmptyIdentity
	}
	if err := embedding.Validate(emb, s.dim); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, err)
	}

	tmpl := Template{
		Identity:  identity,
		Embedding: emb.Clone(),
		CreatedAt: s.now().UTC(),
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := s.write(tmpl); err != nil {
		return err
	}

	s.mu.Lock()
	_, replaced := s.templates[identity]
	s.templates[identity] = tmpl
	s.mu.Unlock()

	s.logger.Debug("template enrolled", "identity", identity, "replaced", replaced)

	return nil
}

func (s *Store) write(tmpl Template) error {
	data, err := s.codec.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}

	path := filepath.Join(s.dir, fileName(tmpl.Identity))
	tmpPath := path + ".tmp"

	f, err := s.fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create template file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fsys.Remove(tmpPath)
		return fmt.Errorf("failed to write template file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.fsys.Remove(tmpPath)
		return fmt.Errorf("failed to sync template file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fsys.Remove(tmpPath)
		return fmt.Errorf("failed to close template file: %w", err)
	}

	if err := s.fsys.Rename(tmpPath, path); err != nil {
		_ = s.fsys.Remove(tmpPath)
		return fmt.Errorf("failed to replace template file: %w", err)
	}

	if err := fs.SyncDir(s.fsys, s.dir); err != nil {
		return fmt.Errorf("failed to sync template directory: %w", err)
	}

	return nil
}

// fileName maps an identity to a filesystem-safe, collision-free file
// name. Hex keeps arbitrary identities reversible for auditing.
func fileName(identity string) string {
	return hex.EncodeToString([]byte(identity)) + ".json"
}

// Snapshot returns a consistent point-in-time copy of all templates,
// ordered by identity. The copies are independent of the store;
// matching on a snapshot never blocks enrollment longer than the copy.
func (s *Store) Snapshot() []Template {
	s.mu.RLock()
	out := make([]Template, 0, len(s.templates))
	for _, tmpl := range s.templates {
		tmpl.Embedding = tmpl.Embedding.Clone()
		out = append(out, tmpl)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })

	return out
}

// Contains reports whether the identity has an enrolled template.
func (s *Store) Contains(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.templates[identity]
	return ok
}

// Len returns the number of enrolled identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// Dimension returns the fixed embedding dimensionality of the store.
func (s *Store) Dimension() int { return s.dim }
