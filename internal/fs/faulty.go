package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

// Fault defines failure behavior for files matching a rule.
type Fault struct {
	FailWrites bool // every Write fails
	FailOnSync bool
	Err        error // defaults to ErrInjected
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects errors into files whose path
// contains a registered pattern. Used by crash/atomicity tests.
type FaultyFS struct {
	FS FileSystem

	mu         sync.Mutex
	rules      map[string]Fault
	failRename bool
}

// NewFaultyFS creates a FaultyFS wrapping fs (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{FS: fs, rules: make(map[string]Fault)}
}

// AddRule injects the fault into any file whose path contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all fault rules, including a rename fault.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
	f.failRename = false
}

// FailRenames makes every Rename fail until ClearRules is called.
func (f *FaultyFS) FailRenames() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRename = true
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	var fault Fault
	var matched bool
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault, matched = rule, true
		}
	}
	f.mu.Unlock()
	if !matched {
		return file, nil
	}
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error              { return f.FS.Remove(name) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) { return f.FS.ReadDir(name) }
func (f *FaultyFS) Truncate(name string, size int64) error     { return f.FS.Truncate(name, size) }

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	f.mu.Lock()
	failRename := f.failRename
	f.mu.Unlock()
	if failRename {
		return ErrInjected
	}
	return f.FS.Rename(oldpath, newpath)
}

type faultyFile struct {
	File
	fault Fault
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailWrites {
		return 0, ff.fault.err()
	}
	return ff.File.Write(p)
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}
