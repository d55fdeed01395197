package gitsnap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoLocalClone is returned when a repository is not mirrored locally.
// Callers treat it as a signal to fall back to remote fetching.
var ErrNoLocalClone = errors.New("no local clone")

// Mirror resolves repository names like "owner/name" against a directory of
// local clones. Layout is <dir>/<owner>/<name>, with <name>.git probed as
// well so bare mirrors work.
//
// Open handles are kept for the life of the Mirror and all lookups are
// serialized, matching libgit2's exclusive-access requirement.
type Mirror struct {
	dir   string
	mu    sync.Mutex
	repos map[string]*Repo
}

// NewMirror creates a mirror over the given directory. An empty directory
// disables local lookups; every FileAt then reports ErrNoLocalClone.
func NewMirror(dir string) *Mirror {
	return &Mirror{dir: dir, repos: make(map[string]*Repo)}
}

// FileAt returns the content of path in the named repository at rev.
func (m *Mirror) FileAt(name, rev, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, err := m.open(name)
	if err != nil {
		return nil, err
	}

	return repo.FileAt(rev, path)
}

// ResolveRevision resolves rev within the named repository.
func (m *Mirror) ResolveRevision(name, rev string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, err := m.open(name)
	if err != nil {
		return "", err
	}

	return repo.ResolveRevision(rev)
}

// Close frees every open repository handle.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, repo := range m.repos {
		repo.Free()
	}

	clear(m.repos)
}

// open returns a cached handle for name, opening the clone on first use.
// Callers must hold m.mu.
func (m *Mirror) open(name string) (*Repo, error) {
	if m.dir == "" {
		return nil, fmt.Errorf("%w: no mirror directory configured", ErrNoLocalClone)
	}

	if repo, ok := m.repos[name]; ok {
		return repo, nil
	}

	candidates := []string{
		filepath.Join(m.dir, filepath.FromSlash(name)),
		filepath.Join(m.dir, filepath.FromSlash(name)+".git"),
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}

		repo, err := Open(candidate)
		if err != nil {
			continue
		}

		m.repos[name] = repo

		return repo, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNoLocalClone, name)
}
