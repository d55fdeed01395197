// Package gitsnap reads file snapshots out of local git clones.
//
// A snapshot is the content of one file at one revision. Lookups walk
// commit -> tree -> entry -> blob through libgit2; handles are freed
// eagerly because a dataset run touches thousands of revisions.
package gitsnap

import (
	"bytes"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrRevisionNotFound is returned when a revision spec does not resolve to a
// commit in the repository.
var ErrRevisionNotFound = errors.New("revision not found")

// ErrPathNotFound is returned when the requested path does not exist as a
// file at the resolved revision.
var ErrPathNotFound = errors.New("path not found at revision")

// Repo is an open local clone. Methods are not safe for concurrent use;
// libgit2 handles want exclusive access. Mirror serializes for callers.
type Repo struct {
	repo *git2go.Repository
	path string
}

// Open opens the git repository at the given path. Both regular clones and
// bare mirrors work.
func Open(path string) (*Repo, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	return &Repo{repo: repo, path: path}, nil
}

// Path returns the filesystem path the repository was opened from.
func (r *Repo) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repo) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// ResolveRevision resolves a revision spec (full or abbreviated hash, ref
// name) to the full hex hash of the commit it names.
func (r *Repo) ResolveRevision(rev string) (string, error) {
	commit, err := r.lookupCommit(rev)
	if err != nil {
		return "", err
	}
	defer commit.Free()

	return commit.Id().String(), nil
}

// FileAt returns the content of the file at path as of the given revision.
func (r *Repo) FileAt(rev, path string) ([]byte, error) {
	commit, err := r.lookupCommit(rev)
	if err != nil {
		return nil, err
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrPathNotFound, path, rev)
	}

	if entry.Type != git2go.ObjectBlob {
		return nil, fmt.Errorf("%w: %s at %s is not a file", ErrPathNotFound, path, rev)
	}

	blob, err := r.repo.LookupBlob(entry.Id)
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}
	defer blob.Free()

	// Contents points into libgit2 memory; copy before the blob is freed.
	return bytes.Clone(blob.Contents()), nil
}

// lookupCommit resolves a revision spec and peels it to a commit, so tags
// and short hashes work the same as full commit hashes.
func (r *Repo) lookupCommit(rev string) (*git2go.Commit, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRevisionNotFound, rev)
	}

	peeled, err := obj.Peel(git2go.ObjectCommit)

	obj.Free()

	if err != nil {
		return nil, fmt.Errorf("%w: %s does not name a commit", ErrRevisionNotFound, rev)
	}

	oid := peeled.Id()

	peeled.Free()

	commit, err := r.repo.LookupCommit(oid)
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", oid, err)
	}

	return commit, nil
}
