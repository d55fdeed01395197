package gitsnap_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aladics/code-change-repr/internal/gitsnap"
)

// beforeSource and afterSource are the two states of the tracked file.
const beforeSource = "public class A { int add(int a, int b) { return a + b; } }\n"

const afterSource = "public class A { int add(int a, int b) { return b + a; } }\n"

// trackedPath is the repository-relative path of the file under test.
const trackedPath = "src/A.java"

// snapshotRepo is a two-commit repository with trackedPath changing between
// the commits.
type snapshotRepo struct {
	dir    string
	first  string
	second string
}

func createSnapshotRepo(t *testing.T, dir string) snapshotRepo {
	t.Helper()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err, "InitRepository")

	defer repo.Free()

	first := commitFile(t, repo, dir, trackedPath, beforeSource, "add method")
	second := commitFile(t, repo, dir, trackedPath, afterSource, "swap operands")

	return snapshotRepo{dir: dir, first: first, second: second}
}

func commitFile(t *testing.T, repo *git2go.Repository, dir, name, content, message string) string {
	t.Helper()

	p := filepath.Join(dir, filepath.FromSlash(name))

	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))

	index, err := repo.Index()
	require.NoError(t, err, "Index")

	defer index.Free()

	require.NoError(t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(t, err, "WriteTree")

	tree, err := repo.LookupTree(treeID)
	require.NoError(t, err, "LookupTree")

	defer tree.Free()

	sig := &git2go.Signature{Name: "Test", Email: "test@test.com", When: time.Now()}

	var parents []*git2go.Commit

	head, headErr := repo.Head()
	if headErr == nil {
		parent, lookupErr := repo.LookupCommit(head.Target())
		require.NoError(t, lookupErr, "LookupCommit")

		parents = append(parents, parent)

		head.Free()
	}

	oid, err := repo.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(t, err, "CreateCommit")

	for _, parent := range parents {
		parent.Free()
	}

	return oid.String()
}

func TestFileAt_ReturnsSnapshotPerRevision(t *testing.T) {
	t.Parallel()

	snap := createSnapshotRepo(t, t.TempDir())

	repo, err := gitsnap.Open(snap.dir)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	before, err := repo.FileAt(snap.first, trackedPath)
	require.NoError(t, err)
	assert.Equal(t, beforeSource, string(before))

	after, err := repo.FileAt(snap.second, trackedPath)
	require.NoError(t, err)
	assert.Equal(t, afterSource, string(after))
}

func TestFileAt_MissingPath(t *testing.T) {
	t.Parallel()

	snap := createSnapshotRepo(t, t.TempDir())

	repo, err := gitsnap.Open(snap.dir)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	_, err = repo.FileAt(snap.first, "src/Missing.java")
	require.ErrorIs(t, err, gitsnap.ErrPathNotFound)

	// A directory entry is not a file snapshot.
	_, err = repo.FileAt(snap.first, "src")
	require.ErrorIs(t, err, gitsnap.ErrPathNotFound)
}

func TestFileAt_UnknownRevision(t *testing.T) {
	t.Parallel()

	snap := createSnapshotRepo(t, t.TempDir())

	repo, err := gitsnap.Open(snap.dir)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	_, err = repo.FileAt("0000000000000000000000000000000000000000", trackedPath)
	require.ErrorIs(t, err, gitsnap.ErrRevisionNotFound)
}

func TestResolveRevision_AbbreviatedHash(t *testing.T) {
	t.Parallel()

	snap := createSnapshotRepo(t, t.TempDir())

	repo, err := gitsnap.Open(snap.dir)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	full, err := repo.ResolveRevision(snap.second[:7])
	require.NoError(t, err)
	assert.Equal(t, snap.second, full)

	head, err := repo.ResolveRevision("HEAD")
	require.NoError(t, err)
	assert.Equal(t, snap.second, head)
}

func TestOpen_NotARepository(t *testing.T) {
	t.Parallel()

	_, err := gitsnap.Open(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestMirror_FileAt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cloneDir := filepath.Join(root, "acme", "widget")
	require.NoError(t, os.MkdirAll(cloneDir, 0o750))

	snap := createSnapshotRepo(t, cloneDir)

	mirror := gitsnap.NewMirror(root)
	t.Cleanup(mirror.Close)

	content, err := mirror.FileAt("acme/widget", snap.second, trackedPath)
	require.NoError(t, err)
	assert.Equal(t, afterSource, string(content))

	resolved, err := mirror.ResolveRevision("acme/widget", snap.first[:7])
	require.NoError(t, err)
	assert.Equal(t, snap.first, resolved)
}

func TestMirror_UnknownRepository(t *testing.T) {
	t.Parallel()

	mirror := gitsnap.NewMirror(t.TempDir())
	t.Cleanup(mirror.Close)

	_, err := mirror.FileAt("acme/unknown", "deadbeef", trackedPath)
	require.ErrorIs(t, err, gitsnap.ErrNoLocalClone)
}

func TestMirror_DisabledWithoutDirectory(t *testing.T) {
	t.Parallel()

	mirror := gitsnap.NewMirror("")
	t.Cleanup(mirror.Close)

	_, err := mirror.FileAt("acme/widget", "deadbeef", trackedPath)
	require.ErrorIs(t, err, gitsnap.ErrNoLocalClone)
}
