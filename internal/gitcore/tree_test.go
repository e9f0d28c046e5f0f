package gitcore

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeLooseObject stores a zlib-compressed loose object and returns its hash.
func writeLooseObject(t *testing.T, gitDir string, objType string, body []byte) Hash {
	t.Helper()

	full := append([]byte(fmt.Sprintf("%s %d\x00", objType, len(body))), body...)
	sum := sha1.Sum(full)
	hash := Hash(hex.EncodeToString(sum[:]))

	dir := filepath.Join(gitDir, "objects", string(hash)[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(full); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, string(hash)[2:])
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write object: %v", err)
	}
	return hash
}

// treeEntry encodes one "<mode> <name>\x00<raw hash>" tree record.
func treeEntry(t *testing.T, mode, name string, hash Hash) []byte {
	t.Helper()

	raw, err := hex.DecodeString(string(hash))
	if err != nil {
		t.Fatalf("decode hash: %v", err)
	}
	entry := []byte(mode + " " + name)
	entry = append(entry, 0)
	return append(entry, raw...)
}

func TestReadLooseObject(t *testing.T) {
	gitDir := newBareGitDir(t)
	hash := writeLooseObject(t, gitDir, "blob", []byte("hello\n"))

	r := &Repository{gitDir: gitDir}
	body, objType, err := r.readLooseObject(hash)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if objType != BlobObject {
		t.Errorf("expected blob, got %v", objType)
	}
	if string(body) != "hello\n" {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestReadObjectDataMissing(t *testing.T) {
	gitDir := newBareGitDir(t)

	r := &Repository{gitDir: gitDir}
	if _, _, err := r.readObjectData(Hash(refHashA)); err == nil {
		t.Fatalf("expected error for missing object")
	}
}

func TestReadTreeRecursive(t *testing.T) {
	gitDir := newBareGitDir(t)
	r := &Repository{gitDir: gitDir}

	blobA := writeLooseObject(t, gitDir, "blob", []byte("package main\n"))
	blobB := writeLooseObject(t, gitDir, "blob", []byte("# readme\n"))

	subTreeBody := treeEntry(t, "100644", "main.go", blobA)
	subTree := writeLooseObject(t, gitDir, "tree", subTreeBody)

	rootBody := append(
		treeEntry(t, "100644", "README.md", blobB),
		treeEntry(t, "40000", "cmd", subTree)...,
	)
	rootTree := writeLooseObject(t, gitDir, "tree", rootBody)

	tree, err := r.readTreeRecursive(rootTree, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(tree) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(tree), tree)
	}
	if tree["README.md"] != blobB {
		t.Errorf("unexpected hash for README.md: %s", tree["README.md"])
	}
	if tree["cmd/main.go"] != blobA {
		t.Errorf("unexpected hash for cmd/main.go: %s", tree["cmd/main.go"])
	}
}

func TestGetHeadTreeUnborn(t *testing.T) {
	gitDir := newBareGitDir(t)

	r := &Repository{gitDir: gitDir, refs: make(map[string]Hash)}
	if err := r.loadRefs(); err != nil {
		t.Fatalf("load refs: %v", err)
	}

	tree, err := r.getHeadTree()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(tree) != 0 {
		t.Errorf("expected empty tree, got %v", tree)
	}
}

func TestGetHeadTree(t *testing.T) {
	gitDir := newBareGitDir(t)

	blob := writeLooseObject(t, gitDir, "blob", []byte("hello\n"))
	treeHash := writeLooseObject(t, gitDir, "tree", treeEntry(t, "100644", "hello.txt", blob))

	commitBody := "tree " + string(treeHash) + "\n" +
		"author Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"committer Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"\nInitial commit\n"
	commitHash := writeLooseObject(t, gitDir, "commit", []byte(commitBody))

	writeGitFile(t, gitDir, "refs/heads/main", string(commitHash)+"\n")

	r := &Repository{gitDir: gitDir, refs: make(map[string]Hash)}
	if err := r.loadRefs(); err != nil {
		t.Fatalf("load refs: %v", err)
	}

	tree, err := r.getHeadTree()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tree["hello.txt"] != blob {
		t.Errorf("unexpected head tree: %v", tree)
	}
}

func TestLoadCommitsTraversal(t *testing.T) {
	gitDir := newBareGitDir(t)

	tree := writeLooseObject(t, gitDir, "tree", nil)

	rootBody := "tree " + string(tree) + "\n" +
		"author Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"committer Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"\nroot\n"
	root := writeLooseObject(t, gitDir, "commit", []byte(rootBody))

	tipBody := "tree " + string(tree) + "\n" +
		"parent " + string(root) + "\n" +
		"author Jane Doe <jane@example.com> 1713800060 +0000\n" +
		"committer Jane Doe <jane@example.com> 1713800060 +0000\n" +
		"\ntip\n"
	tip := writeLooseObject(t, gitDir, "commit", []byte(tipBody))

	writeGitFile(t, gitDir, "refs/heads/main", string(tip)+"\n")

	repo, err := NewRepository(filepath.Dir(gitDir))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	commits := repo.Commits()
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[tip] == nil || commits[root] == nil {
		t.Fatalf("missing commits in cache: %v", commits)
	}
	if len(commits[tip].Parents) != 1 || commits[tip].Parents[0] != root {
		t.Errorf("unexpected parents for tip: %v", commits[tip].Parents)
	}
	if repo.GetHEAD() != tip {
		t.Errorf("unexpected HEAD: %s", repo.GetHEAD())
	}
}

func TestAnnotatedTagPeeling(t *testing.T) {
	gitDir := newBareGitDir(t)

	tree := writeLooseObject(t, gitDir, "tree", nil)
	commitBody := "tree " + string(tree) + "\n" +
		"author Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"committer Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"\ntagged\n"
	commit := writeLooseObject(t, gitDir, "commit", []byte(commitBody))

	tagBody := "object " + string(commit) + "\n" +
		"type commit\n" +
		"tag v1.0.0\n" +
		"tagger Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"\nRelease\n"
	tag := writeLooseObject(t, gitDir, "tag", []byte(tagBody))

	writeGitFile(t, gitDir, "refs/heads/main", string(commit)+"\n")
	writeGitFile(t, gitDir, "refs/tags/v1.0.0", string(tag)+"\n")

	repo, err := NewRepository(filepath.Dir(gitDir))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The annotated tag peels to its commit during traversal.
	if repo.Commits()[commit] == nil {
		t.Errorf("tagged commit missing from cache")
	}
	if repo.Tags()["refs/tags/v1.0.0"] != tag {
		t.Errorf("unexpected tag ref: %v", repo.Tags())
	}
	if got := repo.PeelTag(tag); got != commit {
		t.Errorf("expected tag to peel to %s, got %s", commit.Short(), got.Short())
	}
	// Non-tag hashes pass through unchanged.
	if got := repo.PeelTag(commit); got != commit {
		t.Errorf("expected commit to peel to itself, got %s", got.Short())
	}
}

func TestPeelTagChain(t *testing.T) {
	gitDir := newBareGitDir(t)

	tree := writeLooseObject(t, gitDir, "tree", nil)
	commitBody := "tree " + string(tree) + "\n" +
		"author Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"committer Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"\ntagged\n"
	commit := writeLooseObject(t, gitDir, "commit", []byte(commitBody))

	innerBody := "object " + string(commit) + "\n" +
		"type commit\n" +
		"tag v1.0.0\n" +
		"tagger Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"\nRelease\n"
	inner := writeLooseObject(t, gitDir, "tag", []byte(innerBody))

	// A tag of a tag; git allows it, peeling must follow the chain.
	outerBody := "object " + string(inner) + "\n" +
		"type tag\n" +
		"tag v1.0.0-signed\n" +
		"tagger Jane Doe <jane@example.com> 1713800000 +0000\n" +
		"\nRe-release\n"
	outer := writeLooseObject(t, gitDir, "tag", []byte(outerBody))

	writeGitFile(t, gitDir, "refs/heads/main", string(commit)+"\n")
	writeGitFile(t, gitDir, "refs/tags/v1.0.0-signed", string(outer)+"\n")

	repo, err := NewRepository(filepath.Dir(gitDir))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := repo.PeelTag(outer); got != commit {
		t.Errorf("expected outer tag to peel to %s, got %s", commit.Short(), got.Short())
	}
}
