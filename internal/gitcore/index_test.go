package gitcore

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildIndex assembles an on-disk index with the given entries. Paths must be
// ordered the way git writes them; the trailing checksum is omitted since the
// parser does not verify it.
func buildIndex(t *testing.T, version uint32, paths []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("DIRC")
	binary.Write(&buf, binary.BigEndian, version)
	binary.Write(&buf, binary.BigEndian, uint32(len(paths)))

	for _, path := range paths {
		appendIndexEntry(&buf, path, 0)
	}

	return buf.Bytes()
}

// appendIndexEntry writes one entry; a non-zero extFlags value produces a
// version 3 entry with the extended bit set and the extra flags word.
func appendIndexEntry(buf *bytes.Buffer, path string, extFlags uint16) {
	for i := 0; i < 10; i++ {
		binary.Write(buf, binary.BigEndian, uint32(i+1))
	}
	var hash [20]byte
	copy(hash[:], path)
	buf.Write(hash[:])

	flags := uint16(len(path))
	fixedSize := 62
	if extFlags != 0 {
		flags |= extendedFlag
	}
	binary.Write(buf, binary.BigEndian, flags)
	if extFlags != 0 {
		binary.Write(buf, binary.BigEndian, extFlags)
		fixedSize += 2
	}
	buf.WriteString(path)

	padding := 8 - (fixedSize+len(path))%8
	buf.Write(make([]byte, padding))
}

func writeIndex(t *testing.T, gitDir string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(gitDir, "index"), data, 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
}

func TestGetIndexMissingFile(t *testing.T) {
	gitDir := newBareGitDir(t)

	r := &Repository{gitDir: gitDir}
	idx, err := r.GetIndex()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(idx.Entries) != 0 {
		t.Errorf("expected empty index, got %d entries", len(idx.Entries))
	}
}

func TestGetIndexSingleEntry(t *testing.T) {
	gitDir := newBareGitDir(t)
	writeIndex(t, gitDir, buildIndex(t, 2, []string{"main.go"}))

	r := &Repository{gitDir: gitDir}
	idx, err := r.GetIndex()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if idx.Version != 2 {
		t.Errorf("expected version 2, got %d", idx.Version)
	}
	if len(idx.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(idx.Entries))
	}

	entry := idx.Entries[0]
	if entry.Path != "main.go" {
		t.Errorf("unexpected path: %q", entry.Path)
	}
	if entry.StatInfo.Size != 10 {
		t.Errorf("unexpected size: %d", entry.StatInfo.Size)
	}
	if entry.StatInfo.Mode != 7 {
		t.Errorf("unexpected mode: %d", entry.StatInfo.Mode)
	}
}

func TestGetIndexMultipleEntries(t *testing.T) {
	gitDir := newBareGitDir(t)
	paths := []string{"README.md", "cmd/app/main.go", "internal/x.go"}
	writeIndex(t, gitDir, buildIndex(t, 2, paths))

	r := &Repository{gitDir: gitDir}
	idx, err := r.GetIndex()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(idx.Entries) != len(paths) {
		t.Fatalf("expected %d entries, got %d", len(paths), len(idx.Entries))
	}
	for i, path := range paths {
		if idx.Entries[i].Path != path {
			t.Errorf("entry %d: expected %q, got %q", i, path, idx.Entries[i].Path)
		}
	}
}

func TestGetIndexV3ExtendedEntry(t *testing.T) {
	// A skip-worktree entry carries an extra flags word; the parser must
	// consume it or every subsequent entry desyncs.
	var buf bytes.Buffer
	buf.WriteString("DIRC")
	binary.Write(&buf, binary.BigEndian, uint32(3))
	binary.Write(&buf, binary.BigEndian, uint32(2))
	appendIndexEntry(&buf, "vendored.go", 0x4000)
	appendIndexEntry(&buf, "normal.go", 0)

	gitDir := newBareGitDir(t)
	writeIndex(t, gitDir, buf.Bytes())

	r := &Repository{gitDir: gitDir}
	idx, err := r.GetIndex()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(idx.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(idx.Entries))
	}
	if idx.Entries[0].Path != "vendored.go" {
		t.Errorf("unexpected extended entry path: %q", idx.Entries[0].Path)
	}
	if idx.Entries[0].StatInfo.ExtendedFlags != 0x4000 {
		t.Errorf("unexpected extended flags: %#x", idx.Entries[0].StatInfo.ExtendedFlags)
	}
	if idx.Entries[1].Path != "normal.go" {
		t.Errorf("entry after extended entry desynced: %q", idx.Entries[1].Path)
	}
	if idx.Entries[1].StatInfo.ExtendedFlags != 0 {
		t.Errorf("plain entry must carry no extended flags: %#x", idx.Entries[1].StatInfo.ExtendedFlags)
	}
}

func TestGetIndexBadSignature(t *testing.T) {
	gitDir := newBareGitDir(t)
	data := buildIndex(t, 2, nil)
	copy(data, "NOPE")
	writeIndex(t, gitDir, data)

	r := &Repository{gitDir: gitDir}
	if _, err := r.GetIndex(); err == nil {
		t.Fatalf("expected error for bad signature")
	}
}

func TestGetIndexUnsupportedVersion(t *testing.T) {
	gitDir := newBareGitDir(t)
	writeIndex(t, gitDir, buildIndex(t, 4, nil))

	r := &Repository{gitDir: gitDir}
	if _, err := r.GetIndex(); err == nil {
		t.Fatalf("expected error for version 4 index")
	}
}

func TestGetIndexTruncatedEntry(t *testing.T) {
	gitDir := newBareGitDir(t)
	data := buildIndex(t, 2, []string{"main.go"})
	writeIndex(t, gitDir, data[:len(data)-10])

	r := &Repository{gitDir: gitDir}
	if _, err := r.GetIndex(); err == nil {
		t.Fatalf("expected error for truncated entry")
	}
}

func TestFileStatBlobHash(t *testing.T) {
	var stat FileStat
	for i := range stat.Hash {
		stat.Hash[i] = 0xAB
	}
	want := Hash("abababababababababababababababababababab")
	if got := stat.BlobHash(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
