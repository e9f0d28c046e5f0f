package gitcore

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Status is the working-tree status in the shape of `git status -s`.
type Status struct {
	Entries []StatusEntry `json:"entries"`
}

// StatusEntry is a single path's staged (index) and unstaged (worktree) state.
type StatusEntry struct {
	Path           string `json:"path"`
	IndexStatus    string `json:"index_status,omitempty"`
	WorktreeStatus string `json:"worktree_status,omitempty"`
}

func (e *StatusEntry) String() string {
	return fmt.Sprintf("%1s%1s %s", e.IndexStatus, e.WorktreeStatus, e.Path)
}

// GetStatus compares HEAD, the index, and the working tree, producing one
// entry per changed or untracked path, sorted for deterministic output.
func (r *Repository) GetStatus() (*Status, error) {
	index, err := r.GetIndex()
	if err != nil {
		return nil, err
	}

	headTree, err := r.getHeadTree()
	if err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0)
	entries = append(entries, r.compareIndexWithHeadTree(index.Entries, headTree)...)
	entries = append(entries, r.compareWorkingTreeWithIndex(index.Entries)...)
	entries = append(entries, r.findUntrackedFiles(index.Entries)...)

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return &Status{Entries: entries}, nil
}

// HashFile computes the git blob hash of a file on disk.
func HashFile(path string) (Hash, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	header := fmt.Sprintf("blob %d\x00", len(content))
	data := append([]byte(header), content...)
	sum := sha1.Sum(data)
	return NewHashFromBytes(sum)
}

// compareIndexWithHeadTree detects staged changes (the X column): additions,
// modifications, and deletions relative to HEAD.
func (r *Repository) compareIndexWithHeadTree(indexEntries []IndexEntry, headTree map[string]Hash) []StatusEntry {
	entries := make([]StatusEntry, 0)

	indexMap := make(map[string]IndexEntry)
	for _, entry := range indexEntries {
		indexMap[entry.Path] = entry
	}

	for _, entry := range indexEntries {
		entryHash := entry.StatInfo.BlobHash()
		headHash, existsInHead := headTree[entry.Path]

		if !existsInHead {
			entries = append(entries, StatusEntry{
				Path:        entry.Path,
				IndexStatus: "A",
			})
		} else if headHash != entryHash {
			entries = append(entries, StatusEntry{
				Path:        entry.Path,
				IndexStatus: "M",
			})
		}
	}

	for path := range headTree {
		if _, existsInIndex := indexMap[path]; !existsInIndex {
			entries = append(entries, StatusEntry{
				Path:        path,
				IndexStatus: "D",
			})
		}
	}

	return entries
}

// compareWorkingTreeWithIndex detects unstaged changes (the Y column). The
// mtime/size check avoids hashing files whose stat info still matches the
// index, the same shortcut git itself takes.
func (r *Repository) compareWorkingTreeWithIndex(indexEntries []IndexEntry) []StatusEntry {
	entries := make([]StatusEntry, 0)

	for _, entry := range indexEntries {
		workingPath := filepath.Join(r.workDir, entry.Path)

		info, err := os.Stat(workingPath)
		if err != nil {
			entries = append(entries, StatusEntry{
				Path:           entry.Path,
				WorktreeStatus: "D",
			})
			continue
		}

		if !info.ModTime().Equal(entry.StatInfo.MTime) || uint32(info.Size()) != entry.StatInfo.Size {
			hash, err := HashFile(workingPath)
			if err != nil {
				continue
			}
			if hash != entry.StatInfo.BlobHash() {
				entries = append(entries, StatusEntry{
					Path:           entry.Path,
					WorktreeStatus: "M",
				})
			}
		}
	}

	return entries
}

// findUntrackedFiles walks the working tree for paths absent from the index.
func (r *Repository) findUntrackedFiles(indexEntries []IndexEntry) []StatusEntry {
	entries := make([]StatusEntry, 0)

	indexMap := make(map[string]bool)
	for _, entry := range indexEntries {
		indexMap[entry.Path] = true
	}

	filepath.Walk(r.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(r.workDir, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if !indexMap[relPath] {
			entries = append(entries, StatusEntry{
				Path:           relPath,
				IndexStatus:    "?",
				WorktreeStatus: "?",
			})
		}

		return nil
	})

	return entries
}
