package gitcore

import (
	"bytes"
	"fmt"
	"path/filepath"
)

// getHeadTree returns the flattened path → blob hash mapping of the tree
// behind HEAD. An unborn HEAD yields an empty map.
func (r *Repository) getHeadTree() (map[string]Hash, error) {
	head := r.GetHEAD()
	if head == "" {
		return map[string]Hash{}, nil
	}

	body, objType, err := r.readObjectData(head)
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD commit: %w", err)
	}
	if objType != CommitObject {
		return nil, fmt.Errorf("HEAD is not a commit: %s", head.Short())
	}

	commit, err := r.parseCommitBody(body, head)
	if err != nil {
		return nil, err
	}
	if commit.Tree == "" {
		return nil, fmt.Errorf("no tree found in commit %s", head.Short())
	}

	return r.readTreeRecursive(commit.Tree, "")
}

// readTreeRecursive flattens a tree object into path → blob hash entries.
// Tree bodies are sequences of "<mode> <name>\x00" followed by a raw 20-byte
// object hash; mode 40000 marks a subtree.
func (r *Repository) readTreeRecursive(treeHash Hash, prefix string) (map[string]Hash, error) {
	result := make(map[string]Hash)

	content, objType, err := r.readObjectData(treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree %s: %w", treeHash.Short(), err)
	}
	if objType != TreeObject {
		return nil, fmt.Errorf("not a tree object: %s", treeHash.Short())
	}

	for len(content) > 0 {
		spaceIdx := bytes.IndexByte(content, ' ')
		if spaceIdx == -1 {
			break
		}
		mode := string(content[:spaceIdx])
		content = content[spaceIdx+1:]

		nullIdx := bytes.IndexByte(content, 0)
		if nullIdx == -1 {
			break
		}
		name := string(content[:nullIdx])
		content = content[nullIdx+1:]

		if len(content) < 20 {
			return nil, fmt.Errorf("truncated tree entry in %s", treeHash.Short())
		}
		var raw [20]byte
		copy(raw[:], content[:20])
		hash, err := NewHashFromBytes(raw)
		if err != nil {
			return nil, err
		}
		content = content[20:]

		fullPath := filepath.ToSlash(filepath.Join(prefix, name))

		if mode == "40000" {
			subTree, err := r.readTreeRecursive(hash, fullPath)
			if err != nil {
				return nil, err
			}
			for subPath, subHash := range subTree {
				result[subPath] = subHash
			}
		} else {
			result[fullPath] = hash
		}
	}

	return result, nil
}
