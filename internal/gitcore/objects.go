package gitcore

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// loadCommits walks history from every known ref (plus a detached HEAD) and
// fills the commit cache. Unreadable objects are skipped so one corrupted
// ref cannot hide the rest of the history.
func (r *Repository) loadCommits() error {
	visited := make(map[Hash]bool)

	for _, hash := range r.refs {
		r.traverseCommits(hash, visited)
	}
	if r.headDetached && r.head != "" {
		r.traverseCommits(r.head, visited)
	}

	return nil
}

// traverseCommits follows parent links from id, peeling annotated tags to
// their target commits along the way.
func (r *Repository) traverseCommits(id Hash, visited map[Hash]bool) {
	if visited[id] {
		return
	}
	visited[id] = true

	body, objType, err := r.readObjectData(id)
	if err != nil {
		log.Debugf("skipping unreadable object %s: %v", id.Short(), err)
		return
	}

	switch objType {
	case TagObject:
		tag, err := r.parseTagBody(body, id)
		if err != nil {
			log.Warnf("skipping malformed tag %s: %v", id.Short(), err)
			return
		}
		r.peeled[id] = tag.Object
		r.traverseCommits(tag.Object, visited)

	case CommitObject:
		commit, err := r.parseCommitBody(body, id)
		if err != nil {
			log.Warnf("skipping malformed commit %s: %v", id.Short(), err)
			return
		}
		r.commits[id] = commit
		for _, parent := range commit.Parents {
			r.traverseCommits(parent, visited)
		}
	}
}

// readObjectData returns the body bytes and type of the object with the given
// hash, trying loose storage first and falling back to pack files.
func (r *Repository) readObjectData(id Hash) ([]byte, ObjectType, error) {
	if body, objType, err := r.readLooseObject(id); err == nil {
		return body, objType, nil
	}

	for _, idx := range r.packIndices {
		offset, found := idx.FindObject(id)
		if !found {
			continue
		}

		file, err := os.Open(idx.PackFile())
		if err != nil {
			return nil, NoneObject, fmt.Errorf("failed to open pack file: %w", err)
		}

		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, NoneObject, fmt.Errorf("failed to seek to object: %w", err)
		}

		data, packType, err := r.readPackObject(file)
		file.Close()
		if err != nil {
			return nil, NoneObject, fmt.Errorf("failed to read packed object %s: %w", id.Short(), err)
		}
		return data, packTypeToObjectType(packType), nil
	}

	return nil, NoneObject, fmt.Errorf("object not found: %s", id)
}

// readLooseObject reads a zlib-compressed loose object and splits off its
// "<type> <size>\x00" header.
func (r *Repository) readLooseObject(id Hash) ([]byte, ObjectType, error) {
	objectPath := filepath.Join(r.gitDir, "objects", string(id)[:2], string(id)[2:])

	file, err := os.Open(objectPath)
	if err != nil {
		return nil, NoneObject, err
	}
	defer file.Close()

	zr, err := zlib.NewReader(file)
	if err != nil {
		return nil, NoneObject, err
	}
	defer zr.Close()

	content, err := io.ReadAll(zr)
	if err != nil {
		return nil, NoneObject, err
	}

	nullIdx := bytes.IndexByte(content, 0)
	if nullIdx == -1 {
		return nil, NoneObject, fmt.Errorf("invalid object format")
	}

	header := string(content[:nullIdx])
	typeName, _, found := strings.Cut(header, " ")
	if !found {
		return nil, NoneObject, fmt.Errorf("invalid object header: %q", header)
	}

	return content[nullIdx+1:], StrToObjectType(typeName), nil
}

// packTypeToObjectType maps pack object type codes to ObjectType values.
func packTypeToObjectType(t byte) ObjectType {
	switch t {
	case 1:
		return CommitObject
	case 2:
		return TreeObject
	case 3:
		return BlobObject
	case 4:
		return TagObject
	default:
		return NoneObject
	}
}

// parseCommitBody parses a commit object body (the bytes after the header).
func (r *Repository) parseCommitBody(body []byte, id Hash) (*Commit, error) {
	commit := &Commit{ID: id}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	inMessage := false
	var messageLines []string

	for scanner.Scan() {
		line := scanner.Text()
		if inMessage {
			messageLines = append(messageLines, line)
			continue
		}

		if line == "" {
			inMessage = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "tree "):
			hash, err := NewHash(strings.TrimPrefix(line, "tree "))
			if err != nil {
				return nil, fmt.Errorf("invalid tree hash: %w", err)
			}
			commit.Tree = hash

		case strings.HasPrefix(line, "parent "):
			hash, err := NewHash(strings.TrimPrefix(line, "parent "))
			if err != nil {
				return nil, fmt.Errorf("invalid parent hash: %w", err)
			}
			commit.Parents = append(commit.Parents, hash)

		case strings.HasPrefix(line, "author "):
			sig, err := NewSignature(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, fmt.Errorf("invalid author: %w", err)
			}
			commit.Author = sig

		case strings.HasPrefix(line, "committer "):
			sig, err := NewSignature(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, fmt.Errorf("invalid committer: %w", err)
			}
			commit.Committer = sig
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan commit body: %w", err)
	}

	commit.Message = strings.TrimSpace(strings.Join(messageLines, "\n"))
	return commit, nil
}

// parseTagBody parses an annotated tag object body.
func (r *Repository) parseTagBody(body []byte, id Hash) (*Tag, error) {
	tag := &Tag{ID: id}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	inMessage := false
	var messageLines []string

	for scanner.Scan() {
		line := scanner.Text()
		if inMessage {
			messageLines = append(messageLines, line)
			continue
		}

		if line == "" {
			inMessage = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "object "):
			hash, err := NewHash(strings.TrimPrefix(line, "object "))
			if err != nil {
				return nil, fmt.Errorf("invalid object hash: %w", err)
			}
			tag.Object = hash

		case strings.HasPrefix(line, "type "):
			tag.ObjType = StrToObjectType(strings.TrimPrefix(line, "type "))

		case strings.HasPrefix(line, "tag "):
			tag.Name = strings.TrimPrefix(line, "tag ")

		case strings.HasPrefix(line, "tagger "):
			sig, err := NewSignature(strings.TrimPrefix(line, "tagger "))
			if err != nil {
				return nil, fmt.Errorf("invalid tagger: %w", err)
			}
			tag.Tagger = sig
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan tag body: %w", err)
	}

	tag.Message = strings.TrimSpace(strings.Join(messageLines, "\n"))
	return tag, nil
}
