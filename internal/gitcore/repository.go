package gitcore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Repository represents a Git repository with its metadata and object storage.
// All loading happens eagerly in NewRepository; Reload refreshes the caches
// in place so long-lived callers (the serve loop) see a consistent view.
type Repository struct {
	gitDir  string
	workDir string

	packIndices  []*PackIndex
	refs         map[string]Hash
	commits      map[Hash]*Commit
	peeled       map[Hash]Hash
	head         Hash
	headRef      string
	headDetached bool

	mu sync.RWMutex
}

// NewRepository creates and initializes a new Repository instance.
// path can be either:
//   - The working directory (will find .git within)
//   - The .git directory itself
//   - A parent directory containing a .git directory
func NewRepository(path string) (*Repository, error) {
	gitDir, workDir, err := findGitDirectory(path)
	if err != nil {
		return nil, err
	}

	if err := validateGitDirectory(gitDir); err != nil {
		return nil, err
	}

	repo := &Repository{
		gitDir:  gitDir,
		workDir: workDir,
	}

	if err := repo.load(); err != nil {
		return nil, err
	}

	return repo, nil
}

// load populates the pack index, ref, and commit caches. It does not take the
// mutex; callers either own the repository exclusively (NewRepository) or load
// into a scratch instance and swap (Reload).
func (r *Repository) load() error {
	r.packIndices = nil
	r.refs = make(map[string]Hash)
	r.commits = make(map[Hash]*Commit)
	r.peeled = make(map[Hash]Hash)

	if err := r.loadPackIndices(); err != nil {
		return fmt.Errorf("failed to load pack indices: %w", err)
	}
	if err := r.loadRefs(); err != nil {
		return fmt.Errorf("failed to load refs: %w", err)
	}
	if err := r.loadCommits(); err != nil {
		return fmt.Errorf("failed to load commits: %w", err)
	}

	return nil
}

// Reload re-reads refs, packs, and commits from disk. The caches are rebuilt
// on a scratch instance and swapped in under the lock, so concurrent readers
// never observe a half-loaded state.
func (r *Repository) Reload() error {
	fresh := &Repository{
		gitDir:  r.gitDir,
		workDir: r.workDir,
	}
	if err := fresh.load(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.packIndices = fresh.packIndices
	r.refs = fresh.refs
	r.commits = fresh.commits
	r.peeled = fresh.peeled
	r.head = fresh.head
	r.headRef = fresh.headRef
	r.headDetached = fresh.headDetached
	return nil
}

// Name returns the repository's directory name.
func (r *Repository) Name() string {
	return filepath.Base(r.workDir)
}

// GitDir returns the path of the .git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// WorkDir returns the path of the working directory.
func (r *Repository) WorkDir() string {
	return r.workDir
}

// Branches returns a copy of all branch references.
func (r *Repository) Branches() map[string]Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	branches := make(map[string]Hash)
	for ref, hash := range r.refs {
		if strings.HasPrefix(ref, "refs/heads/") {
			branches[ref] = hash
		}
	}
	return branches
}

// Tags returns a copy of all tag references.
func (r *Repository) Tags() map[string]Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make(map[string]Hash)
	for ref, hash := range r.refs {
		if strings.HasPrefix(ref, "refs/tags/") {
			tags[ref] = hash
		}
	}
	return tags
}

// PeelTag follows annotated tag objects to the object they ultimately
// reference, so a tag ref can be matched against commit IDs. Hashes that are
// not annotated tags (lightweight tag targets, commits) come back unchanged.
func (r *Repository) PeelTag(id Hash) Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for {
		target, ok := r.peeled[id]
		if !ok {
			return id
		}
		id = target
	}
}

// Commits returns the commit cache keyed by hash. The returned map is the
// live cache; callers must not mutate it. Reload swaps the map wholesale, so
// a map obtained before a reload stays internally consistent.
func (r *Repository) Commits() map[Hash]*Commit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commits
}

// GetHEAD returns the hash HEAD currently points to, or "" for an unborn branch.
func (r *Repository) GetHEAD() Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.head
}

// GetHEADRef returns the symbolic ref HEAD points to, or "" when detached.
func (r *Repository) GetHEADRef() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.headRef
}

// IsHEADDetached reports whether HEAD points directly at a commit.
func (r *Repository) IsHEADDetached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.headDetached
}

// findGitDirectory locates the .git directory starting from the given path.
// Returns both the .git directory and the working directory.
func findGitDirectory(startPath string) (gitDir string, workDir string, err error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if filepath.Base(absPath) == ".git" {
		info, err := os.Stat(absPath)
		if err == nil && info.IsDir() {
			return absPath, filepath.Dir(absPath), nil
		}
	}

	currentPath := absPath
	for {
		gitPath := filepath.Join(currentPath, ".git")

		info, err := os.Stat(gitPath)
		if err == nil {
			if info.IsDir() {
				return gitPath, currentPath, nil
			}
			return handleGitFile(gitPath, currentPath)
		}

		parentPath := filepath.Dir(currentPath)
		if parentPath == currentPath {
			return "", "", fmt.Errorf("not a git repository (or any parent up to mount point): %s", startPath)
		}
		currentPath = parentPath
	}
}

// handleGitFile handles the case where .git is a file (worktrees, submodules).
// .git file format: "gitdir: /path/to/actual/.git"
func handleGitFile(gitFilePath string, workDir string) (string, string, error) {
	content, err := os.ReadFile(gitFilePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read .git file: %w", err)
	}

	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", "", fmt.Errorf("invalid .git file format: %s", gitFilePath)
	}

	gitDir := strings.TrimPrefix(line, "gitdir: ")
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(filepath.Dir(gitFilePath), gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	if _, err := os.Stat(gitDir); err != nil {
		return "", "", fmt.Errorf("gitdir points to non-existent directory: %s", gitDir)
	}

	return gitDir, workDir, nil
}

// validateGitDirectory checks if the directory is a valid Git repository.
func validateGitDirectory(gitDir string) error {
	info, err := os.Stat(gitDir)
	if err != nil {
		return fmt.Errorf("git directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("git path is not a directory: %s", gitDir)
	}

	requiredPaths := []string{"objects", "refs", "HEAD"}
	for _, required := range requiredPaths {
		path := filepath.Join(gitDir, required)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("invalid git repository, missing: %s", required)
		}
	}

	return nil
}
