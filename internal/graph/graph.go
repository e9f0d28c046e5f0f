package graph

import (
	"container/heap"
	"sort"
	"strings"
	"time"

	"github.com/AntonyCanut/gitlanes/internal/gitcore"
)

// Options tune how a graph is built from a repository.
type Options struct {
	// PaletteSize is the number of lane colors; zero means DefaultPaletteSize.
	PaletteSize int
	// MaxCommits truncates history to the newest N commits; zero means all.
	// Parents cut off by the truncation are treated as outside the window.
	MaxCommits int
}

// Node is one commit of the graph payload: display metadata plus its layout.
type Node struct {
	Hash      string    `json:"hash"`
	ShortHash string    `json:"short_hash"`
	Parents   []string  `json:"parents,omitempty"`
	Author    string    `json:"author"`
	Email     string    `json:"email,omitempty"`
	Date      time.Time `json:"date"`
	Message   string    `json:"message"`
	Branches  []string  `json:"branches,omitempty"`
	Tags      []string  `json:"tags,omitempty"`

	Lane        int          `json:"lane"`
	Color       int          `json:"color"`
	Lanes       []bool       `json:"lanes"`
	Connections []Connection `json:"connections,omitempty"`
	Width       int          `json:"width"`
}

// Graph is the JSON payload served to clients: commits newest-first with
// their lane layouts, plus ref metadata.
type Graph struct {
	Repo     string            `json:"repo"`
	Nodes    []Node            `json:"nodes"`
	Branches map[string]string `json:"branches,omitempty"`
	HEAD     string            `json:"head,omitempty"`
	HEADRef  string            `json:"head_ref,omitempty"`
	MaxWidth int               `json:"max_width"`
}

// Build orders the repository's commit cache, runs the layout pass, and
// attaches branch and tag names to their head commits.
func Build(repo *gitcore.Repository, opts Options) *Graph {
	ordered := Order(repo.Commits())
	if opts.MaxCommits > 0 && len(ordered) > opts.MaxCommits {
		ordered = ordered[:opts.MaxCommits]
	}

	rows := Layout(ordered, opts.PaletteSize)

	branchesByHash, tagsByHash := Decorations(repo)

	g := &Graph{
		Repo:     repo.Name(),
		Nodes:    make([]Node, 0, len(rows)),
		Branches: make(map[string]string),
		HEAD:     string(repo.GetHEAD()),
		HEADRef:  repo.GetHEADRef(),
	}
	for ref, hash := range repo.Branches() {
		g.Branches[strings.TrimPrefix(ref, "refs/heads/")] = string(hash)
	}

	for _, row := range rows {
		c := row.Commit
		node := Node{
			Hash:      string(c.ID),
			ShortHash: c.ID.Short(),
			Author:    c.Author.Name,
			Email:     c.Author.Email,
			Date:      c.Author.When,
			Message:   c.Message,
			Branches:  branchesByHash[c.ID],
			Tags:      tagsByHash[c.ID],

			Lane:        row.DotLane,
			Color:       row.DotColor,
			Lanes:       row.Lanes,
			Connections: row.Connections,
			Width:       row.Width,
		}
		for _, p := range c.Parents {
			node.Parents = append(node.Parents, string(p))
		}
		if node.Width > g.MaxWidth {
			g.MaxWidth = node.Width
		}
		g.Nodes = append(g.Nodes, node)
	}

	return g
}

// Order returns the commit cache as a newest-first sequence in which every
// commit precedes its in-cache parents, even when committer timestamps
// collide. Among ready commits the newest wins, with the hash as a final
// tie-break so the order is fully deterministic.
func Order(commits map[gitcore.Hash]*gitcore.Commit) []*gitcore.Commit {
	childCount := make(map[gitcore.Hash]int, len(commits))
	for _, c := range commits {
		for _, p := range c.Parents {
			if _, ok := commits[p]; ok {
				childCount[p]++
			}
		}
	}

	ready := &commitHeap{}
	for _, c := range commits {
		if childCount[c.ID] == 0 {
			heap.Push(ready, c)
		}
	}

	ordered := make([]*gitcore.Commit, 0, len(commits))
	for ready.Len() > 0 {
		c := heap.Pop(ready).(*gitcore.Commit)
		ordered = append(ordered, c)
		for _, p := range c.Parents {
			pc, ok := commits[p]
			if !ok {
				continue
			}
			childCount[p]--
			if childCount[p] == 0 {
				heap.Push(ready, pc)
			}
		}
	}

	return ordered
}

// Decorations returns, per commit, the sorted branch and tag short names
// pointing at it. Annotated tag refs name a tag object, not a commit, so they
// are peeled first; without that step every `git tag -a` tag would miss its
// node.
func Decorations(repo *gitcore.Repository) (branches, tags map[gitcore.Hash][]string) {
	tagRefs := repo.Tags()
	for ref, hash := range tagRefs {
		tagRefs[ref] = repo.PeelTag(hash)
	}
	return refNamesByHash(repo.Branches(), "refs/heads/"),
		refNamesByHash(tagRefs, "refs/tags/")
}

// refNamesByHash inverts a ref → hash map into hash → sorted short names.
func refNamesByHash(refs map[string]gitcore.Hash, prefix string) map[gitcore.Hash][]string {
	byHash := make(map[gitcore.Hash][]string)
	for ref, hash := range refs {
		byHash[hash] = append(byHash[hash], strings.TrimPrefix(ref, prefix))
	}
	for _, names := range byHash {
		sort.Strings(names)
	}
	return byHash
}

// commitHeap pops the newest commit first, breaking timestamp ties by hash.
type commitHeap []*gitcore.Commit

func (h commitHeap) Len() int { return len(h) }

func (h commitHeap) Less(i, j int) bool {
	ti, tj := h[i].Committer.When, h[j].Committer.When
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return h[i].ID < h[j].ID
}

func (h commitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commitHeap) Push(x any) { *h = append(*h, x.(*gitcore.Commit)) }

func (h *commitHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
