package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonyCanut/gitlanes/internal/gitcore"
)

func datedCommit(letter string, when time.Time, parents ...string) *gitcore.Commit {
	c := testCommit(letter, parents...)
	c.Author = gitcore.Signature{Name: "Test", Email: "test@example.com", When: when}
	c.Committer = c.Author
	return c
}

func commitMap(commits ...*gitcore.Commit) map[gitcore.Hash]*gitcore.Commit {
	m := make(map[gitcore.Hash]*gitcore.Commit, len(commits))
	for _, c := range commits {
		m[c.ID] = c
	}
	return m
}

func orderedHashes(commits []*gitcore.Commit) []gitcore.Hash {
	hashes := make([]gitcore.Hash, len(commits))
	for i, c := range commits {
		hashes[i] = c.ID
	}
	return hashes
}

func TestOrderEmpty(t *testing.T) {
	assert.Empty(t, Order(nil))
	assert.Empty(t, Order(map[gitcore.Hash]*gitcore.Commit{}))
}

func TestOrderNewestFirst(t *testing.T) {
	base := time.Date(2024, 4, 22, 12, 0, 0, 0, time.UTC)
	commits := commitMap(
		datedCommit("a", base.Add(2*time.Hour), "b"),
		datedCommit("b", base.Add(time.Hour), "c"),
		datedCommit("c", base),
	)

	got := Order(commits)
	assert.Equal(t, []gitcore.Hash{testHash("a"), testHash("b"), testHash("c")}, orderedHashes(got))
}

func TestOrderParentsNeverPrecedeChildren(t *testing.T) {
	// The parent carries a newer timestamp than its child (rebases and
	// clock skew produce this); topology must still win.
	base := time.Date(2024, 4, 22, 12, 0, 0, 0, time.UTC)
	commits := commitMap(
		datedCommit("a", base, "b"),
		datedCommit("b", base.Add(time.Hour)),
	)

	got := Order(commits)
	assert.Equal(t, []gitcore.Hash{testHash("a"), testHash("b")}, orderedHashes(got))
}

func TestOrderTimestampTieBrokenByHash(t *testing.T) {
	when := time.Date(2024, 4, 22, 12, 0, 0, 0, time.UTC)
	commits := commitMap(
		datedCommit("a", when),
		datedCommit("b", when),
		datedCommit("c", when),
	)

	got := Order(commits)
	assert.Equal(t, []gitcore.Hash{testHash("a"), testHash("b"), testHash("c")}, orderedHashes(got))
}

func TestOrderDeterministic(t *testing.T) {
	base := time.Date(2024, 4, 22, 12, 0, 0, 0, time.UTC)
	commits := commitMap(
		datedCommit("m", base.Add(3*time.Hour), "l", "r"),
		datedCommit("l", base.Add(2*time.Hour), "b"),
		datedCommit("r", base.Add(2*time.Hour), "b"),
		datedCommit("b", base),
	)

	first := orderedHashes(Order(commits))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, orderedHashes(Order(commits)))
	}
}

func TestOrderMergeTopology(t *testing.T) {
	base := time.Date(2024, 4, 22, 12, 0, 0, 0, time.UTC)
	commits := commitMap(
		datedCommit("m", base.Add(3*time.Hour), "l", "r"),
		datedCommit("l", base.Add(time.Hour), "b"),
		datedCommit("r", base.Add(2*time.Hour), "b"),
		datedCommit("b", base),
	)

	got := orderedHashes(Order(commits))
	require.Len(t, got, 4)
	assert.Equal(t, testHash("m"), got[0])
	assert.Equal(t, testHash("b"), got[3])
	// Among the ready siblings the newer one comes first.
	assert.Equal(t, testHash("r"), got[1])
	assert.Equal(t, testHash("l"), got[2])
}

func TestOrderIgnoresParentsOutsideCache(t *testing.T) {
	base := time.Date(2024, 4, 22, 12, 0, 0, 0, time.UTC)
	commits := commitMap(
		datedCommit("a", base, "z"),
	)

	got := Order(commits)
	require.Len(t, got, 1)
	assert.Equal(t, testHash("a"), got[0].ID)
}

func TestRefNamesByHash(t *testing.T) {
	refs := map[string]gitcore.Hash{
		"refs/heads/main":    testHash("a"),
		"refs/heads/zeta":    testHash("a"),
		"refs/heads/feature": testHash("b"),
	}

	byHash := refNamesByHash(refs, "refs/heads/")
	assert.Equal(t, []string{"main", "zeta"}, byHash[testHash("a")])
	assert.Equal(t, []string{"feature"}, byHash[testHash("b")])
}
