package graph

import (
	"github.com/AntonyCanut/gitlanes/internal/gitcore"
)

// DefaultPaletteSize is the number of distinct lane colors when the caller
// does not configure one.
const DefaultPaletteSize = 8

// ConnectionKind classifies how a connection leaves a commit's row.
type ConnectionKind string

const (
	// KindStraight is a vertical continuation within one lane.
	KindStraight ConnectionKind = "straight"
	// KindMergeLeft and KindMergeRight converge into a lane another
	// descendant already reserved; the suffix is only the horizontal
	// direction, for curve shaping.
	KindMergeLeft  ConnectionKind = "merge-left"
	KindMergeRight ConnectionKind = "merge-right"
	// KindForkLeft and KindForkRight carry a merge commit's secondary
	// parent out of the dot lane into its own lane.
	KindForkLeft  ConnectionKind = "fork-left"
	KindForkRight ConnectionKind = "fork-right"
)

// Connection is one line from a commit's row toward the following row.
// Color is a palette index, not a pixel color; the renderer owns the mapping.
type Connection struct {
	FromLane int            `json:"from"`
	ToLane   int            `json:"to"`
	Color    int            `json:"color"`
	Kind     ConnectionKind `json:"kind"`
}

// Row is the layout of a single commit: the lane its dot occupies, the lane
// occupancy before the commit was processed (for pass-behind lines), and the
// connections toward its ancestors. Width covers any lane appended while
// routing this commit's parents, so every connection endpoint indexes into
// Lanes.
type Row struct {
	Commit      *gitcore.Commit `json:"-"`
	Lanes       []bool          `json:"lanes"`
	DotLane     int             `json:"dot_lane"`
	DotColor    int             `json:"dot_color"`
	Connections []Connection    `json:"connections,omitempty"`
	Width       int             `json:"width"`
}

// Layout assigns a lane to every commit and computes the connections between
// rows, producing one Row per input commit in input order.
//
// The pass is a pure function of the input sequence: it never fails, and
// running it twice yields identical output. Parent hashes that do not appear
// in the input are outside the visible window; they get no lane and no
// connection. The input order is caller-determined — parents should appear
// at or after their children for a faithful picture, but any order produces
// a valid (if less readable) layout.
func Layout(commits []*gitcore.Commit, paletteSize int) []Row {
	if paletteSize <= 0 {
		paletteSize = DefaultPaletteSize
	}

	visible := make(map[gitcore.Hash]bool, len(commits))
	for _, c := range commits {
		visible[c.ID] = true
	}

	lanes := &laneTable{}
	rows := make([]Row, 0, len(commits))

	for _, c := range commits {
		// The dot sits in the lane an earlier commit reserved for this
		// hash; a hash nobody is waiting for is a new branch head.
		dot := lanes.findPending(string(c.ID))
		if dot < 0 {
			dot = lanes.allocate(string(c.ID))
		}

		snap := lanes.snapshot()
		color := dot % paletteSize

		// The reservation is satisfied; parent routing below decides
		// whether the lane continues.
		lanes.free(dot)

		var conns []Connection
		targeted := make(map[int]bool)

		primary := true
		for _, parent := range c.Parents {
			if !visible[parent] {
				continue
			}
			p := string(parent)

			if primary {
				primary = false
				if j := lanes.findPending(p); j >= 0 {
					// Another descendant already reserved this
					// parent: converge instead of re-reserving.
					conns = append(conns, Connection{dot, j, color, mergeKind(dot, j)})
					targeted[j] = true
				} else {
					lanes.set(dot, p)
					conns = append(conns, Connection{dot, dot, color, KindStraight})
					targeted[dot] = true
				}
				continue
			}

			if j := lanes.findPending(p); j >= 0 {
				conns = append(conns, Connection{dot, j, j % paletteSize, mergeKind(dot, j)})
				targeted[j] = true
				continue
			}

			j := lanes.findNearestEmpty(dot)
			if j < 0 {
				j = lanes.grow(p)
			} else {
				lanes.set(j, p)
			}
			conns = append(conns, Connection{dot, j, j % paletteSize, forkKind(dot, j)})
			targeted[j] = true
		}

		// Sibling branches keep flowing behind this commit's node.
		for i, h := range lanes.slots {
			if h != "" && !targeted[i] {
				conns = append(conns, Connection{i, i, i % paletteSize, KindStraight})
			}
		}

		// Routing may have appended lanes past the snapshot; pad with
		// empty slots so connection endpoints stay in range.
		if n := lanes.width(); n > len(snap) {
			snap = append(snap, make([]bool, n-len(snap))...)
		}

		lanes.trimTrailingEmpty()

		rows = append(rows, Row{
			Commit:      c,
			Lanes:       snap,
			DotLane:     dot,
			DotColor:    color,
			Connections: conns,
			Width:       len(snap),
		})
	}

	return rows
}

func mergeKind(from, to int) ConnectionKind {
	switch {
	case to < from:
		return KindMergeLeft
	case to > from:
		return KindMergeRight
	default:
		return KindStraight
	}
}

func forkKind(from, to int) ConnectionKind {
	if to < from {
		return KindForkLeft
	}
	return KindForkRight
}
