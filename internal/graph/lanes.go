package graph

// laneTable tracks which commit hash each vertical lane is waiting for.
// A slot holds the empty string when the lane is free. The table is the only
// state a layout pass carries between commits; each pass owns its own table,
// so independent passes never interfere.
//
// A hash is pending in at most one slot at a time: slots are only written by
// allocate and set, and both run after findPending has ruled out an existing
// reservation for that hash.
type laneTable struct {
	slots []string
}

// findPending returns the lane currently reserved for hash, or -1.
func (t *laneTable) findPending(hash string) int {
	for i, h := range t.slots {
		if h != "" && h == hash {
			return i
		}
	}
	return -1
}

// findEmpty returns the leftmost free lane, or -1 when every slot is taken.
func (t *laneTable) findEmpty() int {
	for i, h := range t.slots {
		if h == "" {
			return i
		}
	}
	return -1
}

// allocate reserves a lane for hash, reusing the leftmost empty slot so
// long-lived branches stay near the left edge and the graph stays narrow.
// A new slot is appended only when the table is full.
func (t *laneTable) allocate(hash string) int {
	if i := t.findEmpty(); i >= 0 {
		t.slots[i] = hash
		return i
	}
	return t.grow(hash)
}

// grow appends a new occupied lane at the right edge.
func (t *laneTable) grow(hash string) int {
	t.slots = append(t.slots, hash)
	return len(t.slots) - 1
}

// free releases a lane. The slot stays in place for later reuse; trailing
// cleanup is trimTrailingEmpty's job.
func (t *laneTable) free(i int) {
	t.slots[i] = ""
}

// set reserves an existing lane for hash.
func (t *laneTable) set(i int, hash string) {
	t.slots[i] = hash
}

// findNearestEmpty scans every lane right of origin in order, then falls back
// to scanning leftward, so a forked lane lands to the right of its fork point
// whenever any right-side slot is free. The origin itself is never returned.
// Returns -1 when no empty slot exists.
func (t *laneTable) findNearestEmpty(origin int) int {
	for i := origin + 1; i < len(t.slots); i++ {
		if t.slots[i] == "" {
			return i
		}
	}
	for i := origin - 1; i >= 0; i-- {
		if t.slots[i] == "" {
			return i
		}
	}
	return -1
}

// trimTrailingEmpty drops free slots off the right edge so the table's width
// tracks the number of lanes currently alive, not the historical maximum.
// Interior gaps are kept for reuse.
func (t *laneTable) trimTrailingEmpty() {
	for n := len(t.slots); n > 0 && t.slots[n-1] == ""; n = len(t.slots) {
		t.slots = t.slots[:n-1]
	}
}

// width returns the current number of lanes.
func (t *laneTable) width() int {
	return len(t.slots)
}

// snapshot returns the occupancy of every lane, for rendering the lines that
// pass behind a commit's row.
func (t *laneTable) snapshot() []bool {
	occ := make([]bool, len(t.slots))
	for i, h := range t.slots {
		occ[i] = h != ""
	}
	return occ
}
