package document

// Dense position identifiers for the replicated column sequence.
//
// Each sequence element carries a path of (index, replica) segments. Paths
// order lexicographically: by index first, then by replica id when indexes
// collide, so two replicas concurrently inserting at the same spot converge
// on the same relative order without coordination. New identifiers can always
// be generated between two existing ones by descending a level, so the
// sequence never needs a global reindex.

const (
	// posGap spaces out allocations so most inserts find room without
	// growing the path.
	posGap = 1 << 16

	// posMax bounds an index segment. Kept well below the uint32 range so
	// posBetween can always allocate past the last element.
	posMax = 1 << 30
)

type posSeg struct {
	Index   uint32 `json:"i"`
	Replica string `json:"r"`
}

type position []posSeg

// compare returns -1, 0 or 1 ordering a against b.
func (a position) compare(b position) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].Index != b[i].Index {
			if a[i].Index < b[i].Index {
				return -1
			}
			return 1
		}
		if a[i].Replica != b[i].Replica {
			if a[i].Replica < b[i].Replica {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// posBetween generates a fresh identifier strictly between lo and hi for the
// given replica. Either bound may be nil, meaning "before the first element"
// or "after the last element" respectively. Requires lo < hi when both are
// set.
func posBetween(lo, hi position, replica string) position {
	var out position
	hiBounds := hi != nil
	for level := 0; ; level++ {
		loIdx, loRep := uint32(0), ""
		if level < len(lo) {
			loIdx, loRep = lo[level].Index, lo[level].Replica
		}
		hiIdx := uint32(posMax)
		if hiBounds && level < len(hi) {
			hiIdx = hi[level].Index
		}

		if hiIdx > loIdx+1 {
			idx := loIdx + (hiIdx-loIdx)/2
			if hiIdx-loIdx > 2*posGap {
				idx = loIdx + posGap
			}
			return append(out, posSeg{Index: idx, Replica: replica})
		}

		// No room at this level: pin the low bound's segment and descend.
		// The upper bound only keeps constraining deeper levels while it
		// shares the pinned prefix.
		out = append(out, posSeg{Index: loIdx, Replica: loRep})
		if hiBounds && !(level < len(hi) && hi[level].Index == loIdx && hi[level].Replica == loRep) {
			hiBounds = false
		}
	}
}
