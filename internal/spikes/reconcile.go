package spikes

import (
	"fmt"
	"slices"

	"msconvert/internal/services"
)

const (
	// ChunkSize is the width of a reconciliation window in samples.
	ChunkSize = 50
	// TargetOffset is where the sorter places the threshold crossing inside a chunk.
	TargetOffset = 25
)

// Reconcile picks one spike time per chunk from candidates. Chunk i covers
// [chunkStarts[i], chunkStarts[i]+ChunkSize). Chunks without candidates
// contribute nothing; the result is ordered by chunk.
//
// Each chunk takes the candidate nearest its start+TargetOffset, earliest on
// ties. When a later chunk lands on a time an earlier chunk already claimed,
// the later chunk falls back to its next-nearest unclaimed candidate, and
// failing that the earlier chunk does. The result must be strictly
// increasing.
func Reconcile(candidates []int64, chunkStarts []int64) ([]int64, error) {
	sorted := slices.Clone(candidates)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	pools := make([][]int64, len(chunkStarts))
	for i, start := range chunkStarts {
		pools[i] = rankCandidates(sorted, start)
	}

	picks := make([]int64, len(chunkStarts))
	picked := make([]bool, len(chunkStarts))
	owner := make(map[int64]int)

	for i, pool := range pools {
		if len(pool) == 0 {
			continue
		}
		choice := pool[0]
		if prev, taken := owner[choice]; taken {
			if alt, ok := nextUnclaimed(pool, owner); ok {
				choice = alt
			} else if alt, ok := nextUnclaimed(pools[prev], owner); ok {
				picks[prev] = alt
				owner[alt] = prev
			} else {
				return nil, services.Wrap(services.ErrReconciliation, "reconcile", "dedupe",
					fmt.Sprintf("chunk at %d has no unclaimed candidate", chunkStarts[i]), nil)
			}
		}
		picks[i] = choice
		picked[i] = true
		owner[choice] = i
	}

	out := make([]int64, 0, len(owner))
	for i, ok := range picked {
		if !ok {
			continue
		}
		if n := len(out); n > 0 && picks[i] <= out[n-1] {
			return nil, services.Wrap(services.ErrReconciliation, "reconcile", "validate",
				fmt.Sprintf("spike %d at chunk %d does not follow %d", picks[i], chunkStarts[i], out[n-1]), nil)
		}
		out = append(out, picks[i])
	}
	return out, nil
}

// rankCandidates returns the candidates inside the chunk ordered by distance
// from the target, earliest first on ties.
func rankCandidates(sorted []int64, start int64) []int64 {
	lo, _ := slices.BinarySearch(sorted, start)
	hi, _ := slices.BinarySearch(sorted, start+ChunkSize)
	if lo == hi {
		return nil
	}
	pool := slices.Clone(sorted[lo:hi])
	target := start + TargetOffset
	slices.SortStableFunc(pool, func(a, b int64) int {
		return int(distance(a, target) - distance(b, target))
	})
	return pool
}

func nextUnclaimed(pool []int64, owner map[int64]int) (int64, bool) {
	for _, v := range pool {
		if _, taken := owner[v]; !taken {
			return v, true
		}
	}
	return 0, false
}

func distance(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

// RemoveRepeats drops consecutive entries whose time equals the previous
// entry's, keeping the first. labels may be nil; otherwise it is filtered in
// step with times.
func RemoveRepeats(times []int64, labels []int) ([]int64, []int) {
	outTimes := make([]int64, 0, len(times))
	var outLabels []int
	if labels != nil {
		outLabels = make([]int, 0, len(labels))
	}
	for i, t := range times {
		if i > 0 && t == times[i-1] {
			continue
		}
		outTimes = append(outTimes, t)
		if labels != nil {
			outLabels = append(outLabels, labels[i])
		}
	}
	return outTimes, outLabels
}
