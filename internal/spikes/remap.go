package spikes

import (
	"cmp"
	"slices"
)

// Remap renumbers cluster labels for Tint. Label 0 stays 0. Labels not in
// noise become 1..k in ascending order. Noise labels follow from k+2, the
// least populated first, ties by label. The returned map covers every label
// present plus 0.
func Remap(labels []int, noise map[int]bool) ([]int, map[int]int) {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}

	var good, bad []int
	for l := range counts {
		switch {
		case l == 0:
		case noise[l]:
			bad = append(bad, l)
		default:
			good = append(good, l)
		}
	}
	slices.Sort(good)
	slices.SortFunc(bad, func(a, b int) int {
		if c := cmp.Compare(counts[a], counts[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	mapping := map[int]int{0: 0}
	for i, l := range good {
		mapping[l] = i + 1
	}
	next := len(good) + 2
	for i, l := range bad {
		mapping[l] = next + i
	}

	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = mapping[l]
	}
	return out, mapping
}

// ClusterCount returns the number of distinct values in labels.
func ClusterCount(labels []int) int {
	seen := make(map[int]struct{}, 16)
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}
