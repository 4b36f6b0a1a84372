package spikes

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msconvert/internal/services"
)

func TestReconcilePicksNearestToTarget(t *testing.T) {
	tests := []struct {
		name       string
		candidates []int64
		starts     []int64
		want       []int64
	}{
		{"one per chunk", []int64{25, 125, 230}, []int64{0, 100, 200}, []int64{25, 125, 230}},
		{"nearest wins", []int64{3, 24, 40, 110}, []int64{0, 100}, []int64{24, 110}},
		{"tie goes to earliest", []int64{20, 30}, []int64{0}, []int64{20}},
		{"empty chunk skipped", []int64{25, 225}, []int64{0, 100, 200}, []int64{25, 225}},
		{"chunk end is exclusive", []int64{50}, []int64{0}, []int64{}},
		{"unsorted input with repeats", []int64{125, 25, 25}, []int64{0, 100}, []int64{25, 125}},
		{"no chunks", []int64{1, 2, 3}, nil, []int64{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Reconcile(tc.candidates, tc.starts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestReconcileOverlappingChunks(t *testing.T) {
	// Both chunks prefer 30; the later one takes its next-nearest.
	got, err := Reconcile([]int64{30, 44}, []int64{5, 10})
	require.NoError(t, err)
	assert.Equal(t, []int64{30, 44}, got)

	// The later chunk has nothing else, so the earlier chunk re-picks.
	got, err = Reconcile([]int64{10, 30}, []int64{0, 30})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 30}, got)
}

func TestReconcileFailsWhenNoSubstituteExists(t *testing.T) {
	_, err := Reconcile([]int64{30}, []int64{0, 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrReconciliation)
}

func TestReconcileFailsWhenOrderCannotHold(t *testing.T) {
	// Chunk 2 starts before chunk 1 and picks an earlier time.
	_, err := Reconcile([]int64{125, 60}, []int64{100, 35})
	assert.ErrorIs(t, err, services.ErrReconciliation)
}

func TestReconcileRandomisedInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 200; trial++ {
		var starts, candidates []int64
		var nonEmpty int
		pos := int64(rng.IntN(20))
		for c := 0; c < 40; c++ {
			starts = append(starts, pos)
			n := rng.IntN(4)
			if n > 0 {
				nonEmpty++
			}
			for k := 0; k < n; k++ {
				candidates = append(candidates, pos+int64(rng.IntN(ChunkSize)))
			}
			pos += ChunkSize + int64(rng.IntN(30))
		}

		got, err := Reconcile(candidates, starts)
		require.NoError(t, err, "trial %d", trial)

		// Chunks are disjoint, so every chunk that had a candidate yields one.
		chunksWithHits := 0
		for _, s := range starts {
			for _, c := range candidates {
				if c >= s && c < s+ChunkSize {
					chunksWithHits++
					break
				}
			}
		}
		assert.Equal(t, chunksWithHits, len(got))
		assert.LessOrEqual(t, len(got), nonEmpty)
		for i := 1; i < len(got); i++ {
			require.Less(t, got[i-1], got[i], "trial %d not strictly increasing", trial)
		}
	}
}

func TestReconcileRandomisedOverlapNeverEmitsDuplicates(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 200; trial++ {
		var starts, candidates []int64
		pos := int64(0)
		for c := 0; c < 30; c++ {
			starts = append(starts, pos)
			for k := rng.IntN(3); k > 0; k-- {
				candidates = append(candidates, pos+int64(rng.IntN(ChunkSize)))
			}
			pos += 20 + int64(rng.IntN(60))
		}
		got, err := Reconcile(candidates, starts)
		if err != nil {
			assert.ErrorIs(t, err, services.ErrReconciliation)
			continue
		}
		for i := 1; i < len(got); i++ {
			require.Less(t, got[i-1], got[i])
		}
	}
}

func TestRemoveRepeats(t *testing.T) {
	times, labels := RemoveRepeats([]int64{1, 1, 2, 5, 5, 5, 9}, []int{3, 4, 1, 2, 2, 7, 1})
	assert.Equal(t, []int64{1, 2, 5, 9}, times)
	assert.Equal(t, []int{3, 1, 2, 1}, labels)

	times, labels = RemoveRepeats([]int64{4, 4}, nil)
	assert.Equal(t, []int64{4}, times)
	assert.Nil(t, labels)
}
