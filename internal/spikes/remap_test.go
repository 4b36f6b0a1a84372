package spikes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msconvert/internal/services"
)

func TestRemapOrdersGoodThenNoise(t *testing.T) {
	labels := []int{0, 7, 3, 9, 9, 9, 12, 12, 3, 5, 5, 7}
	noise := map[int]bool{9: true, 12: true, 5: true}

	got, mapping := Remap(labels, noise)

	// Good labels 3, 7 become 1, 2. Noise starts at 4: 12 and 5 have two
	// members each (tie broken by label), 9 has three.
	assert.Equal(t, map[int]int{0: 0, 3: 1, 7: 2, 5: 4, 12: 5, 9: 6}, mapping)
	assert.Equal(t, []int{0, 2, 1, 6, 6, 6, 5, 5, 1, 4, 4, 2}, got)
}

func TestRemapProperties(t *testing.T) {
	labels := []int{4, 4, 8, 2, 0, 15, 15, 15, 15, 11, 0, 8, 6}
	noise := map[int]bool{6: true, 15: true, 11: true, 0: true}

	_, mapping := Remap(labels, noise)
	assert.Equal(t, 0, mapping[0])

	assert.Equal(t, 1, mapping[2])
	assert.Equal(t, 2, mapping[4])
	assert.Equal(t, 3, mapping[8])

	// One-label gap after the good clusters; ascending member count.
	assert.Equal(t, 5, mapping[6])
	assert.Equal(t, 6, mapping[11])
	assert.Equal(t, 7, mapping[15])
}

func TestRemapWithoutNoise(t *testing.T) {
	got, _ := Remap([]int{10, 20, 10}, nil)
	assert.Equal(t, []int{1, 2, 1}, got)
	assert.Equal(t, 2, ClusterCount(got))
}

func TestLoadMUA(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rat_T1_metrics.json")
	doc := `{"clusters":[
		{"label":1,"metrics":{"firing_rate":2.5,"isolation":0.99},"tags":["accepted"]},
		{"label":4,"metrics":{"firing_rate":9.1},"tags":["mua","rejected"]},
		{"label":2,"tags":["MUA"]}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	set, err := LoadMUA(path)
	require.NoError(t, err)
	// Only the exact curation tag counts; "MUA" is some other annotation.
	assert.Equal(t, map[int]bool{4: true}, set)

	_, err = LoadMUA(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, services.ErrMissingSource)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadMUA(bad)
	assert.ErrorIs(t, err, services.ErrFormat)
}
