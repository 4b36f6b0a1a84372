package rhd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msconvert/internal/services"
)

func TestFindSessionsGroupsContiguousFiles(t *testing.T) {
	dir := t.TempDir()
	f := digitalFixture(1, 5)
	// 60 samples per block, two blocks per file.
	writeFile(t, dir, "rat_230101_120000.rhd", f, blockSource{firstTimestamp: 0}, 2)
	writeFile(t, dir, "rat_230101_120010.rhd", f, blockSource{firstTimestamp: 120}, 2)
	writeFile(t, dir, "rat_230101_130000.rhd", f, blockSource{firstTimestamp: 0}, 2)
	writeFile(t, dir, "other_230101_120000.rhd", f, blockSource{}, 1)
	writeFile(t, dir, "rat_extra_230101_120000.rhd", f, blockSource{}, 1)

	sessions, err := FindSessions(dir, "rat")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, []string{
		filepath.Join(dir, "rat_230101_120000.rhd"),
		filepath.Join(dir, "rat_230101_120010.rhd"),
	}, sessions[0])
	assert.Equal(t, []string{filepath.Join(dir, "rat_230101_130000.rhd")}, sessions[1])
	assert.Equal(t, filepath.Join(dir, "rat_230101_120000"), SessionBasename(sessions[0]))

	names, err := Basenames(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "rat", "rat_extra"}, names)

	_, err = FindSessions(dir, "missing")
	assert.ErrorIs(t, err, services.ErrMissingSource)

	begins, err := IsSessionBeginning(sessions[0][1])
	require.NoError(t, err)
	assert.False(t, begins)
}

func TestReadSessionConcatenatesWithOffsets(t *testing.T) {
	dir := t.TempDir()
	f := digitalFixture(1, 5)
	src := blockSource{amplifier: func(ch, s int) uint16 { return uint16(32768 + s) }}
	first, _ := writeFile(t, dir, "rat_230101_120000.rhd", f, src, 2)
	src.firstTimestamp = 120
	second, _ := writeFile(t, dir, "rat_230101_120010.rhd", f, src, 1)

	session, err := ReadSession([]string{second, first}, ReadOptions{Digital: true})
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, session.Files)
	assert.Equal(t, []int{0, 120}, session.FileOffsets)
	require.Equal(t, 180, session.Data.NumSamples())
	assert.Len(t, session.Data.DigitalIn[0], 180)
	// Sample values restart with each file; timestamps are stored as-is.
	assert.Equal(t, int16(0), session.Data.Amplifier[0][120])
	assert.Equal(t, int64(120), session.Data.Timestamps[120])
	assert.Equal(t, 125, session.AbsoluteSample(1, 5))
}

func TestReadSessionRejectsMismatchedGeometry(t *testing.T) {
	dir := t.TempDir()
	a, _ := writeFile(t, dir, "rat_230101_120000.rhd", digitalFixture(1, 5), blockSource{}, 1)
	wider := digitalFixture(1, 5)
	wider.groups[0] = amplifierGroup(3)
	b, _ := writeFile(t, dir, "rat_230101_120010.rhd", wider, blockSource{}, 1)

	_, err := ReadSession([]string{a, b}, ReadOptions{})
	assert.ErrorIs(t, err, services.ErrInconsistentSession)
}

func TestSessionStart(t *testing.T) {
	got, err := SessionStart("/data/rat_230415_093012.rhd")
	require.NoError(t, err)
	assert.True(t, time.Date(2023, time.April, 15, 9, 30, 12, 0, time.Local).Equal(got), "got %v", got)

	_, err = SessionStart("/data/rat.rhd")
	assert.Error(t, err)
}

func TestRecordingBasename(t *testing.T) {
	name, ok := RecordingBasename("/data/rat_day2_230415_093012.rhd")
	require.True(t, ok)
	assert.Equal(t, "rat_day2", name)

	_, ok = RecordingBasename("/data/rat.rhd")
	assert.False(t, ok)
}
