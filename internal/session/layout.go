package session

import (
	"fmt"

	"msconvert/internal/tint"
)

// Layout derives every file name of a session from its output basename
// (directory plus basename, no extension).
type Layout struct {
	Base string
}

func (l Layout) tetrodeFile(n int, suffix string) string {
	return fmt.Sprintf("%s_T%d_%s", l.Base, n, suffix)
}

// Raw is the unfiltered sorter input written for Intan sessions.
func (l Layout) Raw(n int) string { return l.tetrodeFile(n, "raw.mda") }

// Filt is the filtered sorter input.
func (l Layout) Filt(n int) string { return l.tetrodeFile(n, "filt.mda") }

// Firings is the sorter's spike list.
func (l Layout) Firings(n int) string { return l.tetrodeFile(n, "firings.mda") }

// Metrics is the sorter's cluster metrics document.
func (l Layout) Metrics(n int) string { return l.tetrodeFile(n, "metrics.json") }

// Pre is the whitened signal.
func (l Layout) Pre(n int) string { return l.tetrodeFile(n, "pre.mda") }

// Masked is the artefact-masked signal.
func (l Layout) Masked(n int) string { return l.tetrodeFile(n, "masked.mda") }

// Terminal is the sorter's terminal log.
func (l Layout) Terminal(n int) string { return l.tetrodeFile(n, "terminal.txt") }

// Export is the basename shared by the Tint exports.
func (l Layout) Export() string { return l.Base + "_ms" }

// Set is the exported set file.
func (l Layout) Set() string { return l.Export() + ".set" }

// Pos is the exported position file.
func (l Layout) Pos() string { return l.Export() + ".pos" }

// Tetrode is the exported spike file of tetrode n.
func (l Layout) Tetrode(n int) string { return fmt.Sprintf("%s.%d", l.Export(), n) }

// Cut is the cluster assignment of tetrode n.
func (l Layout) Cut(n int) string { return fmt.Sprintf("%s_%d.cut", l.Export(), n) }

// LFP returns the .eeg and .egf paths of EEG slot n.
func (l Layout) LFP(n int) (eeg, egf string) { return tint.LFPPaths(l.Export(), n) }
