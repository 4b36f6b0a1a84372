package session

import (
	"fmt"
	"slices"

	"msconvert/internal/axona"
	"msconvert/internal/rhd"
	"msconvert/internal/services"
)

// State is the conversion state of a session.
type State int

const (
	StateMissingSource State = iota
	StateUnconverted
	StatePartiallyConverted
	StateFullyConverted
)

func (s State) String() string {
	switch s {
	case StateMissingSource:
		return "missing source"
	case StateUnconverted:
		return "unconverted"
	case StatePartiallyConverted:
		return "partially converted"
	case StateFullyConverted:
		return "fully converted"
	default:
		return "unknown"
	}
}

// Options supplies the settings the resolver needs to know what to expect.
type Options struct {
	// DefaultProbe is used for Intan recordings that do not name their probe.
	DefaultProbe string
}

// Report is the result of resolving one session.
type Report struct {
	Source Source
	State  State
	// Tetrodes lists the active tetrode numbers in ascending order.
	Tetrodes []int
	// EEG lists the active EEG slots of Bin sessions.
	EEG []axona.EEGChannel
	// Set is the parsed source set file of Bin sessions.
	Set *axona.Set
	// Probe and Experimenter are resolved for Intan sessions.
	Probe        string
	Experimenter string
	// Checks holds every artefact check in decision order.
	Checks []Check
	// Missing names the absent source file when State is StateMissingSource.
	Missing string
}

// NeedsWork reports whether a conversion run has anything to do.
func (r *Report) NeedsWork() bool {
	return r.State == StateUnconverted || r.State == StatePartiallyConverted
}

// FirstPending returns the first check in decision order that did not pass.
func (r *Report) FirstPending() (Check, bool) {
	for _, c := range r.Checks {
		if !c.OK() {
			return c, true
		}
	}
	return Check{}, false
}

// Check returns the recorded check for an artefact.
func (r *Report) Check(a Artifact, n int) (Check, bool) {
	for _, c := range r.Checks {
		if c.Artifact == a && c.Tetrode == n {
			return c, true
		}
	}
	return Check{}, false
}

// Resolve inspects the filesystem and reports what remains to be done for
// src. Checks follow a fixed order: firings per tetrode, then metrics for
// each tetrode whose firings are valid, then the exports. The returned error
// is non-nil only when the source itself cannot be decoded.
func Resolve(src Source, opts Options) (*Report, error) {
	report := &Report{Source: src}
	var err error
	switch src.Kind {
	case KindBin:
		err = resolveBinSource(report)
	case KindIntan:
		err = resolveIntanSource(report, opts)
	default:
		return nil, services.Wrap(services.ErrValidation, "session", "resolve",
			fmt.Sprintf("unknown session kind %d", src.Kind), nil)
	}
	if err != nil || report.State == StateMissingSource {
		return report, err
	}

	layout := src.Layout()
	report.Checks = expectedChecks(report, layout)

	valid := 0
	for _, c := range report.Checks {
		if c.OK() {
			valid++
		}
	}
	switch {
	case valid == len(report.Checks):
		report.State = StateFullyConverted
	case valid == 0:
		report.State = StateUnconverted
	default:
		report.State = StatePartiallyConverted
	}
	return report, nil
}

func resolveBinSource(report *Report) error {
	src := report.Source
	for _, path := range []string{src.Bin, src.Set} {
		ok, err := fileExists(path)
		if err != nil {
			return services.Wrap(services.ErrMissingSource, "session", "resolve", path, err)
		}
		if !ok {
			report.State = StateMissingSource
			report.Missing = path
			return nil
		}
	}
	set, err := axona.ReadSet(src.Set)
	if err != nil {
		return err
	}
	if _, err := axona.InspectBin(src.Bin); err != nil {
		return err
	}
	report.Set = set
	report.Tetrodes = set.ActiveTetrodes()
	report.EEG = set.ActiveEEG()
	return nil
}

func resolveIntanSource(report *Report, opts Options) error {
	src := report.Source
	if src.Err != nil {
		return src.Err
	}
	if len(src.Files) == 0 {
		report.State = StateMissingSource
		report.Missing = src.Name + "_YYMMDD_HHMMSS.rhd"
		return nil
	}
	for _, path := range src.Files {
		ok, err := fileExists(path)
		if err != nil {
			return services.Wrap(services.ErrMissingSource, "session", "resolve", path, err)
		}
		if !ok {
			report.State = StateMissingSource
			report.Missing = path
			return nil
		}
	}
	h, err := rhd.ReadHeader(src.Files[0])
	if err != nil {
		return err
	}
	probe, experimenter := rhd.ResolveProbe(h, opts.DefaultProbe)
	probeMap, err := rhd.LookupProbe(probe)
	if err != nil {
		return err
	}
	report.Probe = probe
	report.Experimenter = experimenter
	report.Tetrodes = probeMap.Tetrodes()
	return nil
}

func expectedChecks(report *Report, layout Layout) []Check {
	tetrodes := slices.Sorted(slices.Values(report.Tetrodes))

	var checks []Check
	var sorted []int
	for _, n := range tetrodes {
		c := ValidateMDA(ArtifactFirings, n, layout.Firings(n))
		checks = append(checks, c)
		if c.OK() {
			sorted = append(sorted, n)
		}
	}
	for _, n := range tetrodes {
		if !slices.Contains(sorted, n) {
			checks = append(checks, Check{Artifact: ArtifactMetrics, Tetrode: n, Path: layout.Metrics(n), Status: StatusMissing})
			continue
		}
		checks = append(checks, ValidateMetrics(n, layout.Metrics(n)))
	}

	checks = append(checks, ValidateSet(layout.Set()))
	for _, n := range tetrodes {
		spikeCheck, cutCheck := ValidateTetrode(n, layout.Tetrode(n), layout.Cut(n))
		checks = append(checks, spikeCheck, cutCheck)
	}
	if report.Source.Kind == KindBin {
		checks = append(checks, ValidateTint(ArtifactPos, 0, layout.Pos()))
		for _, ch := range report.EEG {
			eeg, egf := layout.LFP(ch.Number)
			checks = append(checks,
				ValidateTint(ArtifactEEG, ch.Number, eeg),
				ValidateTint(ArtifactEGF, ch.Number, egf),
			)
		}
	}
	return checks
}
