package session

import (
	"errors"
	"fmt"
	"io/fs"

	"msconvert/internal/cutfile"
	"msconvert/internal/mda"
	"msconvert/internal/services"
	"msconvert/internal/spikes"
	"msconvert/internal/tint"
)

// Status tags the outcome of one artefact check.
type Status int

const (
	StatusValid Status = iota
	StatusMissing
	// StatusInvalid marks a file that exists but is unreadable or
	// incomplete, typically left by an interrupted writer.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusMissing:
		return "missing"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Artifact names the kind of file a Check covers.
type Artifact string

const (
	ArtifactFirings Artifact = "firings"
	ArtifactMetrics Artifact = "metrics"
	ArtifactSet     Artifact = "set"
	ArtifactPos     Artifact = "pos"
	ArtifactTetrode Artifact = "tetrode"
	ArtifactCut     Artifact = "cut"
	ArtifactEEG     Artifact = "eeg"
	ArtifactEGF     Artifact = "egf"
	ArtifactMDA     Artifact = "mda"
)

// Check is the tagged result of validating one file.
type Check struct {
	Artifact Artifact
	// Tetrode is the tetrode or EEG slot the file belongs to, 0 for
	// session-wide files.
	Tetrode int
	Path    string
	Status  Status
	Err     error
}

// OK reports whether the file is present and well formed.
func (c Check) OK() bool { return c.Status == StatusValid }

func (c Check) String() string {
	if c.Err != nil && c.Status == StatusInvalid {
		return fmt.Sprintf("%s %s: %v", c.Path, c.Status, c.Err)
	}
	return fmt.Sprintf("%s %s", c.Path, c.Status)
}

func classify(a Artifact, n int, path string, err error) Check {
	c := Check{Artifact: a, Tetrode: n, Path: path}
	switch {
	case err == nil:
		c.Status = StatusValid
	case errors.Is(err, fs.ErrNotExist):
		c.Status = StatusMissing
	default:
		c.Status = StatusInvalid
		c.Err = err
	}
	return c
}

// ValidateMDA checks that path holds exactly the payload its header
// declares.
func ValidateMDA(a Artifact, n int, path string) Check {
	_, err := mda.Stat(path)
	return classify(a, n, path, err)
}

// ValidateMetrics checks that path decodes as a metrics document.
func ValidateMetrics(n int, path string) Check {
	_, err := spikes.ReadMetrics(path)
	if errors.Is(err, services.ErrMissingSource) {
		return Check{Artifact: ArtifactMetrics, Tetrode: n, Path: path, Status: StatusMissing}
	}
	return classify(ArtifactMetrics, n, path, err)
}

// ValidateSet checks an exported set file.
func ValidateSet(path string) Check {
	if ok, err := fileExists(path); err != nil || !ok {
		return classify(ArtifactSet, 0, path, missingOr(err))
	}
	return classify(ArtifactSet, 0, path, tint.CheckSet(path))
}

// ValidateTint checks a binary Tint export (.pos, .eeg, .egf or tetrode
// file).
func ValidateTint(a Artifact, n int, path string) Check {
	if ok, err := fileExists(path); err != nil || !ok {
		return classify(a, n, path, missingOr(err))
	}
	return classify(a, n, path, tint.Check(path))
}

// ValidateTetrode checks a tetrode spike file and its cut file together:
// both must be well formed and assign the same number of spikes.
func ValidateTetrode(n int, spikesPath, cutPath string) (Check, Check) {
	spikeCheck := Check{Artifact: ArtifactTetrode, Tetrode: n, Path: spikesPath}
	count := -1
	if ok, err := fileExists(spikesPath); err != nil || !ok {
		spikeCheck = classify(ArtifactTetrode, n, spikesPath, missingOr(err))
	} else {
		var err error
		count, err = tint.Records(spikesPath)
		spikeCheck = classify(ArtifactTetrode, n, spikesPath, err)
	}

	cut, err := cutfile.ReadFile(cutPath)
	cutCheck := classify(ArtifactCut, n, cutPath, err)
	if err == nil && spikeCheck.OK() && len(cut.Labels) != count {
		cutCheck.Status = StatusInvalid
		cutCheck.Err = services.Wrap(services.ErrValidation, "session", "validate cut",
			fmt.Sprintf("%d labels for %d spikes", len(cut.Labels), count), nil)
	}
	return spikeCheck, cutCheck
}

func missingOr(err error) error {
	if err != nil {
		return err
	}
	return fs.ErrNotExist
}
