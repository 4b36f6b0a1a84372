package sorter

import (
	"strconv"
)

// Input keys accepted by the sorting pipeline.
const (
	InputFiltered = "filt_fname"
	InputRaw      = "raw_fname"
)

// Job names the files of one tetrode sort.
type Job struct {
	Tetrode    int
	SampleRate int
	// InputKind is InputFiltered or InputRaw.
	InputKind string
	Input     string

	Firings string
	Metrics string
	// Pre is written when whitening, Masked when masking. FiltOut asks the
	// pipeline to save its filtered copy of a raw input.
	Pre     string
	Masked  string
	FiltOut string

	// Log receives the pipeline's terminal output.
	Log string
}

type param struct {
	key   string
	value string
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (c *Client) parameters(job Job) []param {
	s := c.cfg.Sorter
	return []param{
		{"freq_min", strconv.Itoa(s.FreqMin)},
		{"freq_max", strconv.Itoa(s.FreqMax)},
		{"samplerate", strconv.Itoa(job.SampleRate)},
		{"detect_sign", strconv.Itoa(s.DetectSign)},
		{"adjacency_radius", "-1"},
		{"detect_threshold", formatFloat(s.DetectThreshold)},
		{"detect_interval", strconv.Itoa(s.DetectInterval)},
		{"clip_size", strconv.Itoa(s.ClipSize)},
		{"firing_rate_thresh", formatFloat(s.FiringRateThresh)},
		{"isolation_thresh", formatFloat(s.IsolationThresh)},
		{"noise_overlap_thresh", formatFloat(s.NoiseOverlapThresh)},
		{"peak_snr_thresh", formatFloat(s.PeakSNRThresh)},
		{"mask_artifacts", boolString(s.Mask)},
		{"mask_chunk_size", strconv.Itoa(c.cfg.MaskChunkSize(job.SampleRate))},
		{"mask_threshold", strconv.Itoa(s.MaskThreshold)},
		{"mask_num_write_chunks", strconv.Itoa(s.MaskNumWriteChunks)},
		{"num_workers", strconv.Itoa(c.cfg.SorterWorkers())},
		{"whiten", boolString(s.Whiten)},
		{"num_features", strconv.Itoa(s.NumFeatures)},
		{"max_num_clips_for_pca", strconv.Itoa(s.MaxNumClipsForPCA)},
	}
}

// Args builds the ml-run-process argument list for job.
func (c *Client) Args(job Job) []string {
	kind := job.InputKind
	if kind == "" {
		kind = InputFiltered
	}
	args := []string{c.cfg.Sorter.Pipeline, "--inputs", kind + ":" + job.Input, "--outputs"}
	if job.FiltOut != "" {
		args = append(args, "filt_out_fname:"+job.FiltOut)
	}
	args = append(args, "firings_out:"+job.Firings)
	if c.cfg.Sorter.Whiten && job.Pre != "" {
		args = append(args, "pre_out_fname:"+job.Pre)
	}
	args = append(args, "metrics_out_fname:"+job.Metrics)
	if c.cfg.Sorter.Mask && job.Masked != "" {
		args = append(args, "masked_out_fname:"+job.Masked)
	}
	args = append(args, "--parameters")
	for _, p := range c.parameters(job) {
		args = append(args, p.key+":"+p.value)
	}
	return args
}
