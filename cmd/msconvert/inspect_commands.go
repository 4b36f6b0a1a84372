package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"msconvert/internal/mda"
	"msconvert/internal/rhd"
	"msconvert/internal/tint"
	"msconvert/internal/waveform"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect recordings and intermediate files",
	}
	inspectCmd.AddCommand(newInspectRHDCommand(ctx))
	inspectCmd.AddCommand(newInspectMDACommand())
	inspectCmd.AddCommand(newInspectWaveformCommand(ctx))
	return inspectCmd
}

func newInspectRHDCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rhd <file>",
		Short: "Show an Intan recording's header, probe, and event pins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := args[0]
			info, err := rhd.Inspect(path)
			if err != nil {
				return err
			}
			h := info.Header
			probe, experimenter := rhd.ResolveProbe(h, cfg.Conversion.DefaultProbe)

			out := cmd.OutOrStdout()
			printField(out, "File", path)
			printField(out, "Version", h.Version.String())
			printField(out, "Sample rate", fmt.Sprintf("%g Hz", h.SampleRate))
			printField(out, "Amplifier channels", strconv.Itoa(len(h.Amplifier)))
			printField(out, "ADC channels", strconv.Itoa(len(h.BoardADC)))
			printField(out, "Digital inputs", strconv.Itoa(len(h.DigitalIn)))
			printField(out, "Samples", humanize.Comma(int64(info.Samples)))
			printField(out, "Duration", fmt.Sprintf("%.3f s", info.Duration()))
			printField(out, "Timestamps", fmt.Sprintf("%d .. %d", info.FirstTimestamp, info.LastTimestamp))
			printField(out, "Session start", yesNo(info.Blocks > 0 && info.FirstTimestamp == 0))
			printField(out, "Probe", probe)
			printField(out, "Experimenter", experimenter)

			basename, ok := rhd.RecordingBasename(path)
			if !ok {
				return nil
			}
			cues, err := rhd.LoadCues(filepath.Dir(path), basename)
			if err != nil {
				return err
			}
			printField(out, "Start/stop pin", cues.StartStop.String())
			printField(out, "Reward pin", cues.Reward.String())

			data, err := rhd.ReadFile(path, rhd.ReadOptions{Channels: []int{}, ADC: true, Digital: true})
			if err != nil {
				return err
			}
			edges, err := data.EventIndices(cues.StartStop)
			if err != nil {
				printField(out, "Start/stop edges", err.Error())
				return nil
			}
			printField(out, "Start/stop edges", formatEdges(edges))
			if start, stop, ok, err := data.DataLimits(cues.StartStop); err == nil && ok {
				printField(out, "Recording window", fmt.Sprintf("%d .. %d", start, stop))
			}
			return nil
		},
	}
}

func newInspectMDACommand() *cobra.Command {
	return &cobra.Command{
		Use:         "mda <file>",
		Short:       "Show an MDA file's header",
		Args:        cobra.ExactArgs(1),
		Annotations: offline,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := mda.Stat(args[0])
			if err != nil {
				return err
			}
			dims := make([]string, len(h.Dims))
			for i, d := range h.Dims {
				dims[i] = strconv.Itoa(d)
			}
			out := cmd.OutOrStdout()
			printField(out, "File", args[0])
			printField(out, "Type", h.DType.String())
			printField(out, "Dimensions", strings.Join(dims, " x "))
			printField(out, "Elements", humanize.Comma(h.NumElements()))
			printField(out, "Data size", humanize.Bytes(uint64(h.DataBytes())))
			printField(out, "Legacy header", yesNo(h.Legacy))
			return nil
		},
	}
}

func newInspectWaveformCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var methodFlag string

	cmd := &cobra.Command{
		Use:   "waveform <tetrode-file>",
		Short: "Rebuild a continuous signal from a Tint tetrode file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(outPath) == "" {
				return fmt.Errorf("--out is required")
			}
			name := methodFlag
			if name == "" {
				name = cfg.Export.WaveformFill
			}
			method, err := waveform.ParseMethod(name)
			if err != nil {
				return err
			}
			tf, err := tint.ReadTetrode(args[0])
			if err != nil {
				return err
			}
			series, err := reconstructTetrode(tf, method)
			if err != nil {
				return err
			}
			rows := make([][]float32, len(series))
			for c, s := range series {
				rows[c] = make([]float32, len(s))
				for i, v := range s {
					rows[c][i] = float32(v)
				}
			}
			a, err := mda.FromRows(rows)
			if err != nil {
				return err
			}
			if err := mda.WriteFile(outPath, a); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d spikes as %d x %s samples (%s fill) to %s\n",
				len(tf.Timestamps), len(rows), humanize.Comma(int64(len(rows[0]))), method, outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination MDA file")
	cmd.Flags().StringVar(&methodFlag, "method", "", "Fill between spikes: zero, ramp, or sin (default export.waveform_fill)")
	return cmd
}

// reconstructTetrode lays every spike's clip back at its sample position on
// a series spanning the recording. Clips are rescaled from 8 to 16 bits.
func reconstructTetrode(tf *tint.TetrodeFile, method waveform.Method) ([][]float64, error) {
	samples := tf.Samples()
	starts := make([]int, len(samples))
	total := 0
	for i, s := range samples {
		starts[i] = int(s) - tint.PreSpike
		total = max(total, starts[i]+tint.SamplesPerSpike)
	}
	if d, err := strconv.Atoi(strings.TrimSpace(tf.Header["duration"])); err == nil {
		total = max(total, d*tf.RawRate)
	}

	snippets := make([][]float64, tint.TetrodeChannels)
	for c := range snippets {
		data := make([]float64, 0, len(tf.Waveforms)*tint.SamplesPerSpike)
		for _, w := range tf.Waveforms {
			for _, v := range w[c] {
				data = append(data, float64(v)*256)
			}
		}
		snippets[c] = data
	}
	return waveform.Reconstruct(snippets, starts, tint.SamplesPerSpike, total, waveform.Options{
		Method: method,
		Rate:   float64(tf.RawRate),
	})
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintf(w, "%-20s %s\n", label+":", value)
}

func formatEdges(edges []int) string {
	if len(edges) == 0 {
		return "none"
	}
	const shown = 6
	parts := make([]string, 0, shown)
	for i, e := range edges {
		if i == shown {
			parts = append(parts, fmt.Sprintf("... (%d total)", len(edges)))
			break
		}
		parts = append(parts, strconv.Itoa(e))
	}
	return strings.Join(parts, ", ")
}
