package pipeline

import (
	"context"

	"msconvert/internal/axona"
	"msconvert/internal/dsp"
	"msconvert/internal/mda"
	"msconvert/internal/services"
	"msconvert/internal/session"
	"msconvert/internal/sorter"
	"msconvert/internal/tint"
)

func (s *run) runBin(ctx context.Context) error {
	if session.ValidateSet(s.layout.Set()).OK() {
		s.skip(ctx, "set")
	} else if err := s.stage(ctx, "set", func(context.Context) error {
		return tint.ConvertSet(s.src.Set, s.layout.Set())
	}); err != nil {
		return err
	}
	set, err := axona.ReadSet(s.layout.Set())
	if err != nil {
		return err
	}
	rate := set.RawRate()

	if err := s.binToMDA(ctx, rate); err != nil {
		return err
	}
	for _, n := range s.report.Tetrodes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.failedTetrode(n) {
			continue
		}
		tctx := services.WithTetrode(ctx, n)
		job := s.sortJob(n, rate, sorter.InputFiltered, s.layout.Filt(n), "")
		if err := s.sortTetrode(tctx, job); err != nil {
			s.fail(n, err)
			continue
		}
		if err := s.exportTetrode(tctx, n, set); err != nil {
			s.fail(n, err)
		}
	}

	if err := s.exportPos(ctx, set); err != nil {
		s.fail(0, err)
	}
	if err := s.exportLFP(ctx, set); err != nil {
		s.fail(0, err)
	}
	return nil
}

// binToMDA writes the filtered sorter input of every tetrode that has
// neither sorter results nor a valid input yet. The .bin is read once for
// all of them.
func (s *run) binToMDA(ctx context.Context, rate int) error {
	var pending []int
	for _, n := range s.report.Tetrodes {
		if s.sorted(n) || session.ValidateMDA(session.ArtifactMDA, n, s.layout.Filt(n)).OK() {
			continue
		}
		pending = append(pending, n)
	}
	if len(pending) == 0 {
		s.skip(ctx, "mda")
		return nil
	}
	return s.stage(ctx, "mda", func(ctx context.Context) error {
		var channels []int
		for _, n := range pending {
			channels = append(channels, axona.TetrodeChannels(n)...)
		}
		data, err := axona.ReadChannels(s.src.Bin, channels)
		if err != nil {
			return err
		}

		var notch *dsp.Biquad
		if s.cfg.Conversion.NotchFilter {
			q, err := dsp.Notch(float64(s.cfg.Conversion.NotchFreq), float64(rate), dsp.DefaultNotchQ)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "mda", "notch", "", err)
			}
			notch = &q
		}

		for i, n := range pending {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rows := data[4*i : 4*i+4]
			if notch != nil {
				rows = applyNotch(*notch, rows)
			}
			a, err := mda.FromRows(rows)
			if err != nil {
				s.fail(n, err)
				continue
			}
			if err := mda.WriteFile(s.layout.Filt(n), a); err != nil {
				s.fail(n, err)
			}
		}
		return nil
	})
}

func applyNotch(q dsp.Biquad, rows [][]int16) [][]int16 {
	out := make([][]int16, len(rows))
	for c, row := range rows {
		x := make([]float64, len(row))
		for i, v := range row {
			x[i] = float64(v)
		}
		y := q.FiltFilt(x)
		out[c] = make([]int16, len(row))
		for i, v := range y {
			out[c][i] = clampInt16(v)
		}
	}
	return out
}

func (s *run) exportPos(ctx context.Context, set *axona.Set) error {
	if session.ValidateTint(session.ArtifactPos, 0, s.layout.Pos()).OK() {
		s.skip(ctx, "pos")
		return nil
	}
	return s.stage(ctx, "pos", func(context.Context) error {
		positions, err := axona.ReadPositions(s.src.Bin)
		if err != nil {
			return err
		}
		return tint.WritePos(s.layout.Pos(), set, positions)
	})
}

func (s *run) exportLFP(ctx context.Context, set *axona.Set) error {
	var pending []axona.EEGChannel
	for _, ch := range s.report.EEG {
		eeg, egf := s.layout.LFP(ch.Number)
		if session.ValidateTint(session.ArtifactEEG, ch.Number, eeg).OK() &&
			session.ValidateTint(session.ArtifactEGF, ch.Number, egf).OK() {
			continue
		}
		pending = append(pending, ch)
	}
	if len(pending) == 0 {
		s.skip(ctx, "lfp")
		return nil
	}
	return s.stage(ctx, "lfp", func(ctx context.Context) error {
		channels := make([]int, len(pending))
		for i, ch := range pending {
			channels[i] = ch.Channel
		}
		data, err := axona.ReadChannels(s.src.Bin, channels)
		if err != nil {
			return err
		}
		for i, ch := range pending {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			eeg, egf := s.layout.LFP(ch.Number)
			if err := tint.WriteEGF(egf, set, data[i]); err != nil {
				return err
			}
			if err := tint.WriteEEG(eeg, set, data[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
