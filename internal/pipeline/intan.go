package pipeline

import (
	"context"

	"msconvert/internal/axona"
	"msconvert/internal/mda"
	"msconvert/internal/rhd"
	"msconvert/internal/services"
	"msconvert/internal/session"
	"msconvert/internal/sorter"
	"msconvert/internal/tint"
)

func (s *run) runIntan(ctx context.Context) error {
	probe, err := rhd.LookupProbe(s.report.Probe)
	if err != nil {
		return err
	}
	if session.ValidateSet(s.layout.Set()).OK() {
		s.skip(ctx, "set")
	} else if err := s.stage(ctx, "set", func(context.Context) error {
		return s.writeIntanSet()
	}); err != nil {
		return err
	}
	set, err := axona.ReadSet(s.layout.Set())
	if err != nil {
		return err
	}
	rate := set.RawRate()

	if err := s.intanToMDA(ctx, probe); err != nil {
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
		job := s.sortJob(n, rate, sorter.InputRaw, s.layout.Raw(n), s.layout.Filt(n))
		if err := s.sortTetrode(tctx, job); err != nil {
			s.fail(n, err)
			continue
		}
		if err := s.exportTetrode(tctx, n, set); err != nil {
			s.fail(n, err)
		}
	}
	return nil
}

// writeIntanSet generates the set file from the recording headers without
// decoding any samples.
func (s *run) writeIntanSet() error {
	samples := 0
	var rate float32
	for _, path := range s.src.Files {
		info, err := rhd.Inspect(path)
		if err != nil {
			return err
		}
		samples += info.Samples
		rate = info.Header.SampleRate
	}
	start, err := rhd.SessionStart(s.src.Files[0])
	if err != nil {
		return services.Wrap(services.ErrFormat, "set", "session start", s.src.Files[0], err)
	}
	return tint.WriteIntanSet(s.layout.Set(), tint.IntanSet{
		Start:        start,
		Experimenter: s.report.Experimenter,
		Samples:      samples,
		RawRate:      int(rate),
		Tetrodes:     s.report.Tetrodes,
	})
}

// intanToMDA writes the negated raw input of every tetrode that has neither
// sorter results nor a valid input yet.
func (s *run) intanToMDA(ctx context.Context, probe rhd.ProbeMap) error {
	var pending []int
	for _, n := range s.report.Tetrodes {
		if s.sorted(n) || session.ValidateMDA(session.ArtifactMDA, n, s.layout.Raw(n)).OK() {
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
			chs := probe[n]
			channels = append(channels, chs[:]...)
		}
		sess, err := rhd.ReadSession(s.src.Files, rhd.ReadOptions{Channels: channels})
		if err != nil {
			return err
		}
		for i, n := range pending {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rows := make([][]int16, 4)
			for c := range rows {
				src := sess.Data.Amplifier[4*i+c]
				row := make([]int16, len(src))
				for j, v := range src {
					row[j] = rhd.NegateClamp(v)
				}
				rows[c] = row
			}
			a, err := mda.FromRows(rows)
			if err != nil {
				s.fail(n, err)
				continue
			}
			if err := mda.WriteFile(s.layout.Raw(n), a); err != nil {
				s.fail(n, err)
			}
		}
		return nil
	})
}
